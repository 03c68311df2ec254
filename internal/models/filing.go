package models

type FilingListInput struct {
	Ticker string   `json:"ticker"`
	Forms  []string `json:"forms,omitempty"`
	Limit  int      `json:"limit,omitempty"`
}

type Filing struct {
	Form            string `json:"form"`
	FiledDate       string `json:"filed_date"`
	ReportDate      string `json:"report_date,omitempty"`
	AccessionNumber string `json:"accession_number"`
	PrimaryDocument string `json:"primary_document,omitempty"`
}

type FilingListOutput struct {
	Ticker      string   `json:"ticker"`
	CIK         string   `json:"cik"`
	CompanyName string   `json:"company_name"`
	Count       int      `json:"count"`
	Filings     []Filing `json:"filings"`
}

// FilingContentInput asks for one page of each filing. Page 0 returns
// the page index only.
type FilingContentInput struct {
	Ticker           string   `json:"ticker"`
	AccessionNumbers []string `json:"accession_numbers"`
	Page             int      `json:"page,omitempty"`
}

type PageSummary struct {
	Page        string `json:"page"`
	PageSummary string `json:"page_summary"`
}

type FilingPage struct {
	AccessionNumber string        `json:"accession_number"`
	Form            string        `json:"form,omitempty"`
	FiledDate       string        `json:"filed_date,omitempty"`
	URL             string        `json:"url,omitempty"`
	Index           []PageSummary `json:"index"`
	Page            int           `json:"page,omitempty"`
	TotalPages      int           `json:"total_pages"`
	Content         *string       `json:"content,omitempty"`
	Cached          bool          `json:"cached"`
	Error           string        `json:"error,omitempty"`
}

type FilingContentOutput struct {
	Count   int          `json:"count"`
	Filings []FilingPage `json:"filings"`
}
