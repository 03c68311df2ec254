package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-resty/resty/v2"

	"github.com/dyike/BriefCast/config"
	"github.com/dyike/BriefCast/internal/models"
)

const (
	secBaseURL        = "https://www.sec.gov"
	secDataURL        = "https://data.sec.gov"
	pageSummaryLength = 320
)

var ErrNoUserAgent = errors.New("SEC_USER_AGENT is required, e.g. 'your-name (contact: email@example.com)'")

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.\-]`)

// SECClient reads EDGAR company, submission and filing documents and
// keeps them on disk under dir.
type SECClient struct {
	client    *resty.Client
	baseURL   string
	dataURL   string
	dir       string
	pageChars int
	userAgent string
	mu        sync.Mutex
}

type SECOption func(*SECClient)

// WithSECEndpoints points the client at other hosts.
func WithSECEndpoints(baseURL, dataURL string) SECOption {
	return func(c *SECClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
		c.dataURL = strings.TrimRight(dataURL, "/")
	}
}

func NewSECClient(cfg *config.Config, dir string, opts ...SECOption) *SECClient {
	c := &SECClient{
		baseURL:   secBaseURL,
		dataURL:   secDataURL,
		dir:       dir,
		pageChars: cfg.SECFilingPageChars,
		userAgent: strings.TrimSpace(cfg.SECUserAgent),
	}
	if c.pageChars <= 0 {
		c.pageChars = 20000
	}
	c.client = resty.New().
		SetTimeout(cfg.SECTimeout).
		SetHeader("User-Agent", c.userAgent)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type companyEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

type submissions struct {
	Name    string `json:"name"`
	Filings struct {
		Recent struct {
			Form            []string `json:"form"`
			FilingDate      []string `json:"filingDate"`
			ReportDate      []string `json:"reportDate"`
			AccessionNumber []string `json:"accessionNumber"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

func (c *SECClient) get(ctx context.Context, url string) (*resty.Response, error) {
	if c.userAgent == "" {
		return nil, ErrNoUserAgent
	}
	resp, err := c.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	return resp, nil
}

// cachedJSON decodes dir/name, or downloads url into it first.
func (c *SECClient) cachedJSON(ctx context.Context, name, url string, v any) error {
	path := filepath.Join(c.dir, name)
	if data, err := os.ReadFile(path); err == nil && json.Unmarshal(data, v) == nil {
		return nil
	}
	resp, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("HTTP error %d when fetching %s", resp.StatusCode(), url)
	}
	if err := json.Unmarshal(resp.Body(), v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	c.write(path, resp.Body())
	return nil
}

func (c *SECClient) write(path string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Printf("[SEC] create directory %s: %v", filepath.Dir(path), err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Printf("[SEC] write %s: %v", path, err)
	}
}

// lookupCIK returns the zero-padded CIK and company title for ticker.
func (c *SECClient) lookupCIK(ctx context.Context, ticker string) (string, string, error) {
	var entries map[string]companyEntry
	if err := c.cachedJSON(ctx, "company_tickers.json", c.baseURL+"/files/company_tickers.json", &entries); err != nil {
		return "", "", err
	}
	for _, e := range entries {
		if strings.EqualFold(e.Ticker, ticker) {
			return fmt.Sprintf("%010d", e.CIK), strings.TrimSpace(e.Title), nil
		}
	}
	return "", "", fmt.Errorf("CIK not found for ticker %q", ticker)
}

func (c *SECClient) recent(ctx context.Context, cik string) (*submissions, []models.Filing, error) {
	var sub submissions
	name := "submissions_CIK" + cik + ".json"
	if err := c.cachedJSON(ctx, name, c.dataURL+"/submissions/CIK"+cik+".json", &sub); err != nil {
		return nil, nil, err
	}
	r := sub.Filings.Recent
	at := func(list []string, i int) string {
		if i < len(list) {
			return strings.TrimSpace(list[i])
		}
		return ""
	}
	n := min(len(r.Form), len(r.FilingDate), len(r.AccessionNumber))
	out := make([]models.Filing, 0, n)
	for i := 0; i < n; i++ {
		f := models.Filing{
			Form:            at(r.Form, i),
			FiledDate:       at(r.FilingDate, i),
			ReportDate:      at(r.ReportDate, i),
			AccessionNumber: at(r.AccessionNumber, i),
			PrimaryDocument: at(r.PrimaryDocument, i),
		}
		if f.Form == "" || f.FiledDate == "" || f.AccessionNumber == "" {
			continue
		}
		out = append(out, f)
	}
	return &sub, out, nil
}

// FilingList lists recent filings for a ticker, newest first.
func (c *SECClient) FilingList(ctx context.Context, in models.FilingListInput) (*models.FilingListOutput, error) {
	ticker := strings.ToUpper(strings.TrimSpace(in.Ticker))
	if ticker == "" {
		return nil, errors.New("ticker is required")
	}
	cik, company, err := c.lookupCIK(ctx, ticker)
	if err != nil {
		return nil, err
	}
	sub, filings, err := c.recent(ctx, cik)
	if err != nil {
		return nil, err
	}
	if len(in.Forms) > 0 {
		allowed := map[string]bool{}
		for _, f := range in.Forms {
			if f = strings.ToUpper(strings.TrimSpace(f)); f != "" {
				allowed[f] = true
			}
		}
		kept := filings[:0]
		for _, f := range filings {
			if allowed[strings.ToUpper(f.Form)] {
				kept = append(kept, f)
			}
		}
		filings = kept
	}
	limit := in.Limit
	if limit == 0 {
		limit = 6
	}
	if limit < 0 {
		limit = 0
	}
	if len(filings) > limit {
		filings = filings[:limit]
	}
	if company == "" {
		company = strings.TrimSpace(sub.Name)
	}
	return &models.FilingListOutput{
		Ticker:      ticker,
		CIK:         cik,
		CompanyName: company,
		Count:       len(filings),
		Filings:     filings,
	}, nil
}

func archiveBase(baseURL, cik, accession string) string {
	n, _ := strconv.ParseInt(cik, 10, 64)
	return fmt.Sprintf("%s/Archives/edgar/data/%d/%s/", baseURL, n, strings.ReplaceAll(accession, "-", ""))
}

func (c *SECClient) fullTextPath(ticker, accession string) string {
	name := fmt.Sprintf("%s_%s.txt", unsafeName.ReplaceAllString(ticker, "_"), strings.ReplaceAll(accession, "-", ""))
	return filepath.Join(c.dir, "filings_full", name)
}

// fullText returns the cleaned filing text, its url and whether it came
// from disk.
func (c *SECClient) fullText(ctx context.Context, ticker, cik string, f models.Filing) (string, string, bool, error) {
	base := archiveBase(c.baseURL, cik, f.AccessionNumber)
	path := c.fullTextPath(ticker, f.AccessionNumber)
	if data, err := os.ReadFile(path); err == nil && strings.TrimSpace(string(data)) != "" {
		url := base + strings.ReplaceAll(f.AccessionNumber, "-", "") + ".txt"
		if f.PrimaryDocument != "" {
			url = base + f.PrimaryDocument
		}
		return string(data), url, true, nil
	}

	var candidates []string
	if f.PrimaryDocument != "" {
		candidates = append(candidates, f.PrimaryDocument)
	}
	candidates = append(candidates, strings.ReplaceAll(f.AccessionNumber, "-", "")+".txt")

	var lastErr error
	for _, name := range candidates {
		url := base + name
		resp, err := c.get(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode() == 404 {
			continue
		}
		if resp.StatusCode() != 200 {
			lastErr = fmt.Errorf("HTTP error %d when fetching %s", resp.StatusCode(), url)
			continue
		}
		text := cleanText(resp.String())
		c.write(path, []byte(text))
		return text, url, false, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no document found")
	}
	return "", "", false, fmt.Errorf("download filing %s: %w", f.AccessionNumber, lastErr)
}

func pageIndex(text string, pageChars int) []models.PageSummary {
	runes := []rune(text)
	var out []models.PageSummary
	for page, start := 1, 0; start < len(runes); page, start = page+1, start+pageChars {
		end := min(start+pageChars, len(runes))
		snippet := []rune(strings.TrimSpace(string(runes[start:end])))
		if len(snippet) > pageSummaryLength {
			snippet = snippet[:pageSummaryLength]
		}
		out = append(out, models.PageSummary{Page: strconv.Itoa(page), PageSummary: strings.TrimSpace(string(snippet))})
	}
	return out
}

func pageContent(text string, page, pageChars int) string {
	runes := []rune(text)
	start := (page - 1) * pageChars
	if start >= len(runes) {
		return ""
	}
	end := min(start+pageChars, len(runes))
	return strings.TrimRight(string(runes[start:end]), " \n\t")
}

// FilingContent returns the page index of each filing and, when a page
// is requested, that page's text. Per-filing failures are reported in
// the entry's error field.
func (c *SECClient) FilingContent(ctx context.Context, in models.FilingContentInput) (*models.FilingContentOutput, error) {
	ticker := strings.ToUpper(strings.TrimSpace(in.Ticker))
	if ticker == "" {
		return nil, errors.New("ticker is required")
	}
	if len(in.AccessionNumbers) == 0 {
		return nil, errors.New("accession_numbers is required")
	}
	cik, _, err := c.lookupCIK(ctx, ticker)
	if err != nil {
		return nil, err
	}
	_, recent, err := c.recent(ctx, cik)
	if err != nil {
		return nil, err
	}
	meta := make(map[string]models.Filing, len(recent))
	for _, f := range recent {
		meta[f.AccessionNumber] = f
	}

	out := &models.FilingContentOutput{Filings: []models.FilingPage{}}
	for _, acc := range in.AccessionNumbers {
		acc = strings.TrimSpace(acc)
		if acc == "" {
			continue
		}
		f, ok := meta[acc]
		if !ok {
			f = models.Filing{AccessionNumber: acc}
		}
		entry := models.FilingPage{AccessionNumber: acc, Form: f.Form, FiledDate: f.FiledDate, Index: []models.PageSummary{}}

		text, url, cached, err := c.fullText(ctx, ticker, cik, f)
		if err != nil {
			log.Printf("[SEC] filing fetch failed: %s (%v)", acc, err)
			entry.Error = err.Error()
			out.Filings = append(out.Filings, entry)
			continue
		}
		entry.URL = url
		entry.Cached = cached
		entry.Index = pageIndex(text, c.pageChars)
		entry.TotalPages = len(entry.Index)
		if in.Page > 0 {
			entry.Page = min(in.Page, max(entry.TotalPages, 1))
			content := pageContent(text, entry.Page, c.pageChars)
			entry.Content = &content
		}
		out.Filings = append(out.Filings, entry)
	}
	out.Count = len(out.Filings)
	return out, nil
}
