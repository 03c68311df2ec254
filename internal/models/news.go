package models

// Article is one entry of the cached news_list.json.
type Article struct {
	PK          string   `json:"pk"`
	Title       string   `json:"title"`
	URL         string   `json:"url,omitempty"`
	Path        string   `json:"path,omitempty"`
	Publisher   string   `json:"publisher,omitempty"`
	PublishedAt string   `json:"published_at,omitempty"`
	Tickers     []string `json:"tickers,omitempty"`
}

// NewsList is the on-disk shape of news_list.json.
type NewsList struct {
	Articles []Article `json:"articles"`
}

type NewsListInput struct {
	Tickers  []string `json:"tickers,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

type NewsListOutput struct {
	Count    int           `json:"count"`
	Filters  NewsListInput `json:"filters"`
	Articles []Article     `json:"articles"`
}

type NewsContentInput struct {
	PKs []string `json:"pks"`
}

type ArticleBody struct {
	PK        string `json:"pk"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Cached    bool   `json:"cached"`
	Truncated bool   `json:"body_truncated"`
	Error     string `json:"error,omitempty"`
}

type NewsContentOutput struct {
	Count    int           `json:"count"`
	Articles []ArticleBody `json:"articles"`
}

type KeywordFrequencyInput struct {
	Keywords []string `json:"keywords"`
	Source   string   `json:"source,omitempty"`
	NewsPKs  []string `json:"news_pks,omitempty"`
}

type KeywordCount struct {
	Count      int      `json:"count"`
	ArticlePKs []string `json:"article_pks"`
}

type KeywordFrequencyOutput struct {
	Source  string                  `json:"source"`
	Results map[string]KeywordCount `json:"results"`
}

type ListBodiesInput struct{}

type ListBodiesOutput struct {
	Count int      `json:"count"`
	PKs   []string `json:"pks"`
}

// WordCount is one entry of the title word frequency table.
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}
