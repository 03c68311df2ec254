package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/search/query"
	readability "github.com/go-shiori/go-readability"

	"github.com/dyike/BriefCast/internal/models"
)

const truncatedMarker = "\n...[truncated]"

func (g *Gateway) loadNews() error {
	g.newsOnce.Do(func() {
		path := g.path("news_list.json")
		data, err := os.ReadFile(path)
		if err != nil {
			g.newsErr = fmt.Errorf("news_list.json not found: %w", err)
			return
		}
		var list models.NewsList
		if err := json.Unmarshal(data, &list); err != nil {
			g.newsErr = fmt.Errorf("decode %s: %w", path, err)
			return
		}
		g.byPK = make(map[string]models.Article, len(list.Articles))
		for _, a := range list.Articles {
			a.PK = strings.TrimSpace(a.PK)
			if a.PK == "" {
				continue
			}
			if _, dup := g.byPK[a.PK]; dup {
				continue
			}
			g.byPK[a.PK] = a
			g.news = append(g.news, a)
		}

		index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
		if err != nil {
			g.newsErr = fmt.Errorf("title index: %w", err)
			return
		}
		batch := index.NewBatch()
		for _, a := range g.news {
			if err := batch.Index(a.PK, map[string]any{"title": a.Title}); err != nil {
				g.newsErr = fmt.Errorf("index %s: %w", a.PK, err)
				return
			}
		}
		if err := index.Batch(batch); err != nil {
			g.newsErr = fmt.Errorf("title index batch: %w", err)
			return
		}
		g.titles = index
		log.Printf("[Tools] loaded %d articles for %s", len(g.news), g.date)
	})
	return g.newsErr
}

// titleMatches returns the pks whose title holds every keyword.
func (g *Gateway) titleMatches(keywords []string) (map[string]bool, error) {
	var conjuncts []query.Query
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		q := bleve.NewMatchPhraseQuery(kw)
		q.SetField("title")
		conjuncts = append(conjuncts, q)
	}
	if len(conjuncts) == 0 {
		return nil, nil
	}
	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(conjuncts...), len(g.news)+1, 0, false)
	res, err := g.titles.Search(req)
	if err != nil {
		return nil, err
	}
	hits := make(map[string]bool, len(res.Hits))
	for _, h := range res.Hits {
		hits[h.ID] = true
	}
	return hits, nil
}

func containsFold(list []string, want string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), want) {
			return true
		}
	}
	return false
}

// NewsList filters the cached articles. Tickers and keywords are each
// AND filters; results keep news_list.json order.
func (g *Gateway) NewsList(ctx context.Context, in models.NewsListInput) (*models.NewsListOutput, error) {
	if err := g.loadNews(); err != nil {
		return nil, err
	}
	var hits map[string]bool
	if len(in.Keywords) > 0 {
		h, err := g.titleMatches(in.Keywords)
		if err != nil {
			return nil, fmt.Errorf("keyword search: %w", err)
		}
		hits = h
	}

	out := &models.NewsListOutput{Filters: in, Articles: []models.Article{}}
	for _, a := range g.news {
		if hits != nil && !hits[a.PK] {
			continue
		}
		ok := true
		for _, t := range in.Tickers {
			if t = strings.TrimSpace(t); t != "" && !containsFold(a.Tickers, t) {
				ok = false
				break
			}
		}
		if ok {
			out.Articles = append(out.Articles, a)
		}
	}
	out.Count = len(out.Articles)
	log.Printf("[Tools] get_news_list tickers=%v keywords=%v -> %d", in.Tickers, in.Keywords, out.Count)
	return out, nil
}

// Article looks up one cached article by pk.
func (g *Gateway) Article(pk string) (models.Article, bool) {
	if err := g.loadNews(); err != nil {
		return models.Article{}, false
	}
	a, ok := g.byPK[pk]
	return a, ok
}

func (g *Gateway) bodyPath(pk string) string {
	return filepath.Join(g.bodiesDir(), filepath.Base(pk)+".txt")
}

// NewsContent returns article bodies from the date cache, downloading
// and caching the ones not fetched yet.
func (g *Gateway) NewsContent(ctx context.Context, in models.NewsContentInput) (*models.NewsContentOutput, error) {
	if err := g.loadNews(); err != nil {
		return nil, err
	}
	out := &models.NewsContentOutput{Articles: []models.ArticleBody{}}
	for _, pk := range in.PKs {
		pk = strings.TrimSpace(pk)
		meta, ok := g.byPK[pk]
		if !ok {
			log.Printf("[Tools] get_news_content: unknown pk %s", pk)
			continue
		}
		entry := models.ArticleBody{PK: pk, Title: meta.Title}
		body, cached, err := g.body(ctx, meta)
		if err != nil {
			log.Printf("[Tools] get_news_content %s: %v", pk, err)
			entry.Error = err.Error()
		} else {
			entry.Body, entry.Truncated = truncate(cleanText(body), g.cfg.NewsBodyMaxChars)
			entry.Cached = cached
		}
		out.Articles = append(out.Articles, entry)
	}
	out.Count = len(out.Articles)
	return out, nil
}

func (g *Gateway) body(ctx context.Context, meta models.Article) (string, bool, error) {
	path := g.bodyPath(meta.PK)
	if data, err := os.ReadFile(path); err == nil {
		return string(data), true, nil
	}
	if meta.URL == "" {
		return "", false, fmt.Errorf("no cached body and no url for %s", meta.PK)
	}
	text, err := g.fetchBody(ctx, meta.URL)
	if err != nil {
		return "", false, err
	}

	g.bodyMu.Lock()
	defer g.bodyMu.Unlock()
	if err := os.MkdirAll(g.bodiesDir(), 0755); err != nil {
		return "", false, fmt.Errorf("create directory %s: %w", g.bodiesDir(), err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return "", false, fmt.Errorf("write body %s: %w", path, err)
	}
	return text, false, nil
}

func (g *Gateway) fetchBody(ctx context.Context, link string) (string, error) {
	resp, err := g.http.R().SetContext(ctx).Get(link)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", link, err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("HTTP error %d when fetching %s", resp.StatusCode(), link)
	}
	html := resp.String()

	if u, err := url.Parse(link); err == nil {
		article, err := readability.FromReader(strings.NewReader(html), u)
		if err == nil && strings.TrimSpace(article.TextContent) != "" {
			return strings.TrimSpace(article.TextContent), nil
		}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", link, err)
	}
	doc.Find("script, style, nav, footer").Remove()
	return strings.TrimSpace(doc.Find("body").Text()), nil
}

// cleanText strips markup left in stored bodies and collapses whitespace.
func cleanText(text string) string {
	if strings.Contains(text, "<") && strings.Contains(text, ">") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
			text = doc.Text()
		}
	}
	return strings.Join(strings.Fields(text), " ")
}

func truncate(text string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text, false
	}
	runes := []rune(text)
	return strings.TrimRight(string(runes[:limit]), " \n\t") + truncatedMarker, true
}

// KeywordFrequency counts case-insensitive keyword occurrences in the
// titles file or in the downloaded bodies.
func (g *Gateway) KeywordFrequency(ctx context.Context, in models.KeywordFrequencyInput) (*models.KeywordFrequencyOutput, error) {
	source := in.Source
	if source == "" {
		source = "titles"
	}
	out := &models.KeywordFrequencyOutput{Source: source, Results: map[string]models.KeywordCount{}}
	for _, kw := range in.Keywords {
		out.Results[kw] = models.KeywordCount{ArticlePKs: []string{}}
	}

	switch source {
	case "titles":
		data, err := os.ReadFile(g.path("titles.txt"))
		if err != nil {
			return nil, fmt.Errorf("titles.txt not found: %w", err)
		}
		text := strings.ToLower(string(data))
		for _, kw := range in.Keywords {
			out.Results[kw] = models.KeywordCount{Count: countFold(text, kw), ArticlePKs: []string{}}
		}
	case "bodies":
		targets := in.NewsPKs
		if len(targets) == 0 {
			listed, err := g.ListBodies(ctx, models.ListBodiesInput{})
			if err != nil {
				return nil, err
			}
			targets = listed.PKs
		}
		for _, pk := range targets {
			data, err := os.ReadFile(g.bodyPath(pk))
			if err != nil {
				continue
			}
			text := strings.ToLower(string(data))
			for _, kw := range in.Keywords {
				if n := countFold(text, kw); n > 0 {
					r := out.Results[kw]
					r.Count += n
					r.ArticlePKs = append(r.ArticlePKs, pk)
					out.Results[kw] = r
				}
			}
		}
	default:
		return nil, fmt.Errorf("source must be titles or bodies, got %q", source)
	}
	return out, nil
}

func countFold(lowerText, keyword string) int {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return 0
	}
	return strings.Count(lowerText, kw)
}

// ListBodies lists the pks whose bodies are already downloaded.
func (g *Gateway) ListBodies(ctx context.Context, _ models.ListBodiesInput) (*models.ListBodiesOutput, error) {
	entries, err := os.ReadDir(g.bodiesDir())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read bodies dir: %w", err)
	}
	out := &models.ListBodiesOutput{PKs: []string{}}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		out.PKs = append(out.PKs, strings.TrimSuffix(e.Name(), ".txt"))
	}
	sort.Strings(out.PKs)
	out.Count = len(out.PKs)
	return out, nil
}
