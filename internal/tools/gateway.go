// Package tools serves the cached news, calendar, price and SEC data a
// stage worker may look up, and exposes it as eino tools.
package tools

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/blevesearch/bleve"
	"github.com/go-resty/resty/v2"

	"github.com/dyike/BriefCast/config"
	"github.com/dyike/BriefCast/internal/dataflows"
	"github.com/dyike/BriefCast/internal/models"
	"github.com/dyike/BriefCast/internal/script"
)

// MaxOHLCVRows is the largest series returned in one price lookup.
const MaxOHLCVRows = 200

var ErrTooManyRows = errors.New("too many OHLCV rows")

// Gateway answers tool calls for one briefing date. It is safe for
// concurrent use by parallel branches.
type Gateway struct {
	cfg    *config.Config
	date   string
	dir    string
	prices dataflows.Provider
	sec    *SECClient
	http   *resty.Client

	newsOnce sync.Once
	news     []models.Article
	byPK     map[string]models.Article
	titles   bleve.Index
	newsErr  error

	calOnce sync.Once
	events  []models.CalendarEvent
	calErr  error

	bodyMu sync.Mutex
}

type Option func(*Gateway)

func WithSECClient(c *SECClient) Option {
	return func(g *Gateway) { g.sec = c }
}

// WithHTTPClient replaces the client used to download article bodies.
func WithHTTPClient(c *resty.Client) Option {
	return func(g *Gateway) { g.http = c }
}

func NewGateway(cfg *config.Config, date string, prices dataflows.Provider, opts ...Option) (*Gateway, error) {
	d, err := script.NormalizeDate(date)
	if err != nil {
		return nil, err
	}
	g := &Gateway{
		cfg:    cfg,
		date:   d,
		dir:    cfg.DateCacheDir(d),
		prices: prices,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.http == nil {
		g.http = resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", "Mozilla/5.0 (compatible; BriefCast/1.0)")
	}
	if g.sec == nil {
		g.sec = NewSECClient(cfg, filepath.Join(g.dir, "sec"))
	}
	return g, nil
}

// Date is the briefing date as YYYYMMDD.
func (g *Gateway) Date() string { return g.date }

func (g *Gateway) Dir() string { return g.dir }

func (g *Gateway) Prices() dataflows.Provider { return g.prices }

func (g *Gateway) path(name string) string { return filepath.Join(g.dir, name) }

func (g *Gateway) bodiesDir() string { return g.path("bodies") }

func (g *Gateway) day() (time.Time, error) {
	t, err := script.ParseDate(g.date)
	if err != nil {
		return time.Time{}, fmt.Errorf("briefing date %s: %w", g.date, err)
	}
	return t, nil
}

// Close releases the in-memory title index.
func (g *Gateway) Close() error {
	if g.titles != nil {
		return g.titles.Close()
	}
	return nil
}

func (g *Gateway) SEC() *SECClient { return g.sec }
