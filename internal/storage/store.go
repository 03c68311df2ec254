// Package storage keeps the podcast index: one row per briefing date.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/dyike/BriefCast/internal/script"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var ErrNotFound = errors.New("podcast not found")

// Podcast is one index row.
type Podcast struct {
	Date          string     `json:"date"`
	Nutshell      string     `json:"nutshell"`
	UserTickers   []string   `json:"user_tickers"`
	ScriptSavedAt *time.Time `json:"script_saved_at,omitempty"`
	TTSDone       bool       `json:"tts_done"`
	FinalSavedAt  *time.Time `json:"final_saved_at,omitempty"`
}

type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// Open connects to the index database and creates the table if needed.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("index dsn is required")
	}
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		db, err = openSQLite(dsn)
	case DriverPostgres:
		db, err = sql.Open(DriverPostgres, dsn)
	default:
		return nil, fmt.Errorf("unsupported index driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	s := &Store{db: db, driver: driver, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=3000;",
		"PRAGMA synchronous=NORMAL;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", p, err)
		}
	}
	return db, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS podcasts (
    date TEXT PRIMARY KEY,
    nutshell TEXT NOT NULL DEFAULT '',
    user_tickers TEXT NOT NULL DEFAULT '[]',
    script_saved_at TEXT,
    tts_done BOOLEAN NOT NULL DEFAULT FALSE,
    final_saved_at TEXT
)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// rebind turns ? placeholders into $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// UpsertScript records a saved script. A re-saved script resets the TTS
// flags.
func (s *Store) UpsertScript(ctx context.Context, a *script.Artifact) error {
	tickers := a.UserTickers
	if tickers == nil {
		tickers = []string{}
	}
	data, err := json.Marshal(tickers)
	if err != nil {
		return fmt.Errorf("encode tickers: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
INSERT INTO podcasts (date, nutshell, user_tickers, script_saved_at, tts_done, final_saved_at)
VALUES (?, ?, ?, ?, FALSE, NULL)
ON CONFLICT(date) DO UPDATE SET
    nutshell = excluded.nutshell,
    user_tickers = excluded.user_tickers,
    script_saved_at = excluded.script_saved_at,
    tts_done = FALSE,
    final_saved_at = NULL
`), a.Date, a.Nutshell, string(data), s.stamp())
	if err != nil {
		return fmt.Errorf("upsert podcast %s: %w", a.Date, err)
	}
	return nil
}

// MarkTTSDone flags the audio of date as rendered.
func (s *Store) MarkTTSDone(ctx context.Context, date string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
UPDATE podcasts SET tts_done = TRUE, final_saved_at = ? WHERE date = ?
`), s.stamp(), date)
	if err != nil {
		return fmt.Errorf("mark tts done %s: %w", date, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, date)
	}
	return nil
}

const selectColumns = `SELECT date, nutshell, user_tickers, script_saved_at, tts_done, final_saved_at FROM podcasts`

// List returns up to limit rows, newest date first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]Podcast, error) {
	query := selectColumns + ` ORDER BY date DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list podcasts: %w", err)
	}
	defer rows.Close()

	out := []Podcast{}
	for rows.Next() {
		p, err := scanPodcast(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, date string) (*Podcast, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(selectColumns+` WHERE date = ?`), date)
	p, err := scanPodcast(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, date)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPodcast(sc scanner) (Podcast, error) {
	var (
		p       Podcast
		tickers string
		saved   sql.NullString
		final   sql.NullString
	)
	if err := sc.Scan(&p.Date, &p.Nutshell, &tickers, &saved, &p.TTSDone, &final); err != nil {
		return Podcast{}, err
	}
	if err := json.Unmarshal([]byte(tickers), &p.UserTickers); err != nil || p.UserTickers == nil {
		p.UserTickers = []string{}
	}
	p.ScriptSavedAt = parseStamp(saved)
	p.FinalSavedAt = parseStamp(final)
	return p, nil
}

func parseStamp(v sql.NullString) *time.Time {
	if !v.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return nil
	}
	return &t
}
