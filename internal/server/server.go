// Package server exposes the podcast index and saved scripts over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/dyike/BriefCast/config"
	"github.com/dyike/BriefCast/internal/metrics"
	"github.com/dyike/BriefCast/internal/script"
	"github.com/dyike/BriefCast/internal/storage"
)

// Index is the read side of the podcast index.
type Index interface {
	List(ctx context.Context, limit int) ([]storage.Podcast, error)
	Get(ctx context.Context, date string) (*storage.Podcast, error)
	MarkTTSDone(ctx context.Context, date string) error
}

type Server struct {
	cfg   *config.Config
	index Index
	echo  *echo.Echo
}

// PodcastDetail is an index row with its saved script.
type PodcastDetail struct {
	storage.Podcast
	Chapter []script.ChapterRange `json:"chapter"`
	Scripts []script.Turn         `json:"scripts"`
}

func New(cfg *config.Config, index Index) *Server {
	s := &Server{cfg: cfg, index: index, echo: echo.New()}
	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	logger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Printf("%d %s %s: %v", code, req.Method, req.URL.Path, err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]any{"error": msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	g := e.Group("/api/podcasts")
	g.GET("", s.list)
	g.GET("/:date", s.get)
	g.POST("/:date/tts", s.markTTS)
	return s
}

// Handler is the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves addr until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() {
		log.Printf("[Server] listening on %s", addr)
		errc <- s.echo.Start(addr)
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

func (s *Server) list(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}
	items, err := s.index.List(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"podcasts": items})
}

func (s *Server) get(c echo.Context) error {
	date, err := script.NormalizeDate(c.Param("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	row, err := s.index.Get(c.Request().Context(), date)
	if errors.Is(err, storage.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "podcast not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	art, err := script.LoadArtifact(s.cfg.ScriptPath(date))
	if errors.Is(err, os.ErrNotExist) {
		return echo.NewHTTPError(http.StatusNotFound, "script file missing")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, PodcastDetail{Podcast: *row, Chapter: art.Chapter, Scripts: art.Scripts})
}

func (s *Server) markTTS(c echo.Context) error {
	date, err := script.NormalizeDate(c.Param("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.index.MarkTTSDone(c.Request().Context(), date); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "podcast not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
