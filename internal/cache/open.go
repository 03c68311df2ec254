package cache

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/dyike/BriefCast/config"
)

// Open builds the configured store: redis when REDIS_ADDR is set and
// reachable, otherwise files under the cache dir, fronted by memory.
// The returned close func is never nil.
func Open(ctx context.Context, cfg *config.Config) (Store, func() error) {
	nop := func() error { return nil }
	if !cfg.CacheEnabled {
		return Noop{}, nop
	}
	if cfg.RedisAddr != "" {
		rs := NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		err := rs.Ping(pctx)
		if err == nil {
			return NewTiered(rs, 10*time.Minute), rs.Close
		}
		log.Printf("[Cache] redis %s unavailable, using files: %v", cfg.RedisAddr, err)
		_ = rs.Close()
	}
	fs := NewFileStore(filepath.Join(cfg.CacheDir, "tools"), cfg.CacheTTL)
	return NewTiered(fs, 10*time.Minute), nop
}
