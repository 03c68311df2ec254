package cache

import (
	"context"
	"log"
	"sync"
	"time"
)

type entry struct {
	data    []byte
	expires time.Time
}

// Tiered puts an in-process memory layer in front of a backing store.
type Tiered struct {
	mu      sync.RWMutex
	mem     map[string]entry
	backing Store
	memTTL  time.Duration
}

func NewTiered(backing Store, memTTL time.Duration) *Tiered {
	if backing == nil {
		backing = Noop{}
	}
	return &Tiered{mem: map[string]entry{}, backing: backing, memTTL: memTTL}
}

func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	t.mu.RLock()
	e, ok := t.mem[key]
	t.mu.RUnlock()
	if ok && time.Now().Before(e.expires) {
		return e.data, true, nil
	}

	data, ok, err := t.backing.Get(ctx, key)
	if err != nil {
		log.Printf("[Cache] backing get %s: %v", key, err)
		return nil, false, nil
	}
	if ok {
		t.remember(key, data)
	}
	return data, ok, nil
}

func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	t.remember(key, value)
	return t.backing.Set(ctx, key, value, ttl)
}

func (t *Tiered) remember(key string, data []byte) {
	t.mu.Lock()
	t.mem[key] = entry{data: data, expires: time.Now().Add(t.memTTL)}
	t.mu.Unlock()
}
