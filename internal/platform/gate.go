package platform

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	gateCleanupThreshold = 200
	gateMaxIdleAge       = 30 * time.Minute
)

type gateEntry struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	lastSeen time.Time
}

// gate serialises calls per key (a guild or a channel) and spaces them with a
// token bucket so the shared bot budget is not burned by one burst.
type gate struct {
	mu      sync.Mutex
	entries map[string]*gateEntry
	r       rate.Limit
	b       int
}

func newGate(r rate.Limit, b int) *gate {
	return &gate{
		entries: make(map[string]*gateEntry),
		r:       r,
		b:       b,
	}
}

func (g *gate) entry(key string) *gateEntry {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.entries) > gateCleanupThreshold {
		cutoff := time.Now().Add(-gateMaxIdleAge)
		for k, e := range g.entries {
			if e.lastSeen.Before(cutoff) && e.mu.TryLock() {
				delete(g.entries, k)
				e.mu.Unlock()
			}
		}
	}

	e, ok := g.entries[key]
	if !ok {
		e = &gateEntry{limiter: rate.NewLimiter(g.r, g.b)}
		g.entries[key] = e
	}
	e.lastSeen = time.Now()
	return e
}

// do runs fn holding the key's lock once a token is available.
func (g *gate) do(ctx context.Context, key string, fn func() error) error {
	e := g.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}
	return fn()
}
