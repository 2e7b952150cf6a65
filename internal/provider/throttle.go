package provider

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bucket holds a single limiter and the last time it was used.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttled wraps a CloudDataProvider so every call first waits on a
// token bucket keyed by Credentials.Account. Idle buckets are evicted
// opportunistically.
//
// This type is safe for concurrent use.
type Throttled struct {
	next  CloudDataProvider
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	buckets  map[string]*bucket
	ttl      time.Duration
	cleanupN uint64
}

var _ CloudDataProvider = (*Throttled)(nil)

// NewThrottled returns next limited to rps calls per second per account,
// with the given burst (values <= 0 are coerced to 1).
func NewThrottled(next CloudDataProvider, rps float64, burst int) *Throttled {
	if burst <= 0 {
		burst = 1
	}
	return &Throttled{
		next:    next,
		rps:     rate.Limit(rps),
		burst:   burst,
		buckets: make(map[string]*bucket),
		ttl:     30 * time.Minute,
	}
}

func (t *Throttled) limiter(account string) *rate.Limiter {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.cleanupN++
	if t.cleanupN >= 1000 {
		for k, b := range t.buckets {
			if now.Sub(b.lastSeen) >= t.ttl {
				delete(t.buckets, k)
			}
		}
		t.cleanupN = 0
	}

	if b, ok := t.buckets[account]; ok {
		b.lastSeen = now
		return b.limiter
	}
	lim := rate.NewLimiter(t.rps, t.burst)
	t.buckets[account] = &bucket{limiter: lim, lastSeen: now}
	return lim
}

func (t *Throttled) wait(ctx context.Context, creds Credentials) error {
	return t.limiter(creds.Account).Wait(ctx)
}

// CostsByService implements CloudDataProvider.
func (t *Throttled) CostsByService(ctx context.Context, creds Credentials, start, end time.Time) (*CostReport, error) {
	if err := t.wait(ctx, creds); err != nil {
		return nil, err
	}
	return t.next.CostsByService(ctx, creds, start, end)
}

// AccountIdentity implements CloudDataProvider.
func (t *Throttled) AccountIdentity(ctx context.Context, creds Credentials) (string, error) {
	if err := t.wait(ctx, creds); err != nil {
		return "", err
	}
	return t.next.AccountIdentity(ctx, creds)
}

// Regions implements CloudDataProvider.
func (t *Throttled) Regions(ctx context.Context, creds Credentials) ([]string, error) {
	if err := t.wait(ctx, creds); err != nil {
		return nil, err
	}
	return t.next.Regions(ctx, creds)
}

// ScanRegion implements CloudDataProvider.
func (t *Throttled) ScanRegion(ctx context.Context, creds Credentials, region string) ([]Resource, error) {
	if err := t.wait(ctx, creds); err != nil {
		return nil, err
	}
	return t.next.ScanRegion(ctx, creds, region)
}

// ScanGlobal implements CloudDataProvider.
func (t *Throttled) ScanGlobal(ctx context.Context, creds Credentials) ([]Resource, error) {
	if err := t.wait(ctx, creds); err != nil {
		return nil, err
	}
	return t.next.ScanGlobal(ctx, creds)
}
