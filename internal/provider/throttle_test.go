package provider

import (
	"context"
	"testing"
	"time"
)

// countingProvider records calls and returns canned values.
type countingProvider struct{ calls int }

func (c *countingProvider) CostsByService(context.Context, Credentials, time.Time, time.Time) (*CostReport, error) {
	c.calls++
	return &CostReport{Currency: "USD"}, nil
}
func (c *countingProvider) AccountIdentity(context.Context, Credentials) (string, error) {
	c.calls++
	return "123", nil
}
func (c *countingProvider) Regions(context.Context, Credentials) ([]string, error) {
	c.calls++
	return []string{"us-east-1"}, nil
}
func (c *countingProvider) ScanRegion(context.Context, Credentials, string) ([]Resource, error) {
	c.calls++
	return nil, nil
}
func (c *countingProvider) ScanGlobal(context.Context, Credentials) ([]Resource, error) {
	c.calls++
	return nil, nil
}

func TestThrottled_PassesThrough(t *testing.T) {
	inner := &countingProvider{}
	p := NewThrottled(inner, 1000, 10)
	ctx := context.Background()
	creds := Credentials{Account: "a"}

	if r, err := p.CostsByService(ctx, creds, time.Now(), time.Now()); err != nil || r.Currency != "USD" {
		t.Fatalf("CostsByService: %v %v", r, err)
	}
	if id, err := p.AccountIdentity(ctx, creds); err != nil || id != "123" {
		t.Fatalf("AccountIdentity: %q %v", id, err)
	}
	if rs, err := p.Regions(ctx, creds); err != nil || len(rs) != 1 {
		t.Fatalf("Regions: %v %v", rs, err)
	}
	if _, err := p.ScanRegion(ctx, creds, "us-east-1"); err != nil {
		t.Fatalf("ScanRegion: %v", err)
	}
	if _, err := p.ScanGlobal(ctx, creds); err != nil {
		t.Fatalf("ScanGlobal: %v", err)
	}
	if inner.calls != 5 {
		t.Fatalf("calls=%d; want 5", inner.calls)
	}
}

func TestThrottled_PerAccountBuckets(t *testing.T) {
	inner := &countingProvider{}
	// one token, refilled very slowly
	p := NewThrottled(inner, 0.001, 1)

	if _, err := p.Regions(context.Background(), Credentials{Account: "a"}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	// another account has its own bucket
	if _, err := p.Regions(context.Background(), Credentials{Account: "b"}); err != nil {
		t.Fatalf("other account: %v", err)
	}

	// same account must wait and the short deadline expires first
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := p.Regions(ctx, Credentials{Account: "a"}); err == nil {
		t.Fatalf("expected throttled call to fail on deadline")
	}
	if inner.calls != 2 {
		t.Fatalf("throttled call reached provider: calls=%d", inner.calls)
	}
}

func TestThrottled_BurstCoercedAndEviction(t *testing.T) {
	p := NewThrottled(&countingProvider{}, 1, 0)
	if p.burst != 1 {
		t.Fatalf("burst=%d; want 1", p.burst)
	}
	p.ttl = 0
	_ = p.limiter("old")
	p.cleanupN = 999
	_ = p.limiter("new")
	if _, ok := p.buckets["old"]; ok {
		t.Fatalf("idle bucket not evicted")
	}
}

func TestSessionName(t *testing.T) {
	if got := SessionName("abc"); got != "reconciler-abc" {
		t.Fatalf("SessionName = %q", got)
	}
	long := SessionName(string(make([]byte, 100)))
	if len(long) != 64 {
		t.Fatalf("len=%d; want 64", len(long))
	}
}
