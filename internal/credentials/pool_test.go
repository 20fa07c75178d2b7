package credentials

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestPool(keys ...string) (*Pool, *clock) {
	clk := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := NewPool(keys, Config{
		ErrorThreshold:     3,
		BaseCooldown:       10 * time.Second,
		CooldownMultiplier: 2,
		MaxExponent:        3,
		FlatCooldown:       time.Minute,
	}, WithClock(clk.Now))
	return p, clk
}

func TestNextRoundRobin(t *testing.T) {
	p, _ := newTestPool("key-a", "key-b", "key-c")
	var got []string
	for i := 0; i < 6; i++ {
		c, ok := p.Next()
		if !ok {
			t.Fatalf("Next returned none")
		}
		got = append(got, c.Key)
	}
	want := "key-a key-b key-c key-a key-b key-c"
	if strings.Join(got, " ") != want {
		t.Errorf("order = %v", got)
	}
}

func TestNextEmptyPool(t *testing.T) {
	p, _ := newTestPool()
	if _, ok := p.Next(); ok {
		t.Fatalf("empty pool must return none")
	}
}

func TestNextSkipsCooldown(t *testing.T) {
	p, _ := newTestPool("key-a", "key-b")
	a, _ := p.Next()
	p.ReportError(a, 429)
	for i := 0; i < 3; i++ {
		c, _ := p.Next()
		if c.Key != "key-b" {
			t.Fatalf("expected key-b while key-a cools down, got %s", c.Key)
		}
	}
}

func TestLivenessUnderTotalCooldown(t *testing.T) {
	p, _ := newTestPool("key-a", "key-b", "key-c")
	a, _ := p.Next()
	b, _ := p.Next()
	c, _ := p.Next()
	// distinct expiries: a gets 2 errors (40s), b 3 errors (80s), c 1 error (20s)
	p.ReportError(a, 429)
	p.ReportError(a, 429)
	p.ReportError(b, 429)
	p.ReportError(b, 429)
	p.ReportError(b, 429)
	p.ReportError(c, 429)

	got, ok := p.Next()
	if !ok {
		t.Fatalf("Next must never return none for a non-empty pool")
	}
	if got.Key != "key-c" {
		t.Errorf("expected least-cooldown key-c, got %s", got.Key)
	}
	if st := p.Stats(); st.CoolingDown != 3 || st.Available != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestRateLimitCooldownGrowsAndCaps(t *testing.T) {
	p, _ := newTestPool("key-a")
	c, _ := p.Next()
	want := []time.Duration{20 * time.Second, 40 * time.Second, 80 * time.Second, 80 * time.Second}
	for i, w := range want {
		p.ReportError(c, 429)
		if got := p.DetailedStatus()[0].CooldownRemaining; got != w {
			t.Errorf("after %d rate limits cooldown = %v, want %v", i+1, got, w)
		}
	}
	if !p.DetailedStatus()[0].Healthy {
		t.Errorf("rate limiting alone must not mark unhealthy")
	}
}

func TestErrorThresholdMarksUnhealthy(t *testing.T) {
	p, clk := newTestPool("key-a", "key-b")
	a, _ := p.Next()
	p.ReportError(a, 500)
	p.ReportError(a, 500)
	if !p.DetailedStatus()[0].Healthy {
		t.Fatalf("below threshold should stay healthy")
	}
	p.ReportError(a, 500)
	st := p.DetailedStatus()[0]
	if st.Healthy || st.CooldownRemaining != time.Minute {
		t.Fatalf("expected unhealthy with flat cooldown, got %+v", st)
	}
	for i := 0; i < 2; i++ {
		if c, _ := p.Next(); c.Key != "key-b" {
			t.Fatalf("unhealthy key selected during cooldown")
		}
	}
	clk.Advance(time.Minute)
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		c, _ := p.Next()
		seen[c.Key] = true
	}
	if !seen["key-a"] {
		t.Errorf("key-a should return on probation after its cooldown")
	}
}

func TestProbationFailureRestartsCooldown(t *testing.T) {
	p, clk := newTestPool("key-a", "key-b")
	a, _ := p.Next()
	for i := 0; i < 3; i++ {
		p.ReportError(a, 500)
	}
	clk.Advance(time.Minute)

	// back on probation: one more failure benches it again
	p.ReportError(a, 500)
	st := p.DetailedStatus()[0]
	if st.Healthy || st.CooldownRemaining != time.Minute {
		t.Fatalf("probation failure should restart the flat cooldown, got %+v", st)
	}
	for i := 0; i < 2; i++ {
		if c, _ := p.Next(); c.Key != "key-b" {
			t.Fatalf("key-a selected while benched again")
		}
	}
}

func TestReportSuccessRecovers(t *testing.T) {
	p, _ := newTestPool("key-a")
	a, _ := p.Next()
	p.ReportError(a, 500)
	p.ReportError(a, 500)
	p.ReportError(a, 500)
	p.ReportSuccess(a)
	st := p.DetailedStatus()[0]
	if !st.Healthy || st.Errors != 2 {
		t.Errorf("after success: %+v", st)
	}
	for i := 0; i < 5; i++ {
		p.ReportSuccess(a)
	}
	if p.DetailedStatus()[0].Errors != 0 {
		t.Errorf("error counter must floor at zero")
	}
}

func TestDetailedStatusMasksKeys(t *testing.T) {
	p, _ := newTestPool("sk-proj-abcdefghijklmnop", "short")
	for _, s := range p.DetailedStatus() {
		if strings.Contains(s.Key, "abcdefghijkl") || s.Key == "short" {
			t.Errorf("key not masked: %q", s.Key)
		}
	}
	if got := Mask("sk-proj-abcdefghijklmnop"); got != "sk-p…mnop" {
		t.Errorf("Mask = %q", got)
	}
}

func TestResetClearsState(t *testing.T) {
	p, _ := newTestPool("key-a")
	a, _ := p.Next()
	p.ReportError(a, 429)
	p.Reset()
	st := p.DetailedStatus()[0]
	if st.Errors != 0 || st.Requests != 0 || st.CooldownRemaining != 0 || !st.Healthy {
		t.Errorf("reset left state: %+v", st)
	}
}

func TestStaleHandleIgnored(t *testing.T) {
	p, _ := newTestPool("key-a")
	p.ReportError(Credential{Key: "other", index: 0}, 429)
	p.ReportSuccess(Credential{Key: "key-a", index: 7})
	if st := p.DetailedStatus()[0]; st.Errors != 0 {
		t.Errorf("foreign handle mutated state: %+v", st)
	}
}

func TestConcurrentUse(t *testing.T) {
	p, _ := newTestPool("key-a", "key-b", "key-c", "key-d")
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c, ok := p.Next()
				if !ok {
					t.Errorf("none returned")
					return
				}
				if (i+j)%7 == 0 {
					p.ReportError(c, 429)
				} else {
					p.ReportSuccess(c)
				}
				_ = p.Stats()
			}
		}(i)
	}
	wg.Wait()
	if got := p.Stats().TotalRequests; got != 1600 {
		t.Errorf("total requests = %d, want 1600", got)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	p := NewPool([]string{"key-a"}, Config{RequestsPerMinute: 1})
	c, _ := p.Next()
	if err := p.Wait(context.Background(), c); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Wait(ctx, c); err == nil {
		t.Errorf("second Wait within the same minute should fail on a short context")
	}
}
