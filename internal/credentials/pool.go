package credentials

import (
	"context"
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config tunes cooldowns. Zero values are replaced with defaults.
type Config struct {
	ErrorThreshold     int
	BaseCooldown       time.Duration
	CooldownMultiplier float64
	MaxExponent        int
	FlatCooldown       time.Duration
	RequestsPerMinute  int // per credential; 0 disables pacing
}

func (c *Config) fillDefaults() {
	if c.ErrorThreshold <= 0 {
		c.ErrorThreshold = 3
	}
	if c.BaseCooldown <= 0 {
		c.BaseCooldown = 30 * time.Second
	}
	if c.CooldownMultiplier <= 1 {
		c.CooldownMultiplier = 2
	}
	if c.MaxExponent <= 0 {
		c.MaxExponent = 5
	}
	if c.FlatCooldown <= 0 {
		c.FlatCooldown = 5 * time.Minute
	}
}

// Credential is a handle returned by Next. Report outcomes with the same handle.
type Credential struct {
	Key   string
	index int
}

// Masked returns the credential value safe for logs.
func (c Credential) Masked() string { return Mask(c.Key) }

type record struct {
	value         string
	requests      int64
	lastUsed      time.Time
	cooldownUntil time.Time
	errors        int
	healthy       bool
	limiter       *rate.Limiter
}

// Pool rotates API credentials round-robin, skipping ones in cooldown.
type Pool struct {
	cfg Config
	now func() time.Time

	mu     sync.Mutex
	recs   []*record
	cursor int
}

// Option configures a Pool.
type Option func(*Pool)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// NewPool creates a pool from credential values. Blank values are skipped.
func NewPool(keys []string, cfg Config, opts ...Option) *Pool {
	cfg.fillDefaults()
	p := &Pool{cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	for _, k := range keys {
		if k == "" {
			continue
		}
		r := &record{value: k, healthy: true}
		if cfg.RequestsPerMinute > 0 {
			r.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
		}
		p.recs = append(p.recs, r)
	}
	return p
}

// Size returns the number of credentials.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.recs)
}

// Next selects the next credential not in cooldown, starting after the last
// selection. When every credential is cooling down it returns the one whose
// cooldown ends first. It returns false only for an empty pool.
func (p *Pool) Next() (Credential, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.recs)
	if n == 0 {
		return Credential{}, false
	}
	now := p.now()
	idx := -1
	for i := 0; i < n; i++ {
		j := (p.cursor + i) % n
		if p.available(p.recs[j], now) {
			idx = j
			break
		}
	}
	if idx < 0 {
		idx = 0
		for j := 1; j < n; j++ {
			if p.recs[j].cooldownUntil.Before(p.recs[idx].cooldownUntil) {
				idx = j
			}
		}
	}
	r := p.recs[idx]
	r.requests++
	r.lastUsed = now
	p.cursor = (idx + 1) % n
	return Credential{Key: r.value, index: idx}, true
}

// available is true once any cooldown has elapsed. Unhealthy credentials
// carry the flat cooldown and come back on probation after it.
func (p *Pool) available(r *record, now time.Time) bool {
	return !now.Before(r.cooldownUntil)
}

// Wait blocks until the credential's rate limiter admits a request.
func (p *Pool) Wait(ctx context.Context, c Credential) error {
	r := p.record(c)
	if r == nil || r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}

// ReportSuccess decrements the error counter and marks the credential healthy.
func (p *Pool) ReportSuccess(c Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.recordLocked(c)
	if r == nil {
		return
	}
	if r.errors > 0 {
		r.errors--
	}
	r.healthy = true
}

// ReportError records a failed call. A 429 sets an exponential cooldown;
// other failures past the error threshold set a flat cooldown and mark the
// credential unhealthy.
func (p *Pool) ReportError(c Credential, statusCode int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.recordLocked(c)
	if r == nil {
		return
	}
	r.errors++
	now := p.now()
	switch {
	case statusCode == http.StatusTooManyRequests:
		exp := r.errors
		if exp > p.cfg.MaxExponent {
			exp = p.cfg.MaxExponent
		}
		d := time.Duration(float64(p.cfg.BaseCooldown) * math.Pow(p.cfg.CooldownMultiplier, float64(exp)))
		r.cooldownUntil = now.Add(d)
	case r.errors >= p.cfg.ErrorThreshold:
		r.cooldownUntil = now.Add(p.cfg.FlatCooldown)
		r.healthy = false
	}
}

// Reset clears counters and cooldowns on every credential.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.recs {
		r.requests = 0
		r.lastUsed = time.Time{}
		r.cooldownUntil = time.Time{}
		r.errors = 0
		r.healthy = true
	}
	p.cursor = 0
}

func (p *Pool) record(c Credential) *record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recordLocked(c)
}

func (p *Pool) recordLocked(c Credential) *record {
	if c.index < 0 || c.index >= len(p.recs) || p.recs[c.index].value != c.Key {
		return nil
	}
	return p.recs[c.index]
}
