package credentials

import "time"

// Stats aggregates pool health.
type Stats struct {
	Total         int   `json:"total"`
	Healthy       int   `json:"healthy"`
	CoolingDown   int   `json:"cooling_down"`
	Available     int   `json:"available"`
	TotalRequests int64 `json:"total_requests"`
}

// Status describes one credential. The value is always masked.
type Status struct {
	Key               string        `json:"key"`
	Requests          int64         `json:"requests"`
	LastUsed          time.Time     `json:"last_used,omitempty"`
	CooldownUntil     time.Time     `json:"cooldown_until,omitempty"`
	CooldownRemaining time.Duration `json:"cooldown_remaining"`
	Errors            int           `json:"errors"`
	Healthy           bool          `json:"healthy"`
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	st := Stats{Total: len(p.recs)}
	for _, r := range p.recs {
		st.TotalRequests += r.requests
		if r.healthy {
			st.Healthy++
		}
		if p.available(r, now) {
			st.Available++
		} else {
			st.CoolingDown++
		}
	}
	return st
}

func (p *Pool) DetailedStatus() []Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	out := make([]Status, 0, len(p.recs))
	for _, r := range p.recs {
		s := Status{
			Key:           Mask(r.value),
			Requests:      r.requests,
			LastUsed:      r.lastUsed,
			CooldownUntil: r.cooldownUntil,
			Errors:        r.errors,
			Healthy:       r.healthy,
		}
		if now.Before(r.cooldownUntil) {
			s.CooldownRemaining = r.cooldownUntil.Sub(now)
		}
		out = append(out, s)
	}
	return out
}

// Mask keeps at most the first four and last four characters.
func Mask(key string) string {
	r := []rune(key)
	switch {
	case len(r) == 0:
		return ""
	case len(r) <= 8:
		return "****"
	case len(r) <= 12:
		return string(r[:2]) + "…" + string(r[len(r)-2:])
	default:
		return string(r[:4]) + "…" + string(r[len(r)-4:])
	}
}
