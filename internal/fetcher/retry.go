package fetcher

import (
	"math"
	"math/rand"
	"time"

	"github.com/datengrube/context-orchestrator/internal/domain"
)

// RetryPolicy controls backoff between fetch attempts. Rate-limited
// responses use RateLimitDelay as the base instead of BaseDelay.
type RetryPolicy struct {
	MaxRetries     int
	BaseDelay      time.Duration
	Multiplier     float64
	JitterRatio    float64
	RateLimitDelay time.Duration

	// rand returns a value in [0, 1); overridable in tests
	rand func() float64
}

// DefaultRetryPolicy returns the policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		BaseDelay:      250 * time.Millisecond,
		Multiplier:     2.0,
		JitterRatio:    0.2,
		RateLimitDelay: 2 * time.Second,
	}
}

// Delay returns the backoff before retry number attempt (0-based), given
// the error kind of the failed attempt.
func (p RetryPolicy) Delay(attempt int, kind domain.ErrorKind) time.Duration {
	base := p.BaseDelay
	if kind == domain.ErrRateLimited {
		base = p.RateLimitDelay
	}

	d := float64(base) * math.Pow(p.Multiplier, float64(attempt))

	if p.JitterRatio > 0 {
		r := p.rand
		if r == nil {
			r = rand.Float64
		}
		// Spread the delay across [1-ratio, 1+ratio]
		d *= 1 + p.JitterRatio*(2*r()-1)
	}

	return time.Duration(d)
}
