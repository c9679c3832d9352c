package eventsvc

import (
	"math"
	"math/rand"
	"time"
)

// BackoffConfig holds the configuration for exponential dial backoff.
type BackoffConfig struct {
	Initial    time.Duration // Initial delay (default: 50ms)
	Max        time.Duration // Maximum delay (default: 1s)
	Multiplier float64       // Multiplier for each attempt (default: 1.7)
	JitterPct  float64       // Jitter as a fraction of delay (default: 0.4 = ±20%)
}

// DefaultBackoffConfig returns dial retry defaults. A child races the parent
// only for the few milliseconds between fork and the proxy accept loop, so
// the delays stay small.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    50 * time.Millisecond,
		Max:        1 * time.Second,
		Multiplier: 1.7,
		JitterPct:  0.4, // ±20% jitter
	}
}

// backoff calculates exponential dial delays with jitter.
type backoff struct {
	config   BackoffConfig
	attempts int
	rng      *rand.Rand
}

func newBackoff(cfg BackoffConfig) *backoff {
	return &backoff{
		config: cfg,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// next returns the next delay and increments the attempt counter.
func (b *backoff) next() time.Duration {
	// Base delay: initial * multiplier^attempts, capped at Max
	delay := float64(b.config.Initial) * math.Pow(b.config.Multiplier, float64(b.attempts))
	if delay > float64(b.config.Max) {
		delay = float64(b.config.Max)
	}

	// Add jitter: ±(JitterPct/2) of the delay
	if b.config.JitterPct > 0 {
		jitterRange := delay * b.config.JitterPct
		delay += jitterRange*b.rng.Float64() - jitterRange/2
	}

	if delay < 0 {
		delay = 0
	}

	b.attempts++
	return time.Duration(delay)
}
