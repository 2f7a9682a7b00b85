package simulate

import (
	"math"
	"math/rand"
	"time"
)

// RetryConfig controls how long the simulated downloader waits before
// retrying a failed segment request.
type RetryConfig struct {
	Initial    time.Duration // first retry delay (default: 250ms)
	Max        time.Duration // cap on the retry delay (default: 4s)
	Multiplier float64       // growth per consecutive failure (default: 2)
	JitterPct  float64       // jitter as a fraction of delay (default: 0.4 = ±20%)
}

// DefaultRetryConfig returns the retry policy used by DefaultConfig.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Initial:    250 * time.Millisecond,
		Max:        4 * time.Second,
		Multiplier: 2,
		JitterPct:  0.4,
	}
}

// retryBackoff computes exponential retry delays with jitter drawn from the
// session's random source, so a seeded run is reproducible.
type retryBackoff struct {
	config   RetryConfig
	failures int
	rng      *rand.Rand
}

func newRetryBackoff(cfg RetryConfig, rng *rand.Rand) *retryBackoff {
	return &retryBackoff{config: cfg, rng: rng}
}

// next returns the delay before the next retry and counts the failure.
func (b *retryBackoff) next() time.Duration {
	delay := float64(b.config.Initial) * math.Pow(b.config.Multiplier, float64(b.failures))
	if delay > float64(b.config.Max) {
		delay = float64(b.config.Max)
	}

	// ±(JitterPct/2) of the delay
	if b.config.JitterPct > 0 {
		jitterRange := delay * b.config.JitterPct
		delay += jitterRange*b.rng.Float64() - jitterRange/2
	}
	if delay < 0 {
		delay = 0
	}

	b.failures++
	return time.Duration(delay)
}

// reset is called after a successful download.
func (b *retryBackoff) reset() {
	b.failures = 0
}

// sessionRand returns the random source for one session. The same seed and
// session index always produce the same sequence.
func sessionRand(seed int64, session int) *rand.Rand {
	return rand.New(rand.NewSource(int64(session) ^ seed))
}
