package runner

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"

	"github.com/example/portal/loadgen/internal/config"
)

// thinkTime generates the wait between two scheduling turns of one user
// according to the configured distribution.
func thinkTime(cfg config.ThinkTimeConfig) time.Duration {
	switch cfg.Distribution {
	case "exponential":
		return exponentialDuration(cfg.Min, cfg.Max)
	default:
		return uniformDuration(cfg.Min, cfg.Max)
	}
}

// uniformDuration generates a uniformly distributed duration in [min, max].
func uniformDuration(min, max time.Duration) time.Duration {
	if min >= max {
		return min
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max-min)))
	if err != nil {
		return min
	}
	return min + time.Duration(n.Int64())
}

// exponentialDuration generates an exponentially shaped duration clamped to
// [min, max], biasing waits toward the minimum the way real users cluster.
func exponentialDuration(min, max time.Duration) time.Duration {
	if min >= max {
		return min
	}

	n, err := rand.Int(rand.Reader, big.NewInt(1<<30))
	if err != nil {
		return min
	}
	u := float64(n.Int64()) / float64(1<<30)
	if u >= 0.9999 {
		u = 0.9999
	}

	// Inverse transform with lambda chosen so most samples land in range.
	rangeNs := float64(max - min)
	lambda := 2.0 / rangeNs
	sample := time.Duration(-1.0 / lambda * math.Log(1.0-u))

	result := min + sample
	if result < min {
		return min
	}
	if result > max {
		return max
	}
	return result
}
