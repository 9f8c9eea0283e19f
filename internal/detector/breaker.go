package detector

import (
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// BreakerConfig configures the circuit breaker placed in front of a detector.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32 `koanf:"failure_threshold"`
	// Timeout is how long the breaker stays open before a trial request.
	Timeout time.Duration `koanf:"timeout"`
}

// DefaultBreakerConfig returns the breaker settings used by the CLI.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Timeout:          10 * time.Second,
	}
}

// BreakerDetector wraps a Detector with a circuit breaker so a crashed or
// wedged landmark service fails fast instead of stalling every frame.
// While open, Detect returns gobreaker.ErrOpenState.
type BreakerDetector struct {
	inner Detector
	cb    *gobreaker.CircuitBreaker[[]HandLandmarks]
}

// NewBreakerDetector wraps inner with a circuit breaker.
func NewBreakerDetector(inner Detector, cfg BreakerConfig, logger *zap.Logger) *BreakerDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}

	settings := gobreaker.Settings{
		Name:        "detector",
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("detector breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &BreakerDetector{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[[]HandLandmarks](settings),
	}
}

// Detect runs the wrapped detector through the circuit breaker.
func (b *BreakerDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	return b.cb.Execute(func() ([]HandLandmarks, error) {
		return b.inner.Detect(frame)
	})
}

// State reports the current breaker state.
func (b *BreakerDetector) State() gobreaker.State {
	return b.cb.State()
}

// Close closes the wrapped detector.
func (b *BreakerDetector) Close() error {
	return b.inner.Close()
}
