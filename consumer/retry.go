package consumer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/AntonStoeckl/process-projector-go/projector"
)

const (
	defaultMaxAttempts  = 6
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

const (
	metricFlushRetries           = "projector_flush_retries_total"
	metricFlushRetryDelay        = "projector_flush_retry_delay_seconds"
	metricFlushMaxRetriesReached = "projector_flush_max_retries_reached_total"
	labelAttemptNumber           = "attempt_number"
	labelErrorType               = "error_type"
	labelFinalErrorType          = "final_error_type"
)

var (
	// ErrNilMetricsCollector is returned when a nil metrics collector is provided to WithRetryMetrics.
	ErrNilMetricsCollector = errors.New("metrics collector must not be nil")

	// ErrEmptyPartitionLabel is returned when an empty partition label is provided to WithRetryMetrics.
	ErrEmptyPartitionLabel = errors.New("partition label must not be empty")

	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// RetryableFunc represents a function that can be retried.
type RetryableFunc func(ctx context.Context) error

type retryConfig struct {
	maxAttempts      int
	baseDelay        time.Duration
	jitterFactor     float64
	metricsCollector projector.MetricsCollector
	partition        string
}

func newRetryConfig(options ...RetryOption) (*retryConfig, error) {
	config := &retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// RetryWithExponentialBackoff executes fn and retries it with exponential backoff and jitter
// while it fails with projector.ErrFlushFailed, up to maxAttempts times.
//
// Retry Schedule (default): 0 ms, 10 ms, 20 ms, 40 ms, 80 ms, 160 ms (with 30% jitter)
//
// All other errors fail fast, a canceled context ends the retries with ctx.Err().
func RetryWithExponentialBackoff(
	ctx context.Context,
	fn RetryableFunc,
	options ...RetryOption,
) error {

	config, err := newRetryConfig(options...)
	if err != nil {
		return err
	}

	var lastErr error

	for attempt := 0; attempt < config.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := config.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * config.jitterFactor //nolint:gosec //math/rand is sufficient for jitter
			backoffDelay := delay + time.Duration(jitter)

			recordRetryDelayMetric(ctx, config, attempt, backoffDelay)

			select {
			case <-time.After(backoffDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !isRetryableError(lastErr) {
			return lastErr
		}

		recordRetryAttemptMetric(ctx, attempt, config, lastErr)
	}

	recordMaxRetriesReachedMetric(ctx, config, lastErr)

	return lastErr
}

func recordRetryDelayMetric(ctx context.Context, config *retryConfig, attempt int, backoffDelay time.Duration) {
	if config.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		logAttrPartitionID: config.partition,
		labelAttemptNumber: fmt.Sprintf("%d", attempt),
	}

	if contextualCollector, ok := config.metricsCollector.(projector.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricFlushRetryDelay, backoffDelay, labels)
	} else {
		config.metricsCollector.RecordDuration(metricFlushRetryDelay, backoffDelay, labels)
	}
}

// recordRetryAttemptMetric only counts attempts that will actually be retried.
func recordRetryAttemptMetric(ctx context.Context, attempt int, config *retryConfig, lastErr error) {
	if attempt >= config.maxAttempts-1 || config.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		logAttrPartitionID: config.partition,
		labelAttemptNumber: fmt.Sprintf("%d", attempt+1),
		labelErrorType:     getErrorType(lastErr),
	}

	if contextualCollector, ok := config.metricsCollector.(projector.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricFlushRetries, labels)
	} else {
		config.metricsCollector.IncrementCounter(metricFlushRetries, labels)
	}
}

func recordMaxRetriesReachedMetric(ctx context.Context, config *retryConfig, lastErr error) {
	if config.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		logAttrPartitionID:  config.partition,
		labelFinalErrorType: getErrorType(lastErr),
	}

	if contextualCollector, ok := config.metricsCollector.(projector.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricFlushMaxRetriesReached, labels)
	} else {
		config.metricsCollector.IncrementCounter(metricFlushMaxRetriesReached, labels)
	}
}

// isRetryableError determines if an error should be retried.
// Only failed flushes are retried, the window they keep is replayed as is.
func isRetryableError(err error) bool {
	return errors.Is(err, projector.ErrFlushFailed)
}

func getErrorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, projector.ErrFlushFailed):
		return "flush_failed"
	case errors.Is(err, context.Canceled):
		return "context_canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "context_deadline_exceeded"
	default:
		return "other"
	}
}

// RetryOption configures retry behavior using the functional options pattern.
type RetryOption func(*retryConfig) error

// WithMaxAttempts sets the maximum number of attempts, including the first one.
func WithMaxAttempts(attempts int) RetryOption {
	return func(config *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		config.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
// Actual delays: baseDelay, baseDelay*2, baseDelay*4, baseDelay*8, etc.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(config *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		config.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the jitter as a fraction of the calculated backoff delay.
// Valid range: 0.0 (no jitter) to 1.0 (100% jitter).
func WithJitterFactor(factor float64) RetryOption {
	return func(config *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		config.jitterFactor = factor

		return nil
	}
}

// WithRetryMetrics sets the metrics collector for retry instrumentation, labeled by partition.
func WithRetryMetrics(collector projector.MetricsCollector, partition string) RetryOption {
	return func(config *retryConfig) error {
		if collector == nil {
			return ErrNilMetricsCollector
		}

		if partition == "" {
			return ErrEmptyPartitionLabel
		}

		config.metricsCollector = collector
		config.partition = partition

		return nil
	}
}
