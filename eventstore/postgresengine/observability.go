package postgresengine

import (
	"context"
	"math"
	"time"
)

const (
	metricQueryDuration     = "eventstore.query.duration"
	metricAppendDuration    = "eventstore.append.duration"
	metricTombstoneDuration = "eventstore.tombstone.duration"
	metricAggregateDuration = "eventstore.aggregate.duration"
	metricVersionConflicts  = "eventstore.version.conflicts"

	labelOperation = "operation"
	labelTable     = "table"
)

// logDebugContext logs at debug level, preferring the contextual logger when configured.
func (es EventStore) logDebugContext(ctx context.Context, msg string, args ...any) {
	switch {
	case es.contextualLogger != nil:
		es.contextualLogger.DebugContext(ctx, msg, args...)
	case es.logger != nil:
		es.logger.Debug(msg, args...)
	}
}

// logInfoContext logs at info level, preferring the contextual logger when configured.
func (es EventStore) logInfoContext(ctx context.Context, msg string, args ...any) {
	switch {
	case es.contextualLogger != nil:
		es.contextualLogger.InfoContext(ctx, msg, args...)
	case es.logger != nil:
		es.logger.Info(msg, args...)
	}
}

// logWarnContext logs at warn level, preferring the contextual logger when configured.
func (es EventStore) logWarnContext(ctx context.Context, msg string, args ...any) {
	switch {
	case es.contextualLogger != nil:
		es.contextualLogger.WarnContext(ctx, msg, args...)
	case es.logger != nil:
		es.logger.Warn(msg, args...)
	}
}

// logErrorContext logs at error level, preferring the contextual logger when configured.
func (es EventStore) logErrorContext(ctx context.Context, msg string, args ...any) {
	switch {
	case es.contextualLogger != nil:
		es.contextualLogger.ErrorContext(ctx, msg, args...)
	case es.logger != nil:
		es.logger.Error(msg, args...)
	}
}

// recordDuration records an operation duration metric if a collector is configured.
func (es EventStore) recordDuration(metric string, operation string, duration time.Duration) {
	if es.metricsCollector == nil {
		return
	}

	es.metricsCollector.RecordDuration(metric, duration, map[string]string{
		labelOperation: operation,
		labelTable:     es.eventTableName,
	})
}

// incrementCounter increments an operation counter metric if a collector is configured.
func (es EventStore) incrementCounter(metric string, operation string) {
	if es.metricsCollector == nil {
		return
	}

	es.metricsCollector.IncrementCounter(metric, map[string]string{
		labelOperation: operation,
		labelTable:     es.eventTableName,
	})
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
