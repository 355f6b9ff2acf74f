package errorlog

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/pressroom/pkg/observability"
)

// Sink records handled failures
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// Report records entry on sink, filling request id and time when absent.
// A recording failure is logged and swallowed.
func Report(ctx context.Context, sink Sink, logger *observability.Logger, entry Entry) {
	if sink == nil {
		return
	}
	if entry.RequestID == "" {
		entry.RequestID = observability.GetRequestID(ctx)
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}

	if err := sink.Record(ctx, entry); err != nil && logger != nil {
		logger.WithError(err).
			WithField("controller", entry.Controller).
			WithField("function", entry.Function).
			Warn("failed to record error log entry")
	}
}

// NopSink discards entries
type NopSink struct{}

// Record implements Sink
func (NopSink) Record(context.Context, Entry) error { return nil }

// LogSink writes entries to the structured logger
type LogSink struct {
	logger *observability.Logger
}

// NewLogSink creates a sink writing to logger
func NewLogSink(logger *observability.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Record implements Sink
func (s *LogSink) Record(ctx context.Context, entry Entry) error {
	l := s.logger.WithFields(map[string]interface{}{
		"controller": entry.Controller,
		"function":   entry.Function,
	})
	if entry.RequestID != "" {
		l = l.WithField("request_id", entry.RequestID)
	}
	l.WithError(entry.Err).Error(entry.Message)
	return nil
}

// MultiSink records to every sink, continuing past failures
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a sink fanning out to sinks
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Record implements Sink. Returns the joined errors of failing sinks.
func (m *MultiSink) Record(ctx context.Context, entry Entry) error {
	var errs []error
	for _, sink := range m.sinks {
		if err := sink.Record(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
