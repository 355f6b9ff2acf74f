package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics mirrors the Prometheus domain metrics as OpenTelemetry instruments
type OTelMetrics struct {
	loginAttempts    metric.Int64Counter
	accountLockouts  metric.Int64Counter
	tokenValidations metric.Int64Counter
	tokenSweeps      metric.Int64Counter
	tokensSwept      metric.Int64Counter
	uploads          metric.Int64Counter
	uploadBytes      metric.Int64Histogram
	uploadDuration   metric.Float64Histogram
	uploadDeletes    metric.Int64Counter
}

// NewOTelMetrics creates the instruments on a meter from provider
func NewOTelMetrics(provider metric.MeterProvider) (*OTelMetrics, error) {
	meter := provider.Meter("github.com/platinummonkey/pressroom")

	m := &OTelMetrics{}
	var err error

	if m.loginAttempts, err = meter.Int64Counter("pressroom.login.attempts",
		metric.WithDescription("Login attempts by outcome"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create login attempts counter: %w", err)
	}

	if m.accountLockouts, err = meter.Int64Counter("pressroom.account.lockouts",
		metric.WithDescription("Accounts blocked after too many failed logins"),
		metric.WithUnit("{account}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create lockouts counter: %w", err)
	}

	if m.tokenValidations, err = meter.Int64Counter("pressroom.token.validations",
		metric.WithDescription("Bearer token validations by result"),
		metric.WithUnit("{validation}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create token validations counter: %w", err)
	}

	if m.tokenSweeps, err = meter.Int64Counter("pressroom.token.sweeps",
		metric.WithDescription("Expired token sweep runs"),
		metric.WithUnit("{run}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create token sweeps counter: %w", err)
	}

	if m.tokensSwept, err = meter.Int64Counter("pressroom.token.swept",
		metric.WithDescription("Expired tokens deleted by the sweeper"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create swept tokens counter: %w", err)
	}

	if m.uploads, err = meter.Int64Counter("pressroom.uploads",
		metric.WithDescription("Stored uploads by collection and status"),
		metric.WithUnit("{file}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create uploads counter: %w", err)
	}

	if m.uploadBytes, err = meter.Int64Histogram("pressroom.upload.size",
		metric.WithDescription("Size of stored uploads"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, fmt.Errorf("failed to create upload size histogram: %w", err)
	}

	if m.uploadDuration, err = meter.Float64Histogram("pressroom.upload.duration",
		metric.WithDescription("Time spent storing an upload"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create upload duration histogram: %w", err)
	}

	if m.uploadDeletes, err = meter.Int64Counter("pressroom.upload.deletes",
		metric.WithDescription("Deleted uploads by collection and status"),
		metric.WithUnit("{file}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create upload deletes counter: %w", err)
	}

	return m, nil
}

func statusAttr(err error) attribute.KeyValue {
	if err != nil {
		return attribute.String("status", "error")
	}
	return attribute.String("status", "ok")
}

// RecordLogin counts a login attempt
func (m *OTelMetrics) RecordLogin(outcome string) {
	m.loginAttempts.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordLockout counts a blocked account
func (m *OTelMetrics) RecordLockout() {
	m.accountLockouts.Add(context.Background(), 1)
}

// RecordTokenValidation counts a bearer token check
func (m *OTelMetrics) RecordTokenValidation(result string) {
	m.tokenValidations.Add(context.Background(), 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordSweep counts a sweeper run
func (m *OTelMetrics) RecordSweep(deleted int64, err error) {
	ctx := context.Background()
	m.tokenSweeps.Add(ctx, 1, metric.WithAttributes(statusAttr(err)))
	if err == nil && deleted > 0 {
		m.tokensSwept.Add(ctx, deleted)
	}
}

// RecordUpload records one stored (or failed) upload
func (m *OTelMetrics) RecordUpload(collection string, bytes int64, duration time.Duration, err error) {
	ctx := context.Background()
	coll := attribute.String("collection", collection)
	m.uploads.Add(ctx, 1, metric.WithAttributes(coll, statusAttr(err)))
	m.uploadDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(coll))
	if err == nil {
		m.uploadBytes.Record(ctx, bytes, metric.WithAttributes(coll))
	}
}

// RecordUploadDelete counts a removed upload
func (m *OTelMetrics) RecordUploadDelete(collection string, err error) {
	m.uploadDeletes.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("collection", collection), statusAttr(err)))
}

// DomainRecorder is implemented by both metric backends
type DomainRecorder interface {
	RecordLogin(outcome string)
	RecordLockout()
	RecordTokenValidation(result string)
	RecordSweep(deleted int64, err error)
	RecordUpload(collection string, bytes int64, duration time.Duration, err error)
	RecordUploadDelete(collection string, err error)
}

// Recorders fans each observation out to every backend
type Recorders []DomainRecorder

func (rs Recorders) RecordLogin(outcome string) {
	for _, r := range rs {
		r.RecordLogin(outcome)
	}
}

func (rs Recorders) RecordLockout() {
	for _, r := range rs {
		r.RecordLockout()
	}
}

func (rs Recorders) RecordTokenValidation(result string) {
	for _, r := range rs {
		r.RecordTokenValidation(result)
	}
}

func (rs Recorders) RecordSweep(deleted int64, err error) {
	for _, r := range rs {
		r.RecordSweep(deleted, err)
	}
}

func (rs Recorders) RecordUpload(collection string, bytes int64, duration time.Duration, err error) {
	for _, r := range rs {
		r.RecordUpload(collection, bytes, duration, err)
	}
}

func (rs Recorders) RecordUploadDelete(collection string, err error) {
	for _, r := range rs {
		r.RecordUploadDelete(collection, err)
	}
}
