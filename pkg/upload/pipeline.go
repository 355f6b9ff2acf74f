package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/pressroom/pkg/apperr"
	"github.com/platinummonkey/pressroom/pkg/observability"
)

// Recorder receives upload metrics
type Recorder interface {
	RecordUpload(collection string, bytes int64, duration time.Duration, err error)
	RecordUploadDelete(collection string, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordUpload(string, int64, time.Duration, error) {}
func (nopRecorder) RecordUploadDelete(string, error)                 {}

// Stored is the result of a successful Store
type Stored struct {
	Location    Location `json:"location"`
	URL         string   `json:"url"`
	Size        int64    `json:"size"`
	ContentType string   `json:"content_type"`
}

// Pipeline validates, transforms and persists uploads
type Pipeline struct {
	backend Backend
	mapper  Mapper
	logger  *observability.Logger
	metrics Recorder
	now     func() time.Time
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithLogger sets the pipeline logger
func WithLogger(logger *observability.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// WithRecorder sets the metrics recorder
func WithRecorder(recorder Recorder) PipelineOption {
	return func(p *Pipeline) { p.metrics = recorder }
}

// WithNow overrides the time source used for timestamp names
func WithNow(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a pipeline writing to backend
func NewPipeline(backend Backend, mapper Mapper, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		backend: backend,
		mapper:  mapper,
		logger:  observability.NewNopLogger(),
		metrics: nopRecorder{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Mapper returns the location mapper
func (p *Pipeline) Mapper() Mapper {
	return p.mapper
}

// Backend returns the storage backend
func (p *Pipeline) Backend() Backend {
	return p.backend
}

// Validate checks file against c
func (p *Pipeline) Validate(file *File, c Constraints) error {
	return Validate(file, c)
}

// Store validates file, applies the spec's transform and writes it
func (p *Pipeline) Store(ctx context.Context, file *File, spec Spec) (*Stored, error) {
	const op = "upload.Store"

	if err := Validate(file, spec.Constraints); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "upload.Store",
		trace.WithAttributes(
			attribute.String("upload.collection", spec.Collection),
			attribute.String("upload.transform", spec.Transform.String()),
			attribute.Int64("upload.declared_size", file.Size),
		),
	)
	defer span.End()

	start := time.Now()
	stored, err := p.store(ctx, file, spec)
	var size int64
	if stored != nil {
		size = stored.Size
	}
	p.metrics.RecordUpload(spec.Collection, size, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		p.logger.WithError(err).WithField("collection", spec.Collection).Error("upload failed")

		var decodeErr *ErrDecode
		switch {
		case errors.Is(err, ErrTooLarge):
			return nil, apperr.Wrap(apperr.KindValidation, op,
				"File too large. Maximum size is "+formatBytes(spec.Constraints.MaxBytes)+".", err)
		case errors.As(err, &decodeErr):
			return nil, apperr.Wrap(apperr.KindValidation, op, "Failed to process image.", err)
		default:
			return nil, apperr.Internal(op, err)
		}
	}

	span.SetStatus(codes.Ok, "stored")
	return stored, nil
}

func (p *Pipeline) store(ctx context.Context, file *File, spec Spec) (*Stored, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var src io.Reader = rc
	if spec.Constraints.MaxBytes > 0 {
		src = &cappedReader{r: rc, remaining: spec.Constraints.MaxBytes}
	}

	contentType := file.DetectedType()
	ext := file.Extension()

	if spec.Transform.Kind != TransformNone && isImage(contentType) {
		data, err := applyTransform(src, spec.Transform)
		if err != nil {
			// a stream cut short by the cap surfaces as a decode error
			if capped, ok := src.(*cappedReader); ok && capped.remaining < 0 {
				return nil, ErrTooLarge
			}
			return nil, err
		}
		src = bytes.NewReader(data)
		contentType = "image/jpeg"
		ext = ".jpg"
	}

	loc := Location{Collection: spec.Collection, Name: p.generateName(spec.Naming, ext)}

	written, err := p.backend.Put(ctx, loc, src, contentType)
	if err != nil {
		return nil, err
	}

	p.logger.WithFields(map[string]interface{}{
		"collection": loc.Collection,
		"name":       loc.Name,
		"bytes":      written,
	}).Debug("upload stored")

	return &Stored{
		Location:    loc,
		URL:         p.mapper.URL(loc),
		Size:        written,
		ContentType: contentType,
	}, nil
}

func (p *Pipeline) generateName(naming Naming, ext string) string {
	switch naming {
	case NameTimestamp:
		return strconv.FormatInt(p.now().UnixMilli(), 10) + ext
	default:
		return uuid.NewString() + ext
	}
}

// Replace stores file and then deletes old (best effort). The old file is
// untouched when file is rejected or cannot be processed.
// A nil or zero old location behaves like Store.
func (p *Pipeline) Replace(ctx context.Context, old *Location, file *File, spec Spec) (*Stored, error) {
	stored, err := p.Store(ctx, file, spec)
	if err != nil {
		return nil, err
	}
	if old != nil && !old.IsZero() && *old != stored.Location {
		p.Delete(ctx, *old)
	}
	return stored, nil
}

// Delete removes loc. Failures are logged, never returned: a missing file
// must not block deletion of the owning record.
func (p *Pipeline) Delete(ctx context.Context, loc Location) {
	if loc.IsZero() {
		return
	}

	err := p.backend.Delete(ctx, loc)
	switch {
	case err == nil:
		p.metrics.RecordUploadDelete(loc.Collection, nil)
	case errors.Is(err, ErrNotExist):
		p.metrics.RecordUploadDelete(loc.Collection, nil)
		p.logger.WithField("key", loc.Key()).Warn("upload to delete was already missing")
	default:
		p.metrics.RecordUploadDelete(loc.Collection, err)
		p.logger.WithError(err).WithField("key", loc.Key()).Warn("failed to delete upload")
	}
}

// Open streams a stored file
func (p *Pipeline) Open(ctx context.Context, loc Location) (io.ReadCloser, *ObjectInfo, error) {
	rc, info, err := p.backend.Open(ctx, loc)
	if errors.Is(err, ErrNotExist) {
		return nil, nil, apperr.NotFound("upload.Open", "File not found.")
	}
	if err != nil {
		return nil, nil, apperr.Internal("upload.Open", err)
	}
	return rc, info, nil
}
