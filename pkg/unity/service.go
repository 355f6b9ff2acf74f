package unity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/platinummonkey/pressroom/pkg/apperr"
	"github.com/platinummonkey/pressroom/pkg/errorlog"
	"github.com/platinummonkey/pressroom/pkg/observability"
	"github.com/platinummonkey/pressroom/pkg/upload"
)

const controllerName = "UnityController"

// MsgNotFound is returned for unknown unity ids
const MsgNotFound = "Unity not found."

// Service implements the unity resource
type Service struct {
	store    Store
	pipeline *upload.Pipeline
	sink     errorlog.Sink
	logger   *observability.Logger
	now      func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithErrorSink records internal failures
func WithErrorSink(sink errorlog.Sink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithLogger sets the service logger
func WithLogger(logger *observability.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithNow overrides the time source
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a unity service
func NewService(store Store, pipeline *upload.Pipeline, opts ...Option) *Service {
	s := &Service{
		store:    store,
		pipeline: pipeline,
		sink:     errorlog.NopSink{},
		logger:   observability.NewNopLogger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every unity
func (s *Service) List(ctx context.Context) ([]*Unity, error) {
	unities, err := s.store.ListUnities(ctx)
	if err != nil {
		return nil, s.internal(ctx, "unity.List", "index", err)
	}
	for _, u := range unities {
		s.decorate(u)
	}
	return unities, nil
}

// Get returns one unity
func (s *Service) Get(ctx context.Context, id int64) (*Unity, error) {
	const op = "unity.Get"

	u, err := s.store.GetUnity(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound(op, MsgNotFound)
	}
	if err != nil {
		return nil, s.internal(ctx, op, "show", err)
	}
	s.decorate(u)
	return u, nil
}

// Create stores the banner (when given) and inserts the unity.
// The banner is removed again if the insert fails.
func (s *Service) Create(ctx context.Context, in Input, banner *upload.File) (*Unity, error) {
	const op = "unity.Create"

	if err := validateInput(op, in); err != nil {
		return nil, err
	}

	now := s.now()
	u := &Unity{CreatedAt: now, UpdatedAt: now}
	apply(u, in)

	var stored *upload.Stored
	if banner != nil {
		var err error
		stored, err = s.pipeline.Store(ctx, banner, upload.UnityBanner)
		if err != nil {
			return nil, s.uploadError(ctx, "store", err)
		}
		u.Banner = stored.Location.Key()
	}

	err := s.store.WithTx(ctx, func(tx Store) error {
		return tx.CreateUnity(ctx, u)
	})
	if err != nil {
		if stored != nil {
			s.pipeline.Delete(ctx, stored.Location)
		}
		return nil, s.internal(ctx, op, "store", err)
	}

	s.decorate(u)
	return u, nil
}

// Update rewrites the unity's fields and replaces its banner when a new one
// is given. The previous banner is deleted before the new one is written.
func (s *Service) Update(ctx context.Context, id int64, in Input, banner *upload.File) (*Unity, error) {
	const op = "unity.Update"

	if err := validateInput(op, in); err != nil {
		return nil, err
	}

	var (
		updated *Unity
		stored  *upload.Stored
	)
	err := s.store.WithTx(ctx, func(tx Store) error {
		u, err := tx.GetUnity(ctx, id)
		if err != nil {
			return err
		}
		apply(u, in)
		u.UpdatedAt = s.now()

		if banner != nil {
			var old *upload.Location
			if loc, err := upload.ParseKey(u.Banner); err == nil {
				old = &loc
			}
			stored, err = s.pipeline.Replace(ctx, old, banner, upload.UnityBanner)
			if err != nil {
				return err
			}
			u.Banner = stored.Location.Key()
		}

		updated = u
		return tx.UpdateUnity(ctx, u)
	})
	if err != nil && stored != nil {
		s.pipeline.Delete(ctx, stored.Location)
	}
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound(op, MsgNotFound)
	}
	if _, ok := apperr.As(err); ok {
		return nil, s.uploadError(ctx, "update", err)
	}
	if err != nil {
		return nil, s.internal(ctx, op, "update", err)
	}

	s.decorate(updated)
	return updated, nil
}

// Delete removes the banner file (best effort) and then the row
func (s *Service) Delete(ctx context.Context, id int64) error {
	const op = "unity.Delete"

	u, err := s.store.GetUnity(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound(op, MsgNotFound)
	}
	if err != nil {
		return s.internal(ctx, op, "destroy", err)
	}

	if loc, err := upload.ParseKey(u.Banner); err == nil {
		s.pipeline.Delete(ctx, loc)
	}

	if err := s.store.DeleteUnity(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound(op, MsgNotFound)
		}
		return s.internal(ctx, op, "destroy", err)
	}

	s.logger.WithField("unity_id", id).Info("unity deleted")
	return nil
}

func (s *Service) decorate(u *Unity) {
	if u.Phones == nil {
		u.Phones = []string{}
	}
	if u.Emails == nil {
		u.Emails = []string{}
	}
	u.BannerURL = ""
	if loc, err := upload.ParseKey(u.Banner); err == nil {
		u.BannerURL = s.pipeline.Mapper().URL(loc)
	}
}

// uploadError passes client-facing pipeline errors through and records internal ones
func (s *Service) uploadError(ctx context.Context, function string, err error) error {
	if apperr.KindOf(err) == apperr.KindInternal {
		s.record(ctx, function, err)
	}
	return err
}

func (s *Service) internal(ctx context.Context, op, function string, err error) error {
	s.record(ctx, function, err)
	s.logger.WithError(err).WithField("op", op).Error("unity operation failed")
	return apperr.Internal(op, err)
}

func (s *Service) record(ctx context.Context, function string, err error) {
	errorlog.Report(ctx, s.sink, s.logger, errorlog.Entry{
		Controller: controllerName,
		Function:   function,
		Message:    "Error on " + function,
		Err:        err,
	})
}

func validateInput(op string, in Input) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Validation(op, "Name is required.")
	}
	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90) {
		return apperr.Validation(op, "Latitude must be between -90 and 90.")
	}
	if in.Longitude != nil && (*in.Longitude < -180 || *in.Longitude > 180) {
		return apperr.Validation(op, "Longitude must be between -180 and 180.")
	}
	return nil
}

func apply(u *Unity, in Input) {
	u.Name = strings.TrimSpace(in.Name)
	u.Address = strings.TrimSpace(in.Address)
	u.CEP = strings.TrimSpace(in.CEP)
	u.Latitude = in.Latitude
	u.Longitude = in.Longitude
	u.Phones = compact(in.Phones)
	u.Emails = compact(in.Emails)
}

// compact trims entries and drops blanks
func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
