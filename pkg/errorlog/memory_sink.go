package errorlog

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Repository is a Sink whose entries can be listed and resolved
type Repository interface {
	Sink
	List(ctx context.Context, filter Filter) ([]*Record, error)
	Get(ctx context.Context, id int64) (*Record, error)
	MarkSolutioned(ctx context.Context, id int64, at *time.Time) error
}

var (
	_ Repository = (*DBSink)(nil)
	_ Repository = (*MemorySink)(nil)
)

// MemorySink keeps entries in process, for the memory driver and tests
type MemorySink struct {
	mu      sync.Mutex
	nextID  int64
	records []*Record
}

// NewMemorySink creates an empty in-memory sink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Record implements Sink
func (s *MemorySink) Record(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := entry.OccurredAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	s.nextID++
	s.records = append(s.records, &Record{
		ID:         s.nextID,
		Controller: entry.Controller,
		Function:   entry.Function,
		Message:    entry.Message,
		JSONError:  SerializeError(entry.Err),
		RequestID:  entry.RequestID,
		CreatedAt:  createdAt,
	})
	return nil
}

// List returns entries newest first
func (s *MemorySink) List(_ context.Context, filter Filter) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var matched []*Record
	for _, r := range s.records {
		if filter.OnlyOpen && r.SolutionedAt != nil {
			continue
		}
		c := *r
		matched = append(matched, &c)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	if filter.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Get returns one entry by id
func (s *MemorySink) Get(_ context.Context, id int64) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.ID == id {
			c := *r
			return &c, nil
		}
	}
	return nil, ErrEntryNotFound
}

// MarkSolutioned sets or clears solutioned_at
func (s *MemorySink) MarkSolutioned(_ context.Context, id int64, at *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.ID == id {
			if at == nil {
				r.SolutionedAt = nil
			} else {
				t := *at
				r.SolutionedAt = &t
			}
			return nil
		}
	}
	return ErrEntryNotFound
}
