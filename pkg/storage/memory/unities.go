package memory

import (
	"context"
	"sort"

	"github.com/platinummonkey/pressroom/pkg/unity"
)

// UnityStore is the unity.Store view of a Store
type UnityStore struct {
	s *Store
}

// Unities returns the unity store sharing s's state and transactions
func (s *Store) Unities() *UnityStore {
	return &UnityStore{s: s}
}

// WithTx implements unity.Store
func (u *UnityStore) WithTx(ctx context.Context, fn func(tx unity.Store) error) error {
	return u.s.withTx(ctx, func(tx *Store) error { return fn(tx.Unities()) })
}

// ListUnities implements unity.Store
func (u *UnityStore) ListUnities(ctx context.Context) ([]*unity.Unity, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	out := make([]*unity.Unity, 0, len(u.s.st.unities))
	for _, row := range u.s.st.unities {
		c := copyUnity(row)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetUnity implements unity.Store
func (u *UnityStore) GetUnity(ctx context.Context, id int64) (*unity.Unity, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	row, ok := u.s.st.unities[id]
	if !ok {
		return nil, unity.ErrNotFound
	}
	c := copyUnity(row)
	return &c, nil
}

// CreateUnity implements unity.Store
func (u *UnityStore) CreateUnity(ctx context.Context, row *unity.Unity) error {
	defer u.s.lockWrite()()

	row.ID = u.s.nextID()
	u.s.st.unities[row.ID] = copyUnity(*row)
	return nil
}

// UpdateUnity implements unity.Store
func (u *UnityStore) UpdateUnity(ctx context.Context, row *unity.Unity) error {
	defer u.s.lockWrite()()

	if _, ok := u.s.st.unities[row.ID]; !ok {
		return unity.ErrNotFound
	}
	u.s.st.unities[row.ID] = copyUnity(*row)
	return nil
}

// DeleteUnity implements unity.Store
func (u *UnityStore) DeleteUnity(ctx context.Context, id int64) error {
	defer u.s.lockWrite()()

	if _, ok := u.s.st.unities[id]; !ok {
		return unity.ErrNotFound
	}
	delete(u.s.st.unities, id)
	return nil
}

func copyUnity(row unity.Unity) unity.Unity {
	if row.Latitude != nil {
		lat := *row.Latitude
		row.Latitude = &lat
	}
	if row.Longitude != nil {
		lng := *row.Longitude
		row.Longitude = &lng
	}
	row.Phones = append([]string(nil), row.Phones...)
	row.Emails = append([]string(nil), row.Emails...)
	return row
}
