package unity

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when no unity matches
var ErrNotFound = errors.New("unity not found")

// Unity is a publisher location
type Unity struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	CEP       string    `json:"cep,omitempty"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	Phones    []string  `json:"phones"`
	Emails    []string  `json:"emails"`
	Banner    string    `json:"-"` // upload location key
	BannerURL string    `json:"banner,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Input carries the writable fields of a unity
type Input struct {
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	CEP       string   `json:"cep"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Phones    []string `json:"phones"`
	Emails    []string `json:"emails"`
}

// Store persists unities. WithTx runs fn in one unit of work.
type Store interface {
	ListUnities(ctx context.Context) ([]*Unity, error)
	GetUnity(ctx context.Context, id int64) (*Unity, error)
	CreateUnity(ctx context.Context, u *Unity) error
	UpdateUnity(ctx context.Context, u *Unity) error
	DeleteUnity(ctx context.Context, id int64) error
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
