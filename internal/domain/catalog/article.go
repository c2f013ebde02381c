// Package catalog holds the article records offered by the shop and the
// lookup used to resolve article references.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested article does not exist.
var ErrNotFound = errors.New("article not found")

// Article is a catalog item that can be placed in a cart or ordered.
type Article struct {
	ID        int64
	Label     string
	Price     decimal.Decimal
	Available bool
}

// Repository defines read and upsert operations for the article catalog.
type Repository interface {
	List(ctx context.Context) ([]Article, error)
	FindByID(ctx context.Context, id int64) (*Article, error)
	FindByIDs(ctx context.Context, ids []int64) ([]Article, error)
	Upsert(ctx context.Context, a *Article) error
}
