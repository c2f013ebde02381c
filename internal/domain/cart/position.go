package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/xenking/webshop/internal/domain/order"
)

// Position is a persisted cart row of a customer, ordered in bulk through
// the API.
type Position struct {
	ID         int64
	CustomerID int64
	ArticleID  int64
	Quantity   int
	CreatedAt  time.Time
}

// InvalidQuantityError indicates a position quantity outside
// [1, order.MaxQuantity].
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity %d must be between 1 and %d", e.Quantity, order.MaxQuantity)
}

// PositionRepository defines persistence operations for cart positions.
type PositionRepository interface {
	Create(ctx context.Context, p *Position) error
	FindByCustomer(ctx context.Context, customerID int64) ([]Position, error)
	// LockByCustomer returns the positions of a customer locked for the
	// rest of the transaction in ctx.
	LockByCustomer(ctx context.Context, customerID int64) ([]Position, error)
	// Delete removes the listed positions of a customer.
	Delete(ctx context.Context, customerID int64, ids []int64) (int64, error)
}
