package checkout

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for order assembly.
var (
	// ErrNothingToOrder is the outcome of a checkout without any positive
	// cart line. No order is created.
	ErrNothingToOrder = errors.New("nothing to order")
	// ErrCustomerRequired is returned when assembly is attempted without a
	// customer.
	ErrCustomerRequired = errors.New("customer required")
)

// ArticleNotFoundError indicates an order line referencing an article that
// is not in the catalog.
type ArticleNotFoundError struct {
	ArticleID int64
}

func (e *ArticleNotFoundError) Error() string {
	return fmt.Sprintf("article %d not found", e.ArticleID)
}
