// Package order models customer orders, their lines and the grand total
// rule.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/webshop/internal/domain/catalog"
)

// Sentinel errors for order validation and lookup.
var (
	ErrEmpty         = errors.New("order has no lines")
	ErrNotFound      = errors.New("order not found")
	ErrAlreadyPlaced = errors.New("order already belongs to a customer")
)

// MaxQuantity is the largest quantity of a single line.
const MaxQuantity = 9999

// MaxGrandTotal is the largest grand total that fits NUMERIC(14, 2).
var MaxGrandTotal = decimal.RequireFromString("999999999999.99")

// InvalidQuantityError indicates a line whose quantity is not in
// [1, MaxQuantity].
type InvalidQuantityError struct {
	ArticleID int64
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity %d for article %d must be between 1 and %d", e.Quantity, e.ArticleID, MaxQuantity)
}

// TotalTooLargeError indicates an order whose grand total exceeds
// MaxGrandTotal.
type TotalTooLargeError struct {
	Total decimal.Decimal
}

func (e *TotalTooLargeError) Error() string {
	return fmt.Sprintf("grand total %s exceeds %s", e.Total, MaxGrandTotal)
}

// FetchMode selects how much of an order graph a read loads.
type FetchMode int

const (
	// FetchOrderOnly loads the order header and its lines without articles.
	FetchOrderOnly FetchMode = iota
	// FetchWithArticles additionally resolves every line's article.
	FetchWithArticles
)

func (m FetchMode) String() string {
	switch m {
	case FetchOrderOnly:
		return "order_only"
	case FetchWithArticles:
		return "with_articles"
	default:
		return fmt.Sprintf("FetchMode(%d)", int(m))
	}
}

// Line is one ordered article with its quantity.
type Line struct {
	ArticleID int64
	Article   *catalog.Article
	Quantity  int
}

// Subtotal returns price times quantity. Only lines read with
// FetchOrderOnly lack an article; they yield zero. Orders are never
// assembled from such lines.
func (l Line) Subtotal() decimal.Decimal {
	if l.Article == nil {
		return decimal.Zero
	}
	return l.Article.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Label returns the article label, falling back to its id.
func (l Line) Label() string {
	if l.Article != nil && l.Article.Label != "" {
		return l.Article.Label
	}
	return fmt.Sprintf("article %d", l.ArticleID)
}

// Order is a customer order. ID is zero until the order is persisted and
// CustomerID is set once, when a customer takes ownership.
type Order struct {
	ID         int64
	CustomerID int64
	Lines      []Line
	GrandTotal decimal.Decimal
	CreatedAt  time.Time
}

// Placed reports whether the order already belongs to a customer.
func (o *Order) Placed() bool {
	return o.CustomerID != 0
}

// AssignCustomer sets the owning customer. It fails if the order already
// has one.
func (o *Order) AssignCustomer(customerID int64) error {
	if o.Placed() {
		return ErrAlreadyPlaced
	}
	o.CustomerID = customerID
	return nil
}

// Validate checks that the order has lines and every quantity is in
// [1, MaxQuantity].
func (o *Order) Validate() error {
	if len(o.Lines) == 0 {
		return ErrEmpty
	}
	for _, l := range o.Lines {
		if l.Quantity <= 0 || l.Quantity > MaxQuantity {
			return &InvalidQuantityError{ArticleID: l.ArticleID, Quantity: l.Quantity}
		}
	}
	return nil
}

// ComputeTotal sets GrandTotal from the lines and returns it.
func (o *Order) ComputeTotal() decimal.Decimal {
	o.GrandTotal = Total(o.Lines)
	return o.GrandTotal
}

// Total sums line subtotals. Zero operands are neutral.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = sum(total, l.Subtotal())
	}
	return total
}

func sum(a, b decimal.Decimal) decimal.Decimal {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	default:
		return a.Add(b)
	}
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists the order with all its lines and sets ID and CreatedAt.
	Create(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id int64, mode FetchMode) (*Order, error)
	FindByCustomer(ctx context.Context, customerID int64, mode FetchMode) ([]*Order, error)
}
