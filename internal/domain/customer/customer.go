// Package customer holds the customer aggregate, which owns its orders.
package customer

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/webshop/internal/domain/order"
)

// ErrNotFound is returned when a customer does not exist.
var ErrNotFound = errors.New("customer not found")

// FetchMode selects how much of the customer graph a read loads.
type FetchMode int

const (
	// FetchDetached marks a handle that was not loaded by a repository in
	// the current unit of work, e.g. one built from a request.
	FetchDetached FetchMode = iota
	// FetchCustomerOnly loads the customer record without orders.
	FetchCustomerOnly
	// FetchWithOrders loads the customer together with its orders.
	FetchWithOrders
)

func (m FetchMode) String() string {
	switch m {
	case FetchDetached:
		return "detached"
	case FetchCustomerOnly:
		return "customer_only"
	case FetchWithOrders:
		return "with_orders"
	default:
		return fmt.Sprintf("FetchMode(%d)", int(m))
	}
}

// Identity carries the personal data of a customer.
type Identity struct {
	FirstName string
	LastName  string
	Email     string
}

// Customer is the aggregate root for a shopper and the orders they placed.
type Customer struct {
	ID        int64
	LoginName string
	Identity  Identity
	Orders    []*order.Order

	// Fetched records how the handle was loaded.
	Fetched FetchMode
}

// Attached reports whether the handle was loaded by a repository in the
// current unit of work and can take new orders. A handle read with
// FetchCustomerOnly is attached; its Orders then holds only the orders
// added since.
func (c *Customer) Attached() bool {
	return c.Fetched != FetchDetached
}

// AddOrder links o to the customer. Both sides of the relationship are set
// together: o joins Orders and o.CustomerID points back at c.
func (c *Customer) AddOrder(o *order.Order) error {
	if o == nil {
		return errors.New("nil order")
	}
	if err := o.AssignCustomer(c.ID); err != nil {
		return errors.Wrapf(err, "add order to customer %d", c.ID)
	}
	c.Orders = append(c.Orders, o)
	return nil
}

// Repository defines read operations for customers.
type Repository interface {
	FindByID(ctx context.Context, id int64, mode FetchMode) (*Customer, error)
	FindByLoginName(ctx context.Context, login string, mode FetchMode) (*Customer, error)
}
