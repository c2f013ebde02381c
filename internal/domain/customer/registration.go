package customer

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var (
	// ErrLoginTaken is returned when a login name is already registered.
	ErrLoginTaken = errors.New("login name already registered")
	// ErrEmailTaken is returned when an email address is already registered.
	ErrEmailTaken = errors.New("email already registered")
)

const maxLoginName = 64

var validate = validator.New(validator.WithRequiredStructEnabled())

// InvalidError describes a registration field that failed validation.
type InvalidError struct {
	Field  string
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Store reads and creates customers.
type Store interface {
	Repository
	// Create inserts c and sets c.ID. A duplicate login name yields
	// ErrLoginTaken, a duplicate email ErrEmailTaken.
	Create(ctx context.Context, c *Customer) error
}

// Registry registers customers and serves customer reads.
type Registry struct {
	store Store
}

// NewRegistry returns a Registry backed by store.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Register validates and stores a new customer. The returned customer has
// no orders yet.
func (r *Registry) Register(ctx context.Context, login string, id Identity) (*Customer, error) {
	c := &Customer{
		LoginName: strings.TrimSpace(login),
		Identity: Identity{
			FirstName: strings.TrimSpace(id.FirstName),
			LastName:  strings.TrimSpace(id.LastName),
			Email:     strings.TrimSpace(id.Email),
		},
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := r.store.Create(ctx, c); err != nil {
		return nil, err
	}
	c.Fetched = FetchCustomerOnly

	zctx.From(ctx).Info("Customer registered",
		zap.Int64("customer_id", c.ID),
		zap.String("login", c.LoginName),
	)
	return c, nil
}

// Find returns a customer by id, with or without its orders.
func (r *Registry) Find(ctx context.Context, id int64, mode FetchMode) (*Customer, error) {
	return r.store.FindByID(ctx, id, mode)
}

// Validate checks the fields required to register a customer.
func (c *Customer) Validate() error {
	fields := []struct {
		name  string
		value string
		tag   string
	}{
		{name: "loginName", value: c.LoginName, tag: fmt.Sprintf("required,max=%d", maxLoginName)},
		{name: "lastName", value: c.Identity.LastName, tag: "required"},
		{name: "email", value: c.Identity.Email, tag: "required,email"},
	}
	for _, f := range fields {
		if err := validate.Var(f.value, f.tag); err != nil {
			return &InvalidError{Field: f.name, Reason: reason(err)}
		}
		if f.name == "loginName" && strings.ContainsFunc(f.value, unicode.IsSpace) {
			return &InvalidError{Field: f.name, Reason: "must not contain whitespace"}
		}
	}
	return nil
}

func reason(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	switch fe := verrs[0]; fe.Tag() {
	case "required":
		return "must not be empty"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "must be a plain address"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
