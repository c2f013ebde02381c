package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/webshop/internal/domain/customer"
	"github.com/xenking/webshop/internal/domain/order"
)

const (
	getCustomerByIDSQL = `SELECT id, login_name, first_name, last_name, email
	FROM customers WHERE id = $1`

	getCustomerByLoginSQL = `SELECT id, login_name, first_name, last_name, email
	FROM customers WHERE login_name = $1`

	createCustomerSQL = `INSERT INTO customers (login_name, first_name, last_name, email)
	VALUES ($1, $2, $3, $4)
	RETURNING id`

	upsertCustomerSQL = `INSERT INTO customers (login_name, first_name, last_name, email)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (login_name) DO UPDATE
	SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name, email = EXCLUDED.email
	RETURNING id`
)

const (
	uniqueViolation = "23505"

	customerLoginConstraint = "customers_login_name_key"
	customerEmailConstraint = "customers_email_idx"
)

var _ customer.Store = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
// Orders are loaded through the order repository when requested.
type CustomerRepository struct {
	pool   *pgxpool.Pool
	orders *OrderRepository
}

// NewCustomerRepository returns a CustomerRepository that uses the given
// pool.
func NewCustomerRepository(pool *pgxpool.Pool, orders *OrderRepository) *CustomerRepository {
	return &CustomerRepository{pool: pool, orders: orders}
}

// FindByID returns a customer by id.
func (r *CustomerRepository) FindByID(ctx context.Context, id int64, mode customer.FetchMode) (*customer.Customer, error) {
	return r.find(ctx, getCustomerByIDSQL, id, mode)
}

// FindByLoginName returns a customer by login name.
func (r *CustomerRepository) FindByLoginName(ctx context.Context, login string, mode customer.FetchMode) (*customer.Customer, error) {
	return r.find(ctx, getCustomerByLoginSQL, login, mode)
}

// Create inserts a new customer and sets c.ID.
func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	err := conn(ctx, r.pool).QueryRow(ctx, createCustomerSQL,
		c.LoginName, c.Identity.FirstName, c.Identity.LastName, c.Identity.Email,
	).Scan(&c.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			switch pgErr.ConstraintName {
			case customerLoginConstraint:
				return customer.ErrLoginTaken
			case customerEmailConstraint:
				return customer.ErrEmailTaken
			}
		}
		return errors.Wrapf(err, "create customer %q", c.LoginName)
	}
	return nil
}

// Upsert inserts a customer or updates the identity of the one with the
// same login name, and sets c.ID.
func (r *CustomerRepository) Upsert(ctx context.Context, c *customer.Customer) error {
	err := conn(ctx, r.pool).QueryRow(ctx, upsertCustomerSQL,
		c.LoginName, c.Identity.FirstName, c.Identity.LastName, c.Identity.Email,
	).Scan(&c.ID)
	if err != nil {
		return errors.Wrapf(err, "upsert customer %q", c.LoginName)
	}
	return nil
}

func (r *CustomerRepository) find(ctx context.Context, query string, key any, mode customer.FetchMode) (*customer.Customer, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, key)
	if err != nil {
		return nil, errors.Wrapf(err, "get customer %v", key)
	}
	c, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (customer.Customer, error) {
		var c customer.Customer
		err := row.Scan(&c.ID, &c.LoginName, &c.Identity.FirstName, &c.Identity.LastName, &c.Identity.Email)
		return c, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get customer %v", key)
	}

	if mode == customer.FetchDetached {
		mode = customer.FetchCustomerOnly
	}
	c.Fetched = mode
	if mode == customer.FetchWithOrders {
		if c.Orders, err = r.orders.FindByCustomer(ctx, c.ID, order.FetchOrderOnly); err != nil {
			return nil, errors.Wrapf(err, "load orders of customer %d", c.ID)
		}
	}
	return &c, nil
}
