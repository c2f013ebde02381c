package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/webshop/internal/domain/cart"
)

const (
	createCartPositionSQL = `INSERT INTO cart_positions (customer_id, article_id, quantity)
	VALUES ($1, $2, $3)
	RETURNING id, created_at`

	listCartPositionsSQL = `SELECT id, customer_id, article_id, quantity, created_at
	FROM cart_positions WHERE customer_id = $1 ORDER BY id`

	lockCartPositionsSQL = listCartPositionsSQL + ` FOR UPDATE`

	deleteCartPositionsSQL = `DELETE FROM cart_positions WHERE customer_id = $1 AND id = ANY($2)`
)

var _ cart.PositionRepository = (*CartPositionRepository)(nil)

// CartPositionRepository implements cart.PositionRepository backed by
// PostgreSQL.
type CartPositionRepository struct {
	pool *pgxpool.Pool
}

// NewCartPositionRepository returns a CartPositionRepository that uses the
// given pool.
func NewCartPositionRepository(pool *pgxpool.Pool) *CartPositionRepository {
	return &CartPositionRepository{pool: pool}
}

// Create stores p and sets its ID and CreatedAt.
func (r *CartPositionRepository) Create(ctx context.Context, p *cart.Position) error {
	err := conn(ctx, r.pool).QueryRow(ctx, createCartPositionSQL, p.CustomerID, p.ArticleID, p.Quantity).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return errors.Wrapf(err, "create cart position for customer %d", p.CustomerID)
	}
	return nil
}

// FindByCustomer returns the cart positions of a customer in insertion
// order.
func (r *CartPositionRepository) FindByCustomer(ctx context.Context, customerID int64) ([]cart.Position, error) {
	return r.list(ctx, listCartPositionsSQL, customerID)
}

// LockByCustomer is FindByCustomer with the rows locked until the
// transaction in ctx ends. A concurrent locker of the same rows waits and
// then skips those deleted meanwhile.
func (r *CartPositionRepository) LockByCustomer(ctx context.Context, customerID int64) ([]cart.Position, error) {
	return r.list(ctx, lockCartPositionsSQL, customerID)
}

// Delete removes the given cart positions of a customer and returns how
// many were deleted.
func (r *CartPositionRepository) Delete(ctx context.Context, customerID int64, ids []int64) (int64, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, deleteCartPositionsSQL, customerID, ids)
	if err != nil {
		return 0, errors.Wrapf(err, "delete cart positions of customer %d", customerID)
	}
	return tag.RowsAffected(), nil
}

func (r *CartPositionRepository) list(ctx context.Context, query string, customerID int64) ([]cart.Position, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, customerID)
	if err != nil {
		return nil, errors.Wrapf(err, "list cart positions of customer %d", customerID)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Position, error) {
		var p cart.Position
		err := row.Scan(&p.ID, &p.CustomerID, &p.ArticleID, &p.Quantity, &p.CreatedAt)
		return p, err
	})
}
