package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/webshop/internal/domain/catalog"
	"github.com/xenking/webshop/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (customer_id, grand_total)
	VALUES ($1, $2)
	RETURNING id, created_at`

	createOrderLineSQL = `INSERT INTO order_lines (order_id, idx, article_id, quantity)
	VALUES ($1, $2, $3, $4)`

	getOrderByIDSQL = `SELECT id, customer_id, grand_total, created_at FROM orders WHERE id = $1`

	listOrdersByCustomerSQL = `SELECT id, customer_id, grand_total, created_at
	FROM orders WHERE customer_id = $1 ORDER BY id`

	listOrderLinesSQL = `SELECT order_id, article_id, quantity
	FROM order_lines WHERE order_id = ANY($1) ORDER BY order_id, idx`

	listOrderLinesWithArticlesSQL = `SELECT l.order_id, l.article_id, l.quantity, a.label, a.price, a.available
	FROM order_lines l
	JOIN articles a ON a.id = l.article_id
	WHERE l.order_id = ANY($1)
	ORDER BY l.order_id, l.idx`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order header and its lines in one round trip batch.
// Callers run it inside a transaction so a failed line leaves no header.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	q := conn(ctx, r.pool)

	if err := q.QueryRow(ctx, createOrderSQL, o.CustomerID, o.GrandTotal).Scan(&o.ID, &o.CreatedAt); err != nil {
		return errors.Wrapf(err, "create order for customer %d", o.CustomerID)
	}

	batch := &pgx.Batch{}
	for i, l := range o.Lines {
		batch.Queue(createOrderLineSQL, o.ID, i, l.ArticleID, l.Quantity)
	}
	results := q.SendBatch(ctx, batch)
	for i := range o.Lines {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return errors.Wrapf(err, "create line %d of order %d", i, o.ID)
		}
	}
	if err := results.Close(); err != nil {
		return errors.Wrapf(err, "create lines of order %d", o.ID)
	}
	return nil
}

// FindByID returns a single order with its lines.
func (r *OrderRepository) FindByID(ctx context.Context, id int64, mode order.FetchMode) (*order.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %d", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %d", id)
	}

	if err := r.loadLines(ctx, []*order.Order{o}, mode); err != nil {
		return nil, err
	}
	return o, nil
}

// FindByCustomer returns the orders of a customer, oldest first.
func (r *OrderRepository) FindByCustomer(ctx context.Context, customerID int64, mode order.FetchMode) ([]*order.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listOrdersByCustomerSQL, customerID)
	if err != nil {
		return nil, errors.Wrapf(err, "list orders of customer %d", customerID)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrapf(err, "list orders of customer %d", customerID)
	}

	if err := r.loadLines(ctx, orders, mode); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *OrderRepository) loadLines(ctx context.Context, orders []*order.Order, mode order.FetchMode) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[int64]*order.Order, len(orders))
	ids := make([]int64, len(orders))
	for i, o := range orders {
		byID[o.ID] = o
		ids[i] = o.ID
	}

	query := listOrderLinesSQL
	if mode == order.FetchWithArticles {
		query = listOrderLinesWithArticlesSQL
	}
	rows, err := conn(ctx, r.pool).Query(ctx, query, ids)
	if err != nil {
		return errors.Wrap(err, "list order lines")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID int64
			l       order.Line
		)
		if mode == order.FetchWithArticles {
			a := &catalog.Article{}
			if err := rows.Scan(&orderID, &l.ArticleID, &l.Quantity, &a.Label, &a.Price, &a.Available); err != nil {
				return errors.Wrap(err, "scan order line")
			}
			a.ID = l.ArticleID
			l.Article = a
		} else if err := rows.Scan(&orderID, &l.ArticleID, &l.Quantity); err != nil {
			return errors.Wrap(err, "scan order line")
		}
		if o, ok := byID[orderID]; ok {
			o.Lines = append(o.Lines, l)
		}
	}
	return rows.Err()
}

func scanOrder(row pgx.CollectableRow) (*order.Order, error) {
	var o order.Order
	err := row.Scan(&o.ID, &o.CustomerID, &o.GrandTotal, &o.CreatedAt)
	return &o, err
}
