package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/webshop/internal/domain/catalog"
)

const (
	listArticlesSQL = `SELECT id, label, price, available FROM articles ORDER BY id`

	getArticleByIDSQL = `SELECT id, label, price, available FROM articles WHERE id = $1`

	getArticlesByIDsSQL = `SELECT id, label, price, available FROM articles WHERE id = ANY($1) ORDER BY id`

	upsertArticleSQL = `INSERT INTO articles (label, price, available)
	VALUES ($1, $2, $3)
	ON CONFLICT (label) DO UPDATE SET price = EXCLUDED.price, available = EXCLUDED.available, updated_at = now()
	RETURNING id`
)

var _ catalog.Repository = (*ArticleRepository)(nil)

// ArticleRepository implements catalog.Repository backed by PostgreSQL.
type ArticleRepository struct {
	pool *pgxpool.Pool
}

// NewArticleRepository returns an ArticleRepository that uses the given pool.
func NewArticleRepository(pool *pgxpool.Pool) *ArticleRepository {
	return &ArticleRepository{pool: pool}
}

// List returns all articles ordered by id.
func (r *ArticleRepository) List(ctx context.Context) ([]catalog.Article, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listArticlesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list articles")
	}
	return pgx.CollectRows(rows, scanArticle)
}

// FindByID returns a single article.
func (r *ArticleRepository) FindByID(ctx context.Context, id int64) (*catalog.Article, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getArticleByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get article %d", id)
	}

	a, err := pgx.CollectExactlyOneRow(rows, scanArticle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get article %d", id)
	}
	return &a, nil
}

// FindByIDs returns the articles matching any of ids. Unknown ids are
// skipped.
func (r *ArticleRepository) FindByIDs(ctx context.Context, ids []int64) ([]catalog.Article, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getArticlesByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get articles by ids")
	}
	return pgx.CollectRows(rows, scanArticle)
}

// Upsert inserts an article or updates the one with the same label, and
// sets a.ID.
func (r *ArticleRepository) Upsert(ctx context.Context, a *catalog.Article) error {
	err := conn(ctx, r.pool).QueryRow(ctx, upsertArticleSQL, a.Label, a.Price, a.Available).Scan(&a.ID)
	if err != nil {
		return errors.Wrapf(err, "upsert article %q", a.Label)
	}
	return nil
}

func scanArticle(row pgx.CollectableRow) (catalog.Article, error) {
	var a catalog.Article
	err := row.Scan(&a.ID, &a.Label, &a.Price, &a.Available)
	return a, err
}
