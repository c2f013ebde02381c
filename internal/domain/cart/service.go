package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/webshop/internal/domain/catalog"
	"github.com/xenking/webshop/internal/domain/customer"
	"github.com/xenking/webshop/internal/domain/order"
)

// ArticleFinder resolves single articles.
type ArticleFinder interface {
	FindByID(ctx context.Context, id int64) (*catalog.Article, error)
}

// Service runs cart operations against the session store and the
// persisted cart positions.
type Service struct {
	articles  ArticleFinder
	store     Store
	positions PositionRepository
	customers customer.Repository
}

// NewService creates a cart Service.
func NewService(
	articles ArticleFinder,
	store Store,
	positions PositionRepository,
	customers customer.Repository,
) *Service {
	return &Service{
		articles:  articles,
		store:     store,
		positions: positions,
		customers: customers,
	}
}

// Get returns the cart of a session.
func (s *Service) Get(ctx context.Context, sessionID string) (*Cart, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}
	c, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	return c, nil
}

// AddArticle adds one unit of an article. An unknown article leaves the
// cart untouched and yields ErrNoArticle.
func (s *Service) AddArticle(ctx context.Context, sessionID string, articleID int64) (*Cart, error) {
	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	a, err := s.articles.FindByID(ctx, articleID)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return nil, errors.Wrapf(err, "find article %d", articleID)
	}
	if _, err := c.Add(a); err != nil {
		zctx.From(ctx).Warn("Article not added to cart",
			zap.String("session", sessionID),
			zap.Int64("article_id", articleID),
			zap.Error(err),
		)
		return c, err
	}

	if err := s.store.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// SetQuantity changes the quantity of one line.
func (s *Service) SetQuantity(ctx context.Context, sessionID string, articleID int64, qty int) (*Cart, error) {
	return s.Apply(ctx, sessionID, map[int64]int{articleID: qty})
}

// Apply changes the quantities of several lines at once.
func (s *Service) Apply(ctx context.Context, sessionID string, quantities map[int64]int) (*Cart, error) {
	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := c.Apply(quantities); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// RemoveArticle deletes a line. Removing the last line ends the session
// cart, reported by ended.
func (s *Service) RemoveArticle(ctx context.Context, sessionID string, articleID int64) (c *Cart, ended bool, err error) {
	c, err = s.Get(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	ended, err = c.Remove(articleID)
	if err != nil {
		return nil, false, err
	}
	if ended {
		if err := s.store.End(ctx, sessionID); err != nil {
			return nil, false, errors.Wrap(err, "end cart")
		}
		zctx.From(ctx).Debug("Cart emptied, session ended", zap.String("session", sessionID))
		return c, true, nil
	}
	if err := s.store.Save(ctx, c); err != nil {
		return nil, false, errors.Wrap(err, "save cart")
	}
	return c, false, nil
}

// Clear drops all lines and ends the session cart.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrNoSession
	}
	if err := s.store.End(ctx, sessionID); err != nil {
		return errors.Wrap(err, "end cart")
	}
	return nil
}

// AddPosition stores a persisted cart row for the customer with the given
// login name. ref is an article id or article URI.
func (s *Service) AddPosition(ctx context.Context, login, ref string, qty int) (*Position, error) {
	if qty < 1 || qty > order.MaxQuantity {
		return nil, &InvalidQuantityError{Quantity: qty}
	}
	articleID, err := catalog.ParseRef(ref)
	if err != nil {
		return nil, err
	}
	if _, err := s.articles.FindByID(ctx, articleID); err != nil {
		return nil, errors.Wrapf(err, "find article %d", articleID)
	}

	c, err := s.customers.FindByLoginName(ctx, login, customer.FetchCustomerOnly)
	if err != nil {
		return nil, errors.Wrapf(err, "find customer %q", login)
	}

	p := &Position{CustomerID: c.ID, ArticleID: articleID, Quantity: qty}
	if err := s.positions.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create cart position")
	}
	return p, nil
}
