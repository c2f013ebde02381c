// Package cart implements the session cart a shopper fills before checkout
// and the persisted cart positions ordered through the API.
package cart

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/webshop/internal/domain/catalog"
)

// Sentinel errors for cart operations.
var (
	ErrNoArticle    = errors.New("no article to add")
	ErrLineNotFound = errors.New("article not in cart")
	ErrNoSession    = errors.New("session id required")
)

// State is the lifecycle state of a cart.
type State int

const (
	StateEmpty State = iota
	StateActive
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Line is one article in the cart. The label and price are captured when
// the article is added.
type Line struct {
	ArticleID int64           `json:"articleId"`
	Label     string          `json:"label"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Cart is the set of candidate order lines of one session, keyed by
// article id.
type Cart struct {
	SessionID string          `json:"sessionId"`
	Lines     map[int64]*Line `json:"lines"`
}

// New returns an empty cart for sessionID.
func New(sessionID string) *Cart {
	return &Cart{SessionID: sessionID, Lines: make(map[int64]*Line)}
}

// State reports whether the cart holds any line.
func (c *Cart) State() State {
	if len(c.Lines) == 0 {
		return StateEmpty
	}
	return StateActive
}

// Add puts one unit of a into the cart. An article already present has its
// quantity incremented instead of getting a second line.
func (c *Cart) Add(a *catalog.Article) (*Line, error) {
	if a == nil {
		return nil, ErrNoArticle
	}
	if c.Lines == nil {
		c.Lines = make(map[int64]*Line)
	}
	if l, ok := c.Lines[a.ID]; ok {
		l.Quantity++
		return l, nil
	}
	l := &Line{ArticleID: a.ID, Label: a.Label, Price: a.Price, Quantity: 1}
	c.Lines[a.ID] = l
	return l, nil
}

// SetQuantity overwrites the quantity of a line. Any integer is accepted;
// lines that are not positive are left out at checkout.
func (c *Cart) SetQuantity(articleID int64, qty int) error {
	l, ok := c.Lines[articleID]
	if !ok {
		return ErrLineNotFound
	}
	l.Quantity = qty
	return nil
}

// Apply sets several quantities at once. Nothing changes if any article is
// not in the cart.
func (c *Cart) Apply(quantities map[int64]int) error {
	for id := range quantities {
		if _, ok := c.Lines[id]; !ok {
			return errors.Wrapf(ErrLineNotFound, "article %d", id)
		}
	}
	for id, qty := range quantities {
		c.Lines[id].Quantity = qty
	}
	return nil
}

// Remove deletes the line of articleID. It reports ended when the cart
// became empty, which ends the session scope of the cart.
func (c *Cart) Remove(articleID int64) (ended bool, err error) {
	if _, ok := c.Lines[articleID]; !ok {
		return false, ErrLineNotFound
	}
	delete(c.Lines, articleID)
	return len(c.Lines) == 0, nil
}

// Clear drops every line.
func (c *Cart) Clear() {
	clear(c.Lines)
}

// PositiveLines returns copies of the lines with a quantity above zero,
// ordered by article id.
func (c *Cart) PositiveLines() []Line {
	out := make([]Line, 0, len(c.Lines))
	for _, l := range c.Lines {
		if l.Quantity > 0 {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArticleID < out[j].ArticleID })
	return out
}

// Total is the value of the positive lines at the captured prices.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.PositiveLines() {
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

// Store keeps session carts between requests.
type Store interface {
	// Load returns the cart of sessionID, or an empty one if there is none.
	Load(ctx context.Context, sessionID string) (*Cart, error)
	// Save stores c and refreshes its expiry.
	Save(ctx context.Context, c *Cart) error
	// End discards the cart of sessionID.
	End(ctx context.Context, sessionID string) error
}
