package handler

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/webshop/internal/domain/cart"
	"github.com/xenking/webshop/internal/domain/catalog"
	"github.com/xenking/webshop/internal/domain/customer"
	"github.com/xenking/webshop/internal/domain/order"
)

type articleResponse struct {
	ID        int64           `json:"id"`
	URI       string          `json:"uri"`
	Label     string          `json:"label"`
	Price     decimal.Decimal `json:"price"`
	Available bool            `json:"available"`
}

type cartLineResponse struct {
	ArticleID  int64           `json:"articleId"`
	ArticleURI string          `json:"articleUri"`
	Label      string          `json:"label"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

type cartResponse struct {
	SessionID string             `json:"sessionId"`
	State     string             `json:"state"`
	Lines     []cartLineResponse `json:"lines"`
	Total     decimal.Decimal    `json:"total"`
}

type orderLineResponse struct {
	ArticleID  int64            `json:"articleId"`
	ArticleURI string           `json:"articleUri"`
	Label      string           `json:"label,omitempty"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	Quantity   int              `json:"quantity"`
}

type orderResponse struct {
	ID         int64               `json:"id"`
	URI        string              `json:"uri"`
	CustomerID int64               `json:"customerId"`
	GrandTotal decimal.Decimal     `json:"grandTotal"`
	CreatedAt  time.Time           `json:"createdAt"`
	Lines      []orderLineResponse `json:"lines"`
}

type customerResponse struct {
	ID        int64  `json:"id"`
	URI       string `json:"uri"`
	LoginName string `json:"loginName"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	// OrdersURI lists the orders of the customer. Orders is set only when
	// they were requested.
	OrdersURI string          `json:"ordersUri"`
	Orders    []orderResponse `json:"orders,omitempty"`
}

type positionResponse struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customerId"`
	ArticleID  int64     `json:"articleId"`
	ArticleURI string    `json:"articleUri"`
	Quantity   int       `json:"quantity"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (h *Handler) articleURI(id int64) string {
	return h.cfg.BasePath + "/articles/" + strconv.FormatInt(id, 10)
}

func (h *Handler) orderURI(id int64) string {
	return h.cfg.BasePath + "/orders/" + strconv.FormatInt(id, 10)
}

func (h *Handler) customerURI(id int64) string {
	return h.cfg.BasePath + "/customers/" + strconv.FormatInt(id, 10)
}

func (h *Handler) toArticle(a catalog.Article) articleResponse {
	return articleResponse{
		ID:        a.ID,
		URI:       h.articleURI(a.ID),
		Label:     a.Label,
		Price:     a.Price,
		Available: a.Available,
	}
}

// toCart lists every line, including zero quantities, ordered by article
// id. The total only counts positive lines.
func (h *Handler) toCart(c *cart.Cart) cartResponse {
	resp := cartResponse{
		SessionID: c.SessionID,
		State:     c.State().String(),
		Lines:     make([]cartLineResponse, 0, len(c.Lines)),
		Total:     c.Total(),
	}
	for _, l := range c.Lines {
		resp.Lines = append(resp.Lines, cartLineResponse{
			ArticleID:  l.ArticleID,
			ArticleURI: h.articleURI(l.ArticleID),
			Label:      l.Label,
			Price:      l.Price,
			Quantity:   l.Quantity,
			Subtotal:   l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))),
		})
	}
	sortCartLines(resp.Lines)
	return resp
}

func (h *Handler) toOrder(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:         o.ID,
		URI:        h.orderURI(o.ID),
		CustomerID: o.CustomerID,
		GrandTotal: o.GrandTotal,
		CreatedAt:  o.CreatedAt,
		Lines:      make([]orderLineResponse, len(o.Lines)),
	}
	for i, l := range o.Lines {
		line := orderLineResponse{
			ArticleID:  l.ArticleID,
			ArticleURI: h.articleURI(l.ArticleID),
			Quantity:   l.Quantity,
		}
		if l.Article != nil {
			price := l.Article.Price
			line.Label = l.Article.Label
			line.Price = &price
		}
		resp.Lines[i] = line
	}
	return resp
}

func (h *Handler) toPosition(p *cart.Position) positionResponse {
	return positionResponse{
		ID:         p.ID,
		CustomerID: p.CustomerID,
		ArticleID:  p.ArticleID,
		ArticleURI: h.articleURI(p.ArticleID),
		Quantity:   p.Quantity,
		CreatedAt:  p.CreatedAt,
	}
}

func (h *Handler) toCustomer(c *customer.Customer) customerResponse {
	resp := customerResponse{
		ID:        c.ID,
		URI:       h.customerURI(c.ID),
		LoginName: c.LoginName,
		FirstName: c.Identity.FirstName,
		LastName:  c.Identity.LastName,
		Email:     c.Identity.Email,
		OrdersURI: h.cfg.BasePath + "/orders/customer/" + strconv.FormatInt(c.ID, 10),
	}
	if c.Fetched == customer.FetchWithOrders {
		resp.Orders = make([]orderResponse, len(c.Orders))
		for i, o := range c.Orders {
			resp.Orders[i] = h.toOrder(o)
		}
	}
	return resp
}
