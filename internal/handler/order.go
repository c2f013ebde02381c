package handler

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-faster/errors"

	"github.com/xenking/webshop/internal/domain/auth"
	"github.com/xenking/webshop/internal/domain/checkout"
	"github.com/xenking/webshop/internal/domain/order"
)

const maxOrderBody = 1 << 20

type orderLineRequest struct {
	ArticleID  int64  `json:"articleId"`
	ArticleURI string `json:"articleUri"`
	Quantity   int    `json:"quantity"`
}

type orderRequest struct {
	Lines []orderLineRequest `json:"lines"`
}

type positionRequest struct {
	ArticleID  int64  `json:"articleId"`
	ArticleURI string `json:"articleUri"`
	Quantity   int    `json:"quantity"`
}

// PlaceOrder creates an order for the calling customer. A body with lines
// orders exactly those lines; an empty body orders the customer's persisted
// cart positions.
func (h *Handler) PlaceOrder(c *gin.Context) {
	login, ok := principal(c)
	if !ok {
		writeError(c, auth.ErrUnauthorized)
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxOrderBody))
	if err != nil {
		writeError(c, &badRequest{err: errors.Wrap(err, "read request")})
		return
	}

	var o *order.Order
	if len(bytes.TrimSpace(raw)) == 0 {
		o, err = h.checkout.PlacePersistedCart(c.Request.Context(), login)
	} else {
		var req orderRequest
		if err := binding.JSON.BindBody(raw, &req); err != nil {
			writeError(c, &badRequest{err: errors.Wrap(err, "decode request")})
			return
		}
		o, err = h.checkout.PlaceDraft(c.Request.Context(), login, toDraft(req))
	}
	if err != nil {
		writeError(c, err)
		return
	}
	h.created(c, o)
}

// AddCartPosition stores a persisted cart position for the calling
// customer.
func (h *Handler) AddCartPosition(c *gin.Context) {
	login, ok := principal(c)
	if !ok {
		writeError(c, auth.ErrUnauthorized)
		return
	}
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &badRequest{err: errors.Wrap(err, "decode request")})
		return
	}
	p, err := h.carts.AddPosition(c.Request.Context(), login, articleRef(req.ArticleID, req.ArticleURI), req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.toPosition(p))
}

// GetOrder returns one order. The fetch query parameter selects whether
// line articles are resolved (with_articles, the default) or not
// (order_only).
func (h *Handler) GetOrder(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	mode, err := fetchMode(c)
	if err != nil {
		writeError(c, err)
		return
	}
	o, err := h.checkout.FindOrder(c.Request.Context(), id, mode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toOrder(o))
}

// ListCustomerOrders returns the orders of a customer, oldest first.
func (h *Handler) ListCustomerOrders(c *gin.Context) {
	customerID, err := pathID(c, "customerId")
	if err != nil {
		writeError(c, err)
		return
	}
	mode, err := fetchMode(c)
	if err != nil {
		writeError(c, err)
		return
	}
	orders, err := h.checkout.FindOrdersByCustomer(c.Request.Context(), customerID, mode)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = h.toOrder(o)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) created(c *gin.Context, o *order.Order) {
	c.Header("Location", h.orderURI(o.ID))
	c.JSON(http.StatusCreated, h.toOrder(o))
}

func toDraft(req orderRequest) checkout.Draft {
	d := checkout.Draft{Lines: make([]checkout.DraftLine, len(req.Lines))}
	for i, l := range req.Lines {
		d.Lines[i] = checkout.DraftLine{
			ArticleID:  l.ArticleID,
			ArticleRef: l.ArticleURI,
			Quantity:   l.Quantity,
		}
	}
	return d
}

func articleRef(id int64, uri string) string {
	if uri != "" {
		return uri
	}
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func fetchMode(c *gin.Context) (order.FetchMode, error) {
	switch v := c.DefaultQuery("fetch", order.FetchWithArticles.String()); v {
	case order.FetchWithArticles.String():
		return order.FetchWithArticles, nil
	case order.FetchOrderOnly.String():
		return order.FetchOrderOnly, nil
	default:
		return 0, &badRequest{err: errors.Errorf("invalid fetch mode %q", v)}
	}
}
