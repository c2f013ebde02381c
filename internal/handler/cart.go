package handler

import (
	"cmp"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"

	"github.com/xenking/webshop/internal/domain/auth"
)

type addItemRequest struct {
	ArticleID int64 `json:"articleId" binding:"required"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type applyRequest struct {
	Quantities map[int64]int `json:"quantities" binding:"required"`
}

// GetCart returns the session cart. A request without a session sees an
// empty cart.
func (h *Handler) GetCart(c *gin.Context) {
	sid := h.ensureSession(c)
	crt, err := h.carts.Get(c.Request.Context(), sid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toCart(crt))
}

// AddCartItem puts one unit of an article into the session cart.
func (h *Handler) AddCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &badRequest{err: errors.Wrap(err, "decode request")})
		return
	}
	sid := h.ensureSession(c)
	crt, err := h.carts.AddArticle(c.Request.Context(), sid, req.ArticleID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toCart(crt))
}

// SetCartQuantity overwrites the quantity of one line.
func (h *Handler) SetCartQuantity(c *gin.Context) {
	articleID, err := pathID(c, "articleId")
	if err != nil {
		writeError(c, err)
		return
	}
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &badRequest{err: errors.Wrap(err, "decode request")})
		return
	}
	if outOfCartRange(*req.Quantity) {
		writeError(c, &cartQuantityError{ArticleID: articleID, Quantity: *req.Quantity})
		return
	}
	crt, err := h.carts.SetQuantity(c.Request.Context(), h.sessionID(c), articleID, *req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toCart(crt))
}

// ApplyCartQuantities sets the quantities of several lines at once.
func (h *Handler) ApplyCartQuantities(c *gin.Context) {
	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &badRequest{err: errors.Wrap(err, "decode request")})
		return
	}
	for id, qty := range req.Quantities {
		if outOfCartRange(qty) {
			writeError(c, &cartQuantityError{ArticleID: id, Quantity: qty})
			return
		}
	}
	crt, err := h.carts.Apply(c.Request.Context(), h.sessionID(c), req.Quantities)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toCart(crt))
}

// RemoveCartItem deletes a line. When the last line goes the session cart
// ends and 204 is returned.
func (h *Handler) RemoveCartItem(c *gin.Context) {
	articleID, err := pathID(c, "articleId")
	if err != nil {
		writeError(c, err)
		return
	}
	crt, ended, err := h.carts.RemoveArticle(c.Request.Context(), h.sessionID(c), articleID)
	if err != nil {
		writeError(c, err)
		return
	}
	if ended {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, h.toCart(crt))
}

// ClearCart drops the session cart.
func (h *Handler) ClearCart(c *gin.Context) {
	if err := h.carts.Clear(c.Request.Context(), h.sessionID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CheckoutCart orders the positive lines of the session cart for the
// calling customer.
func (h *Handler) CheckoutCart(c *gin.Context) {
	login, ok := principal(c)
	if !ok {
		writeError(c, auth.ErrUnauthorized)
		return
	}
	o, err := h.checkout.PlaceSessionCart(c.Request.Context(), login, h.sessionID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	h.created(c, o)
}

func sortCartLines(lines []cartLineResponse) {
	slices.SortFunc(lines, func(a, b cartLineResponse) int {
		return cmp.Compare(a.ArticleID, b.ArticleID)
	})
}
