package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/webshop/internal/domain/auth"
	"github.com/xenking/webshop/internal/domain/cart"
	"github.com/xenking/webshop/internal/domain/catalog"
	"github.com/xenking/webshop/internal/domain/checkout"
	"github.com/xenking/webshop/internal/domain/customer"
	"github.com/xenking/webshop/internal/domain/order"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// cartQuantityError rejects cart edits below zero or above
// order.MaxQuantity. Zero is kept: such lines stay in the cart and are left
// out at checkout.
type cartQuantityError struct {
	ArticleID int64
	Quantity  int
}

func (e *cartQuantityError) Error() string {
	return fmt.Sprintf("quantity %d for article %d must be between 0 and %d", e.Quantity, e.ArticleID, order.MaxQuantity)
}

func outOfCartRange(qty int) bool {
	return qty < 0 || qty > order.MaxQuantity
}

// badRequest marks malformed input such as undecodable bodies or path ids.
type badRequest struct {
	err error
}

func (e *badRequest) Error() string { return e.err.Error() }
func (e *badRequest) Unwrap() error { return e.err }

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Code: status, Message: msg})
}

// writeError maps domain errors to HTTP responses. Unknown errors are
// logged and answered with 500 without details.
func writeError(c *gin.Context, err error) {
	status, msg := classify(err)
	if status == http.StatusInternalServerError {
		zctx.From(c.Request.Context()).Error("Request failed",
			zap.String("route", c.FullPath()),
			zap.Error(err),
		)
	}
	abort(c, status, msg)
}

func classify(err error) (int, string) {
	var (
		br    *badRequest
		ref   *catalog.InvalidRefError
		oq    *order.InvalidQuantityError
		pq    *cart.InvalidQuantityError
		nq    *cartQuantityError
		noArt *checkout.ArticleNotFoundError
		big   *order.TotalTooLargeError
		inval *customer.InvalidError
	)
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, br.Error()
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, cart.ErrNoSession),
		errors.Is(err, order.ErrEmpty),
		errors.Is(err, checkout.ErrNothingToOrder):
		return http.StatusBadRequest, rootMessage(err)
	case errors.As(err, &ref):
		return http.StatusBadRequest, ref.Error()
	case errors.As(err, &oq):
		return http.StatusUnprocessableEntity, oq.Error()
	case errors.As(err, &pq):
		return http.StatusUnprocessableEntity, pq.Error()
	case errors.As(err, &nq):
		return http.StatusUnprocessableEntity, nq.Error()
	case errors.As(err, &noArt):
		return http.StatusUnprocessableEntity, noArt.Error()
	case errors.As(err, &big):
		return http.StatusUnprocessableEntity, big.Error()
	case errors.As(err, &inval):
		return http.StatusUnprocessableEntity, inval.Error()
	case errors.Is(err, customer.ErrLoginTaken),
		errors.Is(err, customer.ErrEmailTaken):
		return http.StatusConflict, rootMessage(err)
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, cart.ErrNoArticle):
		return http.StatusNotFound, "article not found"
	case errors.Is(err, cart.ErrLineNotFound):
		return http.StatusNotFound, rootMessage(err)
	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, "order not found"
	case errors.Is(err, customer.ErrNotFound):
		return http.StatusNotFound, "customer not found"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// rootMessage returns the message of the innermost error, hiding wrapping
// context such as repository call sites.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
