package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"

	"github.com/xenking/webshop/internal/domain/customer"
)

type registrationRequest struct {
	LoginName string `json:"loginName" binding:"required"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required"`
}

// RegisterCustomer creates a customer. It needs no API key.
func (h *Handler) RegisterCustomer(c *gin.Context) {
	var req registrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &badRequest{err: errors.Wrap(err, "decode request")})
		return
	}
	cust, err := h.customers.Register(c.Request.Context(), req.LoginName, customer.Identity{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Location", h.customerURI(cust.ID))
	c.JSON(http.StatusCreated, h.toCustomer(cust))
}

// GetCustomer returns one customer. The fetch query parameter selects
// whether its orders are included (with_orders) or not (customer_only, the
// default).
func (h *Handler) GetCustomer(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	mode, err := customerFetchMode(c)
	if err != nil {
		writeError(c, err)
		return
	}
	cust, err := h.customers.Find(c.Request.Context(), id, mode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toCustomer(cust))
}

func customerFetchMode(c *gin.Context) (customer.FetchMode, error) {
	switch v := c.DefaultQuery("fetch", customer.FetchCustomerOnly.String()); v {
	case customer.FetchCustomerOnly.String():
		return customer.FetchCustomerOnly, nil
	case customer.FetchWithOrders.String():
		return customer.FetchWithOrders, nil
	default:
		return 0, &badRequest{err: errors.Errorf("invalid fetch mode %q", v)}
	}
}
