// Package handler serves the shop REST API on gin.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/xenking/webshop/internal/domain/auth"
	"github.com/xenking/webshop/internal/domain/cart"
	"github.com/xenking/webshop/internal/domain/catalog"
	"github.com/xenking/webshop/internal/domain/checkout"
	"github.com/xenking/webshop/internal/domain/customer"
	"github.com/xenking/webshop/internal/domain/order"
)

// Catalog serves article reads.
type Catalog interface {
	List(ctx context.Context) ([]catalog.Article, error)
	FindByID(ctx context.Context, id int64) (*catalog.Article, error)
}

// Carts runs session cart and cart position operations.
type Carts interface {
	Get(ctx context.Context, sessionID string) (*cart.Cart, error)
	AddArticle(ctx context.Context, sessionID string, articleID int64) (*cart.Cart, error)
	SetQuantity(ctx context.Context, sessionID string, articleID int64, qty int) (*cart.Cart, error)
	Apply(ctx context.Context, sessionID string, quantities map[int64]int) (*cart.Cart, error)
	RemoveArticle(ctx context.Context, sessionID string, articleID int64) (*cart.Cart, bool, error)
	Clear(ctx context.Context, sessionID string) error
	AddPosition(ctx context.Context, login, ref string, qty int) (*cart.Position, error)
}

// Checkout places and reads orders.
type Checkout interface {
	PlaceDraft(ctx context.Context, login string, draft checkout.Draft) (*order.Order, error)
	PlacePersistedCart(ctx context.Context, login string) (*order.Order, error)
	PlaceSessionCart(ctx context.Context, login, sessionID string) (*order.Order, error)
	FindOrder(ctx context.Context, id int64, mode order.FetchMode) (*order.Order, error)
	FindOrdersByCustomer(ctx context.Context, customerID int64, mode order.FetchMode) ([]*order.Order, error)
}

// Customers registers and reads customers.
type Customers interface {
	Register(ctx context.Context, login string, id customer.Identity) (*customer.Customer, error)
	Find(ctx context.Context, id int64, mode customer.FetchMode) (*customer.Customer, error)
}

// Authenticator resolves the API key of a request to its owner.
type Authenticator interface {
	Authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// BasePath prefixes every route and the URIs in responses.
	BasePath string
	// SessionCookie names the cookie carrying the session id.
	SessionCookie string
	// SessionTTL is the lifetime of a newly issued session cookie.
	SessionTTL time.Duration
	// SecureCookie marks the session cookie Secure.
	SecureCookie bool
	// CORSOrigins lists allowed origins. Empty disables CORS headers.
	CORSOrigins []string
	// CORSCredentials allows credentials on cross-origin requests.
	CORSCredentials bool
}

// Handler maps HTTP requests to the catalog, cart, checkout and customer
// services.
type Handler struct {
	cfg       Config
	catalog   Catalog
	carts     Carts
	checkout  Checkout
	customers Customers
	auth      Authenticator
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg Config, articles Catalog, carts Carts, co Checkout, customers Customers, authn Authenticator) *Handler {
	if cfg.BasePath == "" {
		cfg.BasePath = "/api"
	}
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = "shop_session"
	}
	return &Handler{
		cfg:       cfg,
		catalog:   articles,
		carts:     carts,
		checkout:  co,
		customers: customers,
		auth:      authn,
	}
}

// Engine builds the gin engine with every API route registered.
func (h *Handler) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if len(h.cfg.CORSOrigins) > 0 {
		r.Use(cors.New(h.corsConfig()))
	}
	r.NoRoute(func(c *gin.Context) {
		abort(c, http.StatusNotFound, "route not found")
	})

	api := r.Group(h.cfg.BasePath)

	api.GET("/articles", h.ListArticles)
	api.GET("/articles/:id", h.GetArticle)

	carts := api.Group("/cart")
	carts.GET("", h.GetCart)
	carts.DELETE("", h.ClearCart)
	carts.POST("/items", h.AddCartItem)
	carts.PUT("/items", h.ApplyCartQuantities)
	carts.PUT("/items/:articleId", h.SetCartQuantity)
	carts.DELETE("/items/:articleId", h.RemoveCartItem)
	carts.POST("/checkout", h.RequireAPIKey(), h.CheckoutCart)

	orders := api.Group("/orders", h.RequireAPIKey())
	orders.POST("", h.PlaceOrder)
	orders.POST("/cart-positions", h.AddCartPosition)
	orders.GET("/:id", h.GetOrder)
	orders.GET("/customer/:customerId", h.ListCustomerOrders)

	api.POST("/customers", h.RegisterCustomer)
	api.GET("/customers/:id", h.RequireAPIKey(), h.GetCustomer)

	return r
}

func (h *Handler) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization", apiKeyHeader, sessionHeader},
		ExposeHeaders:    []string{"Location", sessionHeader, "X-Request-ID"},
		AllowCredentials: h.cfg.CORSCredentials,
		MaxAge:           24 * time.Hour,
	}
	for _, o := range h.cfg.CORSOrigins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			cfg.AllowCredentials = false
			return cfg
		}
	}
	cfg.AllowOrigins = h.cfg.CORSOrigins
	return cfg
}
