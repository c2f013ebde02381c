package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/webshop/internal/domain/auth"
)

const apiKeyHeader = "api_key"

// RequireAPIKey authenticates the api_key header and stores the key owner
// in the request context. Requests without a valid key get 401.
func (h *Handler) RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		info, err := h.auth.Authenticate(ctx, c.GetHeader(apiKeyHeader))
		if err != nil {
			writeError(c, auth.ErrUnauthorized)
			c.Abort()
			return
		}
		ctx = auth.WithPrincipal(ctx, info)
		ctx = zctx.With(ctx, zap.String("api_key_id", info.ID))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// principal returns the login name bound to the authenticated key.
func principal(c *gin.Context) (string, bool) {
	info, ok := auth.PrincipalFrom(c.Request.Context())
	if !ok || info.LoginName == "" {
		return "", false
	}
	return info.LoginName, true
}
