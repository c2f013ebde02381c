package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	sessionHeader   = "X-Session-ID"
	maxSessionIDLen = 128
)

// sessionID returns the session id from the X-Session-ID header or the
// session cookie, or "" when the request carries none.
func (h *Handler) sessionID(c *gin.Context) string {
	id := c.GetHeader(sessionHeader)
	if id == "" {
		id, _ = c.Cookie(h.cfg.SessionCookie)
	}
	if len(id) > maxSessionIDLen {
		return ""
	}
	return id
}

// ensureSession returns the request session id, issuing a new one with a
// cookie when the request has none.
func (h *Handler) ensureSession(c *gin.Context) string {
	id := h.sessionID(c)
	if id == "" {
		id = uuid.NewString()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(h.cfg.SessionCookie, id, int(h.cfg.SessionTTL.Seconds()), "/", "", h.cfg.SecureCookie, true)
	}
	c.Header(sessionHeader, id)
	return id
}
