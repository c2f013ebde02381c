package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
)

// ListArticles returns the whole catalog.
func (h *Handler) ListArticles(c *gin.Context) {
	articles, err := h.catalog.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]articleResponse, len(articles))
	for i, a := range articles {
		resp[i] = h.toArticle(a)
	}
	c.JSON(http.StatusOK, resp)
}

// GetArticle returns one article.
func (h *Handler) GetArticle(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	a, err := h.catalog.FindByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toArticle(*a))
}

// pathID parses a positive numeric path parameter.
func pathID(c *gin.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &badRequest{err: errors.Errorf("invalid %s %q", name, raw)}
	}
	return id, nil
}
