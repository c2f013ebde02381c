//go:build integration

package integration

import (
	"net/http"
	"strconv"
	"testing"
)

// newSession opens an empty session cart and returns its id.
func newSession(t *testing.T) string {
	t.Helper()

	resp := doGet(t, "/api/cart")
	defer resp.Body.Close()

	expectStatus(t, resp, http.StatusOK)

	sid := resp.Header.Get(sessionHeader)
	if sid == "" {
		t.Fatalf("%s header not present", sessionHeader)
	}
	return sid
}

func addItem(t *testing.T, sid string, articleID int64) cartResponse {
	t.Helper()

	resp := doSession(t, http.MethodPost, "/api/cart/items", sid, map[string]int64{"articleId": articleID})
	defer resp.Body.Close()

	expectStatus(t, resp, http.StatusOK)
	return decodeJSON[cartResponse](t, resp)
}

func lineOf(c cartResponse, articleID int64) (cartLine, bool) {
	for _, l := range c.Lines {
		if l.ArticleID == articleID {
			return l, true
		}
	}
	return cartLine{}, false
}

func itemPath(articleID int64) string {
	return "/api/cart/items/" + strconv.FormatInt(articleID, 10)
}

func TestCart_NewSession(t *testing.T) {
	resp := doGet(t, "/api/cart")
	defer resp.Body.Close()

	expectStatus(t, resp, http.StatusOK)

	sid := resp.Header.Get(sessionHeader)
	if sid == "" {
		t.Fatalf("%s header not present", sessionHeader)
	}

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "shop_session" {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != sid {
		t.Fatalf("session cookie: got %v, want value %q", cookie, sid)
	}

	body := decodeJSON[cartResponse](t, resp)
	if body.SessionID != sid {
		t.Errorf("sessionId: got %q, want %q", body.SessionID, sid)
	}
	if body.State != "empty" {
		t.Errorf("state: got %q, want empty", body.State)
	}
	if len(body.Lines) != 0 {
		t.Errorf("expected no lines, got %d", len(body.Lines))
	}
}

func TestCart_AddAndAdjust(t *testing.T) {
	espresso := articleByLabel(t, "Espresso machine")
	frother := articleByLabel(t, "Milk frother")
	sid := newSession(t)

	addItem(t, sid, espresso.ID)
	c := addItem(t, sid, espresso.ID)
	line, ok := lineOf(c, espresso.ID)
	if !ok || line.Quantity != 2 {
		t.Fatalf("espresso line after two adds: %+v", c.Lines)
	}
	if c.State != "active" {
		t.Errorf("state: got %q, want active", c.State)
	}

	c = addItem(t, sid, frother.ID)
	if len(c.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(c.Lines))
	}
	if c.Total != "537.9" {
		t.Errorf("total: got %q, want 537.9", c.Total)
	}

	// Zero is kept as a line but not counted.
	resp := doSession(t, http.MethodPut, itemPath(frother.ID), sid, map[string]int{"quantity": 0})
	expectStatus(t, resp, http.StatusOK)
	c = decodeJSON[cartResponse](t, resp)
	resp.Body.Close()
	if line, ok := lineOf(c, frother.ID); !ok || line.Quantity != 0 {
		t.Errorf("frother line after zeroing: %+v", c.Lines)
	}
	if c.Total != "498" {
		t.Errorf("total: got %q, want 498", c.Total)
	}

	resp = doSession(t, http.MethodPut, "/api/cart/items", sid, map[string]map[string]int{
		"quantities": {
			strconv.FormatInt(espresso.ID, 10): 1,
			strconv.FormatInt(frother.ID, 10):  3,
		},
	})
	expectStatus(t, resp, http.StatusOK)
	c = decodeJSON[cartResponse](t, resp)
	resp.Body.Close()
	if c.Total != "368.7" {
		t.Errorf("total after apply: got %q, want 368.7", c.Total)
	}

	// Persisted between requests.
	resp = doSession(t, http.MethodGet, "/api/cart", sid, nil)
	expectStatus(t, resp, http.StatusOK)
	c = decodeJSON[cartResponse](t, resp)
	resp.Body.Close()
	if len(c.Lines) != 2 || c.Total != "368.7" {
		t.Errorf("reloaded cart: %+v", c)
	}
}

func TestCart_Errors(t *testing.T) {
	espresso := articleByLabel(t, "Espresso machine")
	sid := newSession(t)
	addItem(t, sid, espresso.ID)

	tests := []struct {
		name   string
		method string
		path   string
		sid    string
		body   any
		want   int
	}{
		{
			name:   "unknown article",
			method: http.MethodPost,
			path:   "/api/cart/items",
			sid:    sid,
			body:   map[string]int64{"articleId": 999999},
			want:   http.StatusNotFound,
		},
		{
			name:   "missing article id",
			method: http.MethodPost,
			path:   "/api/cart/items",
			sid:    sid,
			body:   map[string]string{},
			want:   http.StatusBadRequest,
		},
		{
			name:   "negative quantity",
			method: http.MethodPut,
			path:   itemPath(espresso.ID),
			sid:    sid,
			body:   map[string]int{"quantity": -1},
			want:   http.StatusUnprocessableEntity,
		},
		{
			name:   "missing quantity",
			method: http.MethodPut,
			path:   itemPath(espresso.ID),
			sid:    sid,
			body:   map[string]string{},
			want:   http.StatusBadRequest,
		},
		{
			name:   "line not in cart",
			method: http.MethodPut,
			path:   itemPath(999999),
			sid:    sid,
			body:   map[string]int{"quantity": 1},
			want:   http.StatusNotFound,
		},
		{
			name:   "remove line not in cart",
			method: http.MethodDelete,
			path:   itemPath(999999),
			sid:    sid,
			want:   http.StatusNotFound,
		},
		{
			name:   "clear without session",
			method: http.MethodDelete,
			path:   "/api/cart",
			want:   http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doSession(t, tt.method, tt.path, tt.sid, tt.body)
			defer resp.Body.Close()

			expectStatus(t, resp, tt.want)
		})
	}

	// Failed updates leave the cart untouched.
	resp := doSession(t, http.MethodGet, "/api/cart", sid, nil)
	defer resp.Body.Close()
	c := decodeJSON[cartResponse](t, resp)
	if line, ok := lineOf(c, espresso.ID); !ok || line.Quantity != 1 || len(c.Lines) != 1 {
		t.Errorf("cart changed by failed requests: %+v", c.Lines)
	}
}

func TestCart_RemoveLastLineEndsSession(t *testing.T) {
	espresso := articleByLabel(t, "Espresso machine")
	tamper := articleByLabel(t, "Tamper")
	sid := newSession(t)
	addItem(t, sid, espresso.ID)
	addItem(t, sid, tamper.ID)

	resp := doSession(t, http.MethodDelete, itemPath(espresso.ID), sid, nil)
	expectStatus(t, resp, http.StatusOK)
	c := decodeJSON[cartResponse](t, resp)
	resp.Body.Close()
	if len(c.Lines) != 1 {
		t.Fatalf("expected 1 line left, got %d", len(c.Lines))
	}

	resp = doSession(t, http.MethodDelete, itemPath(tamper.ID), sid, nil)
	expectStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp = doSession(t, http.MethodGet, "/api/cart", sid, nil)
	defer resp.Body.Close()
	c = decodeJSON[cartResponse](t, resp)
	if c.State != "empty" || len(c.Lines) != 0 {
		t.Errorf("expected an empty cart, got %+v", c)
	}
}

func TestCart_Clear(t *testing.T) {
	sid := newSession(t)
	addItem(t, sid, articleByLabel(t, "Descaler").ID)

	resp := doSession(t, http.MethodDelete, "/api/cart", sid, nil)
	expectStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp = doSession(t, http.MethodGet, "/api/cart", sid, nil)
	defer resp.Body.Close()
	c := decodeJSON[cartResponse](t, resp)
	if len(c.Lines) != 0 {
		t.Errorf("expected no lines after clear, got %d", len(c.Lines))
	}
}
