//go:build integration

package integration

import (
	"net/http"
	"strconv"
	"testing"
)

func placeDraft(t *testing.T, req draftRequest) orderResponse {
	t.Helper()

	resp := doPostWithAuth(t, "/api/orders", req, testAPIKey)
	defer resp.Body.Close()

	expectStatus(t, resp, http.StatusCreated)

	o := decodeJSON[orderResponse](t, resp)
	if loc := resp.Header.Get("Location"); loc != o.URI {
		t.Errorf("Location: got %q, want %q", loc, o.URI)
	}
	return o
}

func TestPlaceOrder_NoAuth(t *testing.T) {
	req := draftRequest{Lines: []draftLine{{ArticleID: 1, Quantity: 1}}}
	resp := doPost(t, "/api/orders", req)
	defer resp.Body.Close()

	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestPlaceOrder_InvalidKey(t *testing.T) {
	req := draftRequest{Lines: []draftLine{{ArticleID: 1, Quantity: 1}}}
	resp := doPostWithAuth(t, "/api/orders", req, "wrong-key")
	defer resp.Body.Close()

	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestPlaceOrder_Draft(t *testing.T) {
	espresso := articleByLabel(t, "Espresso machine")
	frother := articleByLabel(t, "Milk frother")

	o := placeDraft(t, draftRequest{Lines: []draftLine{
		{ArticleID: espresso.ID, Quantity: 1},
		{ArticleURI: "http://shop.example" + frother.URI, Quantity: 2},
	}})

	if o.ID <= 0 {
		t.Fatalf("order id: got %d", o.ID)
	}
	if want := "/api/orders/" + strconv.FormatInt(o.ID, 10); o.URI != want {
		t.Errorf("uri: got %q, want %q", o.URI, want)
	}
	if o.GrandTotal != "328.8" {
		t.Errorf("grandTotal: got %q, want 328.8", o.GrandTotal)
	}
	if len(o.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(o.Lines))
	}
	if o.Lines[1].ArticleID != frother.ID || o.Lines[1].Quantity != 2 {
		t.Errorf("second line: got %+v", o.Lines[1])
	}
	if o.Lines[0].Label != "Espresso machine" {
		t.Errorf("first line label: got %q", o.Lines[0].Label)
	}
}

func TestPlaceOrder_Errors(t *testing.T) {
	tamper := articleByLabel(t, "Tamper")

	tests := []struct {
		name string
		body draftRequest
		want int
	}{
		{name: "no lines", body: draftRequest{Lines: []draftLine{}}, want: http.StatusBadRequest},
		{name: "unknown article", body: draftRequest{Lines: []draftLine{{ArticleID: 999999, Quantity: 1}}}, want: http.StatusUnprocessableEntity},
		{name: "zero quantity", body: draftRequest{Lines: []draftLine{{ArticleID: tamper.ID, Quantity: 0}}}, want: http.StatusUnprocessableEntity},
		{name: "negative quantity", body: draftRequest{Lines: []draftLine{{ArticleID: tamper.ID, Quantity: -2}}}, want: http.StatusUnprocessableEntity},
		{name: "quantity above limit", body: draftRequest{Lines: []draftLine{{ArticleID: tamper.ID, Quantity: 1 << 31}}}, want: http.StatusUnprocessableEntity},
		{name: "malformed ref", body: draftRequest{Lines: []draftLine{{ArticleURI: "INVALID", Quantity: 1}}}, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doPostWithAuth(t, "/api/orders", tt.body, testAPIKey)
			defer resp.Body.Close()

			expectStatus(t, resp, tt.want)

			body := decodeJSON[errorResponse](t, resp)
			if body.Code != tt.want {
				t.Errorf("code: got %d, want %d", body.Code, tt.want)
			}
		})
	}
}

func TestPlaceOrder_PersistedCart(t *testing.T) {
	grinder := articleByLabel(t, "Coffee grinder")
	tablets := articleByLabel(t, "Cleaning tablets")

	for _, p := range []draftLine{
		{ArticleID: grinder.ID, Quantity: 1},
		{ArticleURI: tablets.URI, Quantity: 4},
	} {
		resp := doPostWithAuth(t, "/api/orders/cart-positions", p, testAPIKey)
		expectStatus(t, resp, http.StatusCreated)
		pos := decodeJSON[positionResponse](t, resp)
		resp.Body.Close()
		if pos.Quantity != p.Quantity {
			t.Errorf("position quantity: got %d, want %d", pos.Quantity, p.Quantity)
		}
	}

	// An empty body orders the stored positions.
	resp := doPostWithAuth(t, "/api/orders", nil, testAPIKey)
	expectStatus(t, resp, http.StatusCreated)
	o := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	if len(o.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(o.Lines))
	}
	if o.GrandTotal != "119.46" {
		t.Errorf("grandTotal: got %q, want 119.46", o.GrandTotal)
	}

	// Positions are consumed by the order.
	resp = doPostWithAuth(t, "/api/orders", nil, testAPIKey)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestCartPosition_Errors(t *testing.T) {
	descaler := articleByLabel(t, "Descaler")

	tests := []struct {
		name string
		body draftLine
		want int
	}{
		{name: "zero quantity", body: draftLine{ArticleID: descaler.ID, Quantity: 0}, want: http.StatusUnprocessableEntity},
		{name: "malformed ref", body: draftLine{ArticleURI: "/api/articles/abc", Quantity: 1}, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doPostWithAuth(t, "/api/orders/cart-positions", tt.body, testAPIKey)
			defer resp.Body.Close()

			expectStatus(t, resp, tt.want)
		})
	}
}

func TestCheckoutSessionCart(t *testing.T) {
	espresso := articleByLabel(t, "Espresso machine")
	tamper := articleByLabel(t, "Tamper")
	sid := newSession(t)
	addItem(t, sid, espresso.ID)
	addItem(t, sid, tamper.ID)

	// Zero lines are skipped.
	resp := doSession(t, http.MethodPut, itemPath(tamper.ID), sid, map[string]int{"quantity": 0})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = doSession(t, http.MethodPost, "/api/cart/checkout", sid, nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	resp = doRequest(t, http.MethodPost, "/api/cart/checkout", nil, map[string]string{
		"api_key":     testAPIKey,
		sessionHeader: sid,
	})
	expectStatus(t, resp, http.StatusCreated)
	o := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	if len(o.Lines) != 1 || o.Lines[0].ArticleID != espresso.ID {
		t.Fatalf("order lines: got %+v", o.Lines)
	}
	if o.GrandTotal != "249" {
		t.Errorf("grandTotal: got %q, want 249", o.GrandTotal)
	}

	// The session cart is gone after checkout.
	resp = doSession(t, http.MethodGet, "/api/cart", sid, nil)
	c := decodeJSON[cartResponse](t, resp)
	resp.Body.Close()
	if len(c.Lines) != 0 {
		t.Errorf("expected an empty cart after checkout, got %+v", c.Lines)
	}

	resp = doRequest(t, http.MethodPost, "/api/cart/checkout", nil, map[string]string{
		"api_key":     testAPIKey,
		sessionHeader: sid,
	})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestGetOrder(t *testing.T) {
	descaler := articleByLabel(t, "Descaler")
	placed := placeDraft(t, draftRequest{Lines: []draftLine{{ArticleID: descaler.ID, Quantity: 3}}})

	t.Run("with articles", func(t *testing.T) {
		resp := doGetWithAuth(t, placed.URI, testAPIKey)
		defer resp.Body.Close()

		expectStatus(t, resp, http.StatusOK)
		o := decodeJSON[orderResponse](t, resp)
		if o.ID != placed.ID || o.GrandTotal != "29.85" {
			t.Errorf("order: got %+v", o)
		}
		if len(o.Lines) != 1 || o.Lines[0].Label != "Descaler" || o.Lines[0].Price != "9.95" {
			t.Errorf("lines: got %+v", o.Lines)
		}
	})

	t.Run("order only", func(t *testing.T) {
		resp := doGetWithAuth(t, placed.URI+"?fetch=order_only", testAPIKey)
		defer resp.Body.Close()

		expectStatus(t, resp, http.StatusOK)
		o := decodeJSON[orderResponse](t, resp)
		if len(o.Lines) != 1 || o.Lines[0].Label != "" || o.Lines[0].Price != "" {
			t.Errorf("lines: got %+v", o.Lines)
		}
		if o.Lines[0].ArticleID != descaler.ID || o.Lines[0].Quantity != 3 {
			t.Errorf("line: got %+v", o.Lines[0])
		}
	})

	t.Run("bad fetch mode", func(t *testing.T) {
		resp := doGetWithAuth(t, placed.URI+"?fetch=everything", testAPIKey)
		defer resp.Body.Close()

		expectStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("unknown order", func(t *testing.T) {
		resp := doGetWithAuth(t, "/api/orders/999999", testAPIKey)
		defer resp.Body.Close()

		expectStatus(t, resp, http.StatusNotFound)
	})

	t.Run("customer orders", func(t *testing.T) {
		resp := doGetWithAuth(t, "/api/orders/customer/"+strconv.FormatInt(placed.CustomerID, 10), testAPIKey)
		defer resp.Body.Close()

		expectStatus(t, resp, http.StatusOK)
		orders := decodeJSON[[]orderResponse](t, resp)
		var found bool
		for _, o := range orders {
			if o.ID == placed.ID {
				found = true
			}
		}
		if !found {
			t.Errorf("order %d not listed for customer %d", placed.ID, placed.CustomerID)
		}
	})
}
