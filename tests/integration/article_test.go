//go:build integration

package integration

import (
	"net/http"
	"strconv"
	"testing"
)

func TestListArticles(t *testing.T) {
	resp := doGet(t, "/api/articles")
	defer resp.Body.Close()

	expectStatus(t, resp, http.StatusOK)

	articles := decodeJSON[[]articleResponse](t, resp)
	if len(articles) != seededCount {
		t.Fatalf("expected %d articles, got %d", seededCount, len(articles))
	}

	for _, a := range articles {
		if a.ID <= 0 {
			t.Errorf("article %q has id %d", a.Label, a.ID)
		}
		if want := "/api/articles/" + strconv.FormatInt(a.ID, 10); a.URI != want {
			t.Errorf("article %d uri: got %q, want %q", a.ID, a.URI, want)
		}
		if a.Label == "" {
			t.Errorf("article %d has empty label", a.ID)
		}
		if a.Price == "" {
			t.Errorf("article %d has empty price", a.ID)
		}
	}
}

func TestGetArticle(t *testing.T) {
	want := articleByLabel(t, "Milk frother")

	resp := doGet(t, want.URI)
	defer resp.Body.Close()

	expectStatus(t, resp, http.StatusOK)

	got := decodeJSON[articleResponse](t, resp)
	if got.ID != want.ID {
		t.Errorf("id: got %d, want %d", got.ID, want.ID)
	}
	if got.Label != "Milk frother" {
		t.Errorf("label: got %q, want %q", got.Label, "Milk frother")
	}
	if got.Price != "39.9" {
		t.Errorf("price: got %q, want %q", got.Price, "39.9")
	}
}

func TestGetArticle_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
		want int
	}{
		{name: "unknown id", path: "/api/articles/999999", want: http.StatusNotFound},
		{name: "not a number", path: "/api/articles/abc", want: http.StatusBadRequest},
		{name: "zero", path: "/api/articles/0", want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doGet(t, tt.path)
			defer resp.Body.Close()

			expectStatus(t, resp, tt.want)

			body := decodeJSON[errorResponse](t, resp)
			if body.Code != tt.want {
				t.Errorf("code: got %d, want %d", body.Code, tt.want)
			}
		})
	}
}
