package image

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func searchServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "test-key")
}

func TestSearchSuccess(t *testing.T) {
	c := searchServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/photos" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("query"); got != "restaurant" {
			t.Errorf("query = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Client-ID test-key" {
			t.Errorf("authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"urls":{"regular":"https://img.example/r.jpg"}}]}`))
	})

	url, err := c.Search(context.Background(), "restaurant")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if url != "https://img.example/r.jpg" {
		t.Errorf("url = %q", url)
	}
}

func TestSearchNoKey(t *testing.T) {
	c := New("", "")
	if _, err := c.Search(context.Background(), "hotel"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
}

func TestSearchStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusInternalServerError, ErrMalformedResponse},
	}
	for _, tt := range tests {
		c := searchServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})
		if _, err := c.Search(context.Background(), "markt"); !errors.Is(err, tt.want) {
			t.Errorf("status %d: error = %v, want %v", tt.status, err, tt.want)
		}
	}
}

func TestSearchMalformedBody(t *testing.T) {
	c := searchServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	if _, err := c.Search(context.Background(), "büro"); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("error = %v, want ErrMalformedResponse", err)
	}
}

func TestSearchEmptyResults(t *testing.T) {
	c := searchServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	})
	if _, err := c.Search(context.Background(), "café"); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("error = %v, want ErrMalformedResponse", err)
	}
}

func TestSearchNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := New(srv.URL, "test-key")
	if _, err := c.Search(context.Background(), "küche"); !errors.Is(err, ErrNetwork) {
		t.Errorf("error = %v, want ErrNetwork", err)
	}
}
