package directory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGetProperty_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/properties/12" {
			t.Fatalf("path = %s, want /api/properties/12", r.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(Property{ID: 12, Address: "서울시 마포구 1"}); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	p, err := client.GetProperty(ctx, 12)
	if err != nil {
		t.Fatalf("GetProperty error: %v", err)
	}
	if p.ID != 12 || p.Address != "서울시 마포구 1" {
		t.Fatalf("unexpected property: %+v", p)
	}
}

func TestGetCustomer_WithoutScheme(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/customers/3" {
			t.Fatalf("path = %s, want /api/customers/3", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(Customer{ID: 3, Name: "Park"})
	}))
	defer ts.Close()

	client := NewClient(strings.TrimPrefix(ts.URL, "http://") + "/")

	c, err := client.GetCustomer(context.Background(), 3)
	if err != nil {
		t.Fatalf("GetCustomer error: %v", err)
	}
	if c.Name != "Park" {
		t.Fatalf("name = %q, want Park", c.Name)
	}
}

func TestGet_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL).GetProperty(context.Background(), 1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGet_TooManyRequests(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL).GetCustomer(context.Background(), 1)

	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("err = %v, want *RateLimitError", err)
	}
	if rl.RetryAfter < 5*time.Second {
		t.Fatalf("retryAfter = %v, want at least 5s", rl.RetryAfter)
	}
}

func TestGet_NotConfigured(t *testing.T) {
	var client *Client
	if _, err := client.GetProperty(context.Background(), 1); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
