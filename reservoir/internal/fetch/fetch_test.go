package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGetReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "reservoir/") {
			t.Errorf("user agent: %q", ua)
		}
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	f := New(Config{})
	body, err := f.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(body) != "hello" {
		t.Fatalf("body: %q", body)
	}
}

func TestGetRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	f := New(Config{})
	if _, err := f.Get(context.Background(), srv.URL); err == nil || !strings.Contains(err.Error(), "410") {
		t.Fatalf("want status error, got %v", err)
	}
}

func TestGetCapsBodySize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	f := New(Config{MaxBytes: 1024})
	if _, err := f.Get(context.Background(), srv.URL); err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("want size error, got %v", err)
	}
}
