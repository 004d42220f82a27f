package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("pngdata"))
		case "/big.png":
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		case "/empty.png":
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5*time.Second, 32)
	data, ct, err := f.Fetch(context.Background(), srv.URL+"/ok.png")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "pngdata" || ct != "image/png" {
		t.Fatalf("Fetch = %q %q", data, ct)
	}

	for _, path := range []string{"/big.png", "/empty.png", "/missing.png"} {
		if _, _, err := f.Fetch(context.Background(), srv.URL+path); err == nil {
			t.Fatalf("expected error for %s", path)
		}
	}
}
