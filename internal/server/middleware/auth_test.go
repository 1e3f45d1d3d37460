package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthAcceptsEveryKeyCarrier(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Auth("s3cret")(next)

	tests := []struct {
		name    string
		prepare func(r *http.Request)
		want    int
	}{
		{"bearer header", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer s3cret")
		}, http.StatusOK},
		{"api key header", func(r *http.Request) {
			r.Header.Set("X-API-Key", "s3cret")
		}, http.StatusOK},
		{"query param", func(r *http.Request) {
			q := r.URL.Query()
			q.Set("api_key", "s3cret")
			r.URL.RawQuery = q.Encode()
		}, http.StatusOK},
		{"wrong key", func(r *http.Request) {
			r.Header.Set("X-API-Key", "nope")
		}, http.StatusUnauthorized},
		{"no key", func(r *http.Request) {}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status got=%d want=%d", rec.Code, tt.want)
			}
		})
	}
}

func TestAuthDisabledWithoutKey(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Auth("")(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status got=%d want=200", rec.Code)
	}
}
