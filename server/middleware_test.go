package server

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/giygas/medcompare-api/config"
)

func TestGetTokenCost(t *testing.T) {
	tests := []struct {
		name         string
		path         string
		expectedCost int64
	}{
		{"Metrics scrape is free", "/metrics", 0},
		{"Health endpoint", "/health", 5},
		{"Recommendation", "/api/recommendation", 5},
		{"Trust score", "/api/trust-score", 10},
		{"Drill down", "/api/compare/drill", 20},
		{"Compare hits the search service", "/api/compare", 50},
		{"Vote is the most expensive", "/api/vote", 100},
		{"Medication by id", "/api/medications/42", 10},
		{"Default endpoint", "/unknown", 20},
		{"Root path", "/", 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if cost := getTokenCost(req); cost != tt.expectedCost {
				t.Errorf("Expected cost %d for path %s, got %d", tt.expectedCost, tt.path, cost)
			}
		})
	}
}

func TestRealIPMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		remoteAddr string
		expected   string
	}{
		{"single forwarded ip", "203.0.113.1", "192.168.1.1:12345", "203.0.113.1"},
		{"first of a chain", "203.0.113.1, 10.0.0.1", "192.168.1.1:12345", "203.0.113.1"},
		{"no header keeps remote addr", "", "192.168.1.1:12345", "192.168.1.1:12345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}

			var seen string
			RealIPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = r.RemoteAddr
			})).ServeHTTP(httptest.NewRecorder(), req)

			if seen != tt.expected {
				t.Errorf("Expected RemoteAddr %q, got %q", tt.expected, seen)
			}
		})
	}
}

func TestBlockDirectAccessMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		proxied    bool
		expected   int
	}{
		{"localhost allowed", "127.0.0.1:5000", false, http.StatusOK},
		{"ipv6 loopback allowed", "[::1]:5000", false, http.StatusOK},
		{"direct remote blocked", "198.51.100.7:5000", false, http.StatusForbidden},
		{"proxied remote allowed", "198.51.100.7:5000", true, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/compare", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.proxied {
				req.Header.Set("X-Real-IP", "198.51.100.7")
			}

			rr := httptest.NewRecorder()
			BlockDirectAccessMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})).ServeHTTP(rr, req)

			if rr.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, rr.Code)
			}
		})
	}
}

func TestRequestSizeMiddleware(t *testing.T) {
	cfg := &config.Config{MaxRequestBody: 64, MaxHeaderSize: 256}

	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var maxErr *http.MaxBytesError
		if _, err := io.ReadAll(r.Body); errors.As(err, &maxErr) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	handler := RequestSizeMiddleware(cfg)(echo)

	t.Run("small body passes", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("POST", "/api/vote", strings.NewReader(`{"a":1}`)))
		if rr.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", rr.Code)
		}
	})

	t.Run("declared length too large", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("POST", "/api/vote", strings.NewReader(strings.Repeat("x", 100))))
		if rr.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("Expected 413, got %d", rr.Code)
		}
	})

	t.Run("undeclared length is capped while reading", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/vote", strings.NewReader(strings.Repeat("x", 100)))
		req.ContentLength = -1
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("Expected 413, got %d", rr.Code)
		}
	})

	t.Run("headers too large", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/health", nil)
		req.Header.Set("X-Padding", strings.Repeat("p", 300))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusRequestHeaderFieldsTooLarge {
			t.Errorf("Expected 431, got %d", rr.Code)
		}
	})
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter()
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	vote := func(addr string) int {
		req := httptest.NewRequest("POST", "/api/vote", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	// A full bucket pays for 10 votes at 100 tokens each
	for i := 0; i < 10; i++ {
		if code := vote("198.51.100.1:1000"); code != http.StatusOK {
			t.Fatalf("Vote %d: expected 200, got %d", i+1, code)
		}
	}
	if code := vote("198.51.100.1:2000"); code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 once the bucket is drained, got %d", code)
	}
	if code := vote("198.51.100.2:1000"); code != http.StatusOK {
		t.Errorf("Other clients must keep their own bucket, got %d", code)
	}

	if removed := rl.cleanup(); removed != 0 {
		t.Errorf("Drained buckets must survive cleanup, removed %d", removed)
	}

	rl.Stop()
	rl.Stop()
}
