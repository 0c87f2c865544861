package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/ratelimit"
)

func send(h http.Handler, path, remote, forwarded string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remote
	if forwarded != "" {
		req.Header.Set("X-Forwarded-For", forwarded)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(ratelimit.New(2, time.Minute), nil)(okHandler())

	for i := 0; i < 2; i++ {
		if rec := send(h, "/api/v1/proximity", "10.0.0.1:5000", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}
	rec := send(h, "/api/v1/proximity", "10.0.0.1:5001", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 without Retry-After")
	}
	if rec := send(h, "/health/live", "10.0.0.1:5002", ""); rec.Code != http.StatusOK {
		t.Errorf("health check limited: %d", rec.Code)
	}
	if rec := send(h, "/api/v1/proximity", "10.0.0.2:5000", ""); rec.Code != http.StatusOK {
		t.Errorf("another peer shares the first peer's bucket: %d", rec.Code)
	}
}

func TestRateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	limiter := ratelimit.New(1, time.Minute)
	h := RateLimit(limiter, nil)(okHandler())

	allowed := 0
	for i := 0; i < 50; i++ {
		spoofed := netip.AddrFrom4([4]byte{10, 0, 0, byte(i)}).String()
		if send(h, "/api/v1/proximity", "198.51.100.9:4000", spoofed).Code == http.StatusOK {
			allowed++
		}
	}
	if allowed != 1 {
		t.Errorf("%d of 50 requests allowed, want 1", allowed)
	}
	if got := limiter.Len(); got != 1 {
		t.Errorf("limiter tracks %d keys, want 1", got)
	}
}

func TestClientIP(t *testing.T) {
	trusted := []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.0.2.1/32"),
	}
	tests := []struct {
		name      string
		remote    string
		forwarded string
		want      string
	}{
		{"untrusted peer", "198.51.100.9:4000", "203.0.113.5", "198.51.100.9"},
		{"trusted peer without header", "10.1.2.3:4000", "", "10.1.2.3"},
		{"trusted peer single hop", "10.1.2.3:4000", "203.0.113.5", "203.0.113.5"},
		{"right-most untrusted hop wins", "10.1.2.3:4000", "1.1.1.1, 203.0.113.5, 192.0.2.1", "203.0.113.5"},
		{"all hops trusted", "10.1.2.3:4000", "10.9.9.9, 192.0.2.1", "10.1.2.3"},
		{"garbage hop", "10.1.2.3:4000", "203.0.113.5, not-an-ip", "10.1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIP(req, trusted); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
