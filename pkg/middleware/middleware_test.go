package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func doRequest(r *gin.Engine, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotencyMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdempotencyMiddleware(IdempotencyConfig{TTL: time.Minute}))
	r.POST("/check-in", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("no key passes through", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			if w := doRequest(r, "/check-in", nil); w.Code != http.StatusOK {
				t.Errorf("Expected 200, got %d", w.Code)
			}
		}
	})

	t.Run("duplicate key rejected", func(t *testing.T) {
		h := map[string]string{"Idempotency-Key": "abc-123"}
		if w := doRequest(r, "/check-in", h); w.Code != http.StatusOK {
			t.Errorf("Expected 200 on first request, got %d", w.Code)
		}
		if w := doRequest(r, "/check-in", h); w.Code != http.StatusConflict {
			t.Errorf("Expected 409 on duplicate, got %d", w.Code)
		}
	})

	t.Run("distinct keys pass", func(t *testing.T) {
		if w := doRequest(r, "/check-in", map[string]string{"Idempotency-Key": "k1"}); w.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", w.Code)
		}
		if w := doRequest(r, "/check-in", map[string]string{"Idempotency-Key": "k2"}); w.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", w.Code)
		}
	})
}

func TestRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl, err := NewRateLimiter(RateLimiterConfig{
		Rate:      "3-M",
		SkipPaths: []string{"/sos"},
	})
	if err != nil {
		t.Fatalf("Failed to build limiter: %v", err)
	}

	r := gin.New()
	r.Use(rl.Middleware())
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.POST("/start-timer", ok)
	r.POST("/sos", ok)

	t.Run("throttles after limit", func(t *testing.T) {
		var last int
		for i := 0; i < 4; i++ {
			last = doRequest(r, "/start-timer", nil).Code
		}
		if last != http.StatusTooManyRequests {
			t.Errorf("Expected 429 after limit, got %d", last)
		}
	})

	t.Run("skip paths never throttled", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			if w := doRequest(r, "/sos", nil); w.Code != http.StatusOK {
				t.Errorf("Expected 200 on exempt path, got %d", w.Code)
			}
		}
	})
}

func TestRateLimiterBadRate(t *testing.T) {
	if _, err := NewRateLimiter(RateLimiterConfig{Rate: "garbage"}); err == nil {
		t.Error("Expected error for malformed rate")
	}
}
