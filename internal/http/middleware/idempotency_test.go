package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func serveIdem(r *gin.Engine, method, path, key string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotencyContextHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatal("key should be absent on a fresh context")
	}
	if IsReplay(c) {
		t.Fatal("IsReplay should default to false")
	}

	// Wrong-type context values must read as absent, not panic.
	c.Set(ctxKeyIdemKey, 123)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatal("non-string key value should read as absent")
	}
	c.Set(ctxKeyIdemReplay, "yes")
	if IsReplay(c) {
		t.Fatal("non-bool replay value should read as false")
	}
	c.Set(ctxKeyIdemReplay, true)
	if !IsReplay(c) {
		t.Fatal("IsReplay should see the stored bool")
	}

	if got := userIDFromCtx(c); got != "demo-user" {
		t.Fatalf("fallback user = %q, want demo-user", got)
	}
	c.Set("userID", "u1")
	if got := userIDFromCtx(c); got != "u1" {
		t.Fatalf("user = %q, want u1", got)
	}
	c.Set("userID", 42)
	if got := userIDFromCtx(c); got != "demo-user" {
		t.Fatalf("wrong-type user = %q, want demo-user fallback", got)
	}
}

func TestIdempotencyValidator_NoHeaderIsNoop(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	lookupCalled := false
	r.Use(IdempotencyValidator(IdempotencyOptions{}, func(context.Context, string, string, time.Time) (bool, error) {
		lookupCalled = true
		return false, nil
	}))
	r.GET("/ping", func(c *gin.Context) {
		if _, ok := GetIdempotencyKey(c); ok {
			t.Error("no key should be stashed without the header")
		}
		c.Status(http.StatusNoContent)
	})

	if w := serveIdem(r, http.MethodGet, "/ping", ""); w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if lookupCalled {
		t.Fatal("lookup must not run without the header")
	}
}

func TestIdempotencyValidator_RejectsBadKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("over max length", func(t *testing.T) {
		r := gin.New()
		r.Use(IdempotencyValidator(IdempotencyOptions{MaxLen: 5}, nil))
		r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := serveIdem(r, http.MethodPost, "/x", "abcdef")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("bad json body: %v", err)
		}
		if body["code"] != "bad_idempotency_key" {
			t.Fatalf("error code = %v, want bad_idempotency_key", body["code"])
		}
	})

	t.Run("pattern mismatch", func(t *testing.T) {
		r := gin.New()
		r.Use(IdempotencyValidator(IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, nil))
		r.POST("/y", func(c *gin.Context) { c.Status(http.StatusOK) })

		if w := serveIdem(r, http.MethodPost, "/y", "abc123"); w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})
}

func TestIdempotencyValidator_ValidKeyWithoutLookup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// zero options exercise the defaults: MaxLen 200 and the token pattern
	r.Use(IdempotencyValidator(IdempotencyOptions{}, nil))
	r.POST("/z", func(c *gin.Context) {
		key, ok := GetIdempotencyKey(c)
		if !ok || key != "abc-123" {
			t.Errorf("stashed key = %q ok=%v, want abc-123", key, ok)
		}
		if IsReplay(c) || IsRateBypass(c) {
			t.Error("nil lookup must not mark replay or bypass")
		}
		c.Status(http.StatusOK)
	})

	if w := serveIdem(r, http.MethodPost, "/z", "abc-123"); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestIdempotencyValidator_LookupMissAndHit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("miss leaves flags unset", func(t *testing.T) {
		r := gin.New()
		lookup := func(_ context.Context, userID, key string, now time.Time) (bool, error) {
			if now.IsZero() || key != "key-1" {
				t.Errorf("lookup saw key=%q now=%v", key, now)
			}
			if userID != "demo-user" {
				t.Errorf("lookup user = %q, want demo-user fallback", userID)
			}
			return false, nil
		}
		r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
		r.POST("/payments/direct-purchase", func(c *gin.Context) {
			if IsReplay(c) || IsRateBypass(c) {
				t.Error("miss must not set replay or bypass")
			}
			c.Status(http.StatusOK)
		})

		if w := serveIdem(r, http.MethodPost, "/payments/direct-purchase", "key-1"); w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
	})

	t.Run("hit marks replay and bypass with the caller identity", func(t *testing.T) {
		r := gin.New()
		r.Use(func(c *gin.Context) { c.Set("userID", "u9"); c.Next() })
		lookup := func(_ context.Context, userID, key string, _ time.Time) (bool, error) {
			if userID != "u9" || key != "k-9" {
				t.Errorf("lookup saw user=%q key=%q", userID, key)
			}
			return true, nil
		}
		r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
		r.POST("/payments/direct-purchase", func(c *gin.Context) {
			if !IsReplay(c) {
				t.Error("hit should set IsReplay")
			}
			if !IsRateBypass(c) {
				t.Error("hit should set IsRateBypass")
			}
			c.Status(http.StatusOK)
		})

		if w := serveIdem(r, http.MethodPost, "/payments/direct-purchase", "k-9"); w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
	})
}
