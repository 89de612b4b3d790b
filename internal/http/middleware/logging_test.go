package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// captureLogger points the global zerolog logger at a buffer for the duration
// of the test so log lines can be asserted on.
func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func logGet(r *gin.Engine, path string, hdr map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/rid", func(c *gin.Context) {
		if v, ok := c.Get(requestIDKey); !ok || v == "" {
			t.Error("request id missing from context")
		}
		c.String(http.StatusOK, "ok")
	})

	if got := logGet(r, "/rid", nil).Header().Get(requestIDHeader); got == "" {
		t.Fatal("no generated request id on response")
	}

	// header lookup is case-insensitive, the inbound id wins
	w := logGet(r, "/rid", map[string]string{strings.ToLower(requestIDHeader): "abc-123"})
	if got := w.Header().Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("propagated id = %q, want abc-123", got)
	}
}

func TestIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Identity())
	r.GET("/me", func(c *gin.Context) {
		v, _ := c.Get("userID")
		c.String(http.StatusOK, "%v", v)
	})

	if got := logGet(r, "/me", map[string]string{"X-User-ID": "buyer-7"}).Body.String(); got != "buyer-7" {
		t.Fatalf("userID = %q, want buyer-7", got)
	}
	if got := logGet(r, "/me", nil).Body.String(); got != "<nil>" && got != "" {
		t.Fatalf("userID without header = %q, want unset", got)
	}
}

type errSentinel struct{}

func (errSentinel) Error() string { return "boom" }

func TestLogger_LevelsAndPathFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID())
	r.Use(Logger())
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "hello") })
	r.GET("/err", func(c *gin.Context) {
		// a collected gin error forces the error level even on a 4xx
		_ = c.Error(errSentinel{})
		c.Status(http.StatusBadRequest)
	})

	if w := logGet(r, "/ok", nil); w.Code != http.StatusOK {
		t.Fatalf("GET /ok = %d", w.Code)
	}
	if w := logGet(r, "/missing", nil); w.Code != http.StatusNotFound {
		t.Fatalf("GET /missing = %d", w.Code)
	}
	if w := logGet(r, "/err", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("GET /err = %d", w.Code)
	}

	logs := buf.String()
	if !strings.Contains(logs, `"level":"info"`) || !strings.Contains(logs, `"path":"/ok"`) {
		t.Fatalf("missing info line for the matched route:\n%s", logs)
	}
	if !strings.Contains(logs, `"level":"warn"`) || !strings.Contains(logs, `"path":"/missing"`) {
		t.Fatalf("404 should log raw path at warn:\n%s", logs)
	}
	if !strings.Contains(logs, `"level":"error"`) {
		t.Fatalf("collected error should log at error level:\n%s", logs)
	}
}

func TestRecovery_WritesJSON500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID())
	r.Use(Logger())
	r.Use(Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	w := logGet(r, "/panic", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad json body: %v", err)
	}
	if body["code"] != "internal_error" || body["message"] != "internal server error" {
		t.Fatalf("body = %v", body)
	}
	if out := buf.String(); !strings.Contains(out, "panic recovered") && !strings.Contains(out, `"panic"`) {
		t.Fatalf("panic not logged:\n%s", out)
	}
}

func TestRecovery_PanicAfterWriteSkipsJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID())
	r.Use(Logger())
	r.Use(Recovery())
	r.GET("/late", func(c *gin.Context) {
		c.String(http.StatusOK, "partial-body")
		panic("late kaboom")
	})

	w := logGet(r, "/late", nil)

	// The status may already be flushed as 200; what matters is that Recovery
	// did not append a JSON error body onto the partial response.
	if strings.Contains(w.Body.String(), "internal error") ||
		strings.Contains(strings.ToLower(w.Header().Get("Content-Type")), "application/json") {
		t.Fatalf("JSON error written over a started response: CT=%q body=%q",
			w.Header().Get("Content-Type"), w.Body.String())
	}
	if out := buf.String(); !strings.Contains(out, "panic recovered") && !strings.Contains(out, `"panic"`) {
		t.Fatalf("panic not logged:\n%s", out)
	}
}

func TestLoggerFrom(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("fallback without Logger installed", func(t *testing.T) {
		buf := captureLogger(t)
		r := gin.New()
		r.Use(RequestID())
		r.GET("/use", func(c *gin.Context) {
			LoggerFrom(c).Info().Msg("custom")
			c.Status(http.StatusOK)
		})
		logGet(r, "/use", nil)

		if !strings.Contains(buf.String(), `"message":"custom"`) {
			t.Fatal("fallback logger dropped the line")
		}
		if strings.Contains(buf.String(), `"request_id"`) {
			t.Fatal("fallback logger should not carry request fields")
		}
	})

	t.Run("request-scoped with Logger installed", func(t *testing.T) {
		buf := captureLogger(t)
		r := gin.New()
		r.Use(RequestID())
		r.Use(Logger())
		r.GET("/use", func(c *gin.Context) {
			LoggerFrom(c).Info().Msg("custom2")
			c.Status(http.StatusOK)
		})
		logGet(r, "/use", nil)

		out := buf.String()
		if !strings.Contains(out, `"message":"custom2"`) {
			t.Fatal("request-scoped line missing")
		}
		if !strings.Contains(out, `"request_id"`) {
			t.Fatal("request-scoped logger missing request_id")
		}
	})
}

func TestStringHelpers(t *testing.T) {
	if asString("x") != "x" || asString(123) != "" {
		t.Fatal("asString type handling broken")
	}
	if truncate("hello", 10) != "hello" {
		t.Fatal("truncate should pass short strings through")
	}
	if got := truncate("abcdefgh", 5); got != "abcde…" {
		t.Fatalf("truncate = %q, want %q", got, "abcde…")
	}
	if truncate("abc", 0) != "abc" {
		t.Fatal("max 0 should disable truncation")
	}
}
