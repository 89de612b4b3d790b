// Package middleware contains shared Gin middleware for the HTTP layer.
//
// This file covers the request lifecycle basics: correlation IDs, caller
// identity, structured access logs, and panic recovery. Order matters when
// composing them:
//
//  1. RequestID(), so every later log line carries the correlation ID
//  2. Identity(), so logs and idempotency lookups see the caller
//  3. Logger() or RedactingLogger()
//  4. Recovery(), so panics are logged with full request context
//
// The request-scoped zerolog.Logger lives under the "logger" context key and
// is retrieved with LoggerFrom.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"

	// Raw query strings are capped in logs to keep lines bounded.
	maxQueryLogLength = 2048
)

// RequestID reuses the caller's X-Request-ID when present (header lookup is
// case-insensitive) and generates a UUIDv4 otherwise. The ID is echoed on the
// response and stored in the Gin context for later middleware and handlers.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Identity resolves the caller from the X-User-ID header and stores it under
// the "userID" context key consumed by handlers and the idempotency lookup.
// A real deployment swaps this for token verification; keeping it as
// middleware means handlers never change when that happens.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid := c.GetHeader("X-User-ID"); uid != "" {
			c.Set("userID", uid)
		}
		c.Next()
	}
}

// Logger emits one structured access log line per request and attaches a
// request-scoped logger to the context. The line level follows the outcome:
// error for 5xx or when Gin collected errors, warn for 4xx, info otherwise.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid, _ := c.Get(requestIDKey)
		uid, _ := c.Get("userID")
		path := c.FullPath()
		if path == "" {
			// unmatched route, log the raw path
			path = c.Request.URL.Path
		}

		l := log.With().
			Str("request_id", asString(rid)).
			Str("user_id", asString(uid)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("referer", c.Request.Referer()).
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
			Int64("bytes_in", c.Request.ContentLength).
			Logger()

		c.Set("logger", &l)

		c.Next()

		out := l.With().
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Logger()

		status := c.Writer.Status()
		switch {
		case len(c.Errors) > 0:
			out.Error().Str("errors", c.Errors.String()).Msg("request")
		case status >= 500:
			out.Error().Msg("request")
		case status >= 400:
			out.Warn().Msg("request")
		default:
			out.Info().Msg("request")
		}
	}
}

// Recovery turns panics into JSON 500 responses. The panic value and stack
// are logged with the request ID; the JSON body is written only when the
// handler had not already started a response.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid, _ := c.Get(requestIDKey)
			log.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", asString(rid)).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header("Content-Type", "application/json")
			c.Header(requestIDHeader, asString(rid))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": asString(rid),
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger attached by Logger or
// RedactingLogger, or a bare fallback so callers never need a nil check.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get("logger"); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// truncate caps s at max bytes, appending an ellipsis when cut. max <= 0
// disables the cap. Byte truncation can split a rune, which is fine for logs.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
