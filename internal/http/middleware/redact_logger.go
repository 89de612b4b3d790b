// Package middleware contains shared Gin middleware for the HTTP layer.
//
// This file is the PII-aware access logger. It never logs request or
// response bodies; query strings and header values are scrubbed of emails,
// phone numbers, and UUID-like identifiers before the line is emitted, and
// credential-bearing headers are masked outright. Scrubbing reduces the risk
// of PII reaching logs but does not excuse clients from keeping identifiers
// out of query strings in the first place.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions adds extra headers to mask beyond the built-ins
// (Authorization, Cookie, Set-Cookie, Idempotency-Key). Matching is
// case-insensitive. Idempotency keys are masked because clients commonly
// derive them from order identifiers.
type RedactOptions struct {
	MaskHeaders []string
}

// RedactingLogger logs one scrubbed line per request: method, route, query,
// status, size, latency, and headers, at info/warn/error depending on the
// response status. Substitution order is UUIDs first, then emails, then
// phones; the phone pattern is the loosest and would otherwise eat the digit
// runs inside a UUID.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	uuidRE := regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE := regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits only, so hex segments of already-redacted IDs cannot re-match.
	phoneRE := regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)

	redact := func(s string) string {
		if s == "" {
			return s
		}
		out := uuidRE.ReplaceAllString(s, "[REDACTED:id]")
		out = emailRE.ReplaceAllString(out, "[REDACTED:email]")
		return phoneRE.ReplaceAllString(out, "[REDACTED:phone]")
	}

	masked := map[string]struct{}{
		"authorization":   {},
		"cookie":          {},
		"set-cookie":      {},
		"idempotency-key": {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		safeQuery := redact(c.Request.URL.RawQuery)

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := masked[strings.ToLower(k)]; ok {
				safeHeaders[k] = "[REDACTED]"
				continue
			}
			safeHeaders[k] = redact(strings.Join(vv, ", "))
		}

		c.Next()

		status := c.Writer.Status()

		// Prefer the ID RequestID() wrote to the response; fall back to the
		// inbound header when the middleware is absent.
		reqID := c.Writer.Header().Get("X-Request-ID")
		if reqID == "" {
			reqID = c.GetHeader("X-Request-ID")
		}

		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}

		ev.
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", safeQuery).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
