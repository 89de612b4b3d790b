// Package middleware contains shared Gin middleware for the HTTP layer.
//
// This file hardens responses with a conservative header set suited to a
// JSON API behind a reverse proxy: content sniffing and framing protections
// always, with HSTS, no-store caching, and browser feature policies opt-in.
// There is no CSP here; that only matters when serving HTML.
package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures SecurityHeaders.
//
// EnableHSTS must only be turned on when traffic is HTTPS end-to-end,
// including the proxy-to-app hop; the header is never emitted for plain HTTP
// requests regardless. HSTSMaxAge defaults to 180 days when unset. NoStore
// adds Cache-Control: no-store plus the legacy Pragma/Expires pair for
// sensitive responses. EnablePolicy adds Permissions-Policy and related
// headers, which only affect browsers and are harmless elsewhere.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	NoStore      bool
	EnablePolicy bool
}

// SecurityHeaders attaches the hardening headers on every response. It also
// maintains Access-Control-Expose-Headers so browser clients can read
// X-Request-ID and ETag; ETag matters because the order list endpoint serves
// conditional 304s. Existing expose-header entries set by CORS are preserved
// and deduplicated.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security",
				"max-age="+itoa(maxAge)+"; includeSubDomains; preload")
		}

		const hdr = "Access-Control-Expose-Headers"
		cur := h.Get(hdr)
		for _, name := range []string{"X-Request-ID", "ETag"} {
			if cur == "" {
				cur = name
			} else if !strings.Contains(cur, name) {
				cur += ", " + name
			}
		}
		h.Set(hdr, cur)

		c.Next()
	}
}

// isHTTPS reports whether the request arrived over TLS, either directly or
// via a proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// itoa avoids pulling strconv into this file for one conversion.
func itoa(i int) string { return strconvItoa(i) }

func strconvItoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var b [20]byte
	pos := len(b)
	for i > 0 {
		pos--
		b[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		b[pos] = '-'
	}
	return string(b[pos:])
}
