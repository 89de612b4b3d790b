// Package middleware contains shared Gin middleware for the HTTP layer.
//
// This file handles the transport side of idempotent order creation: it
// validates the Idempotency-Key header, stashes the key for handlers, and
// optionally probes storage for an earlier result so replays can skip rate
// limiting. The dedup guarantee itself lives in the repo layer (unique index
// plus insert-or-reselect); nothing here returns cached payloads.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client-chosen key for unsafe operations.
// Retries of the same semantic operation must send the same value so they
// resolve to the same order.
const HeaderIdempotencyKey = "Idempotency-Key"

// Context keys for idempotency state. Unexported on purpose; use the
// accessor helpers.
const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// GetIdempotencyKey returns the validated key stashed by IdempotencyValidator
// and whether one is present. Handlers read the key through this helper, not
// the raw header, so they only ever see validated values.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether this request matches a previously completed
// operation for the same user and key. Handlers may short-circuit and serve
// the persisted result.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions tunes header validation. Key TTLs are a storage concern
// and belong inside the lookup, not here.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. Nil means the default token
	// pattern ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// IdempotencyLookup answers whether an order already exists for
// (userID, key) as of now. Implementations consult the orders table's
// idempotency_key column. Lookup errors must not block processing; the create
// path still dedups at the unique index.
type IdempotencyLookup func(ctx context.Context, userID, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator validates the Idempotency-Key header when present,
// stashes the key in the context, and marks replays via the supplied lookup.
// Requests without the header pass through untouched; a malformed header is
// rejected with 400 before any handler runs. Replays additionally set the
// rate-bypass flag so the limiter does not charge retries.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "bad_idempotency_key",
				"message": "invalid Idempotency-Key",
			})
			return
		}

		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			uid := userIDFromCtx(c)
			if exists, _ := lookup(c.Request.Context(), uid, key, time.Now().UTC()); exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}

// userIDFromCtx reads the caller identity set by Identity(). The demo-user
// fallback keeps local development working without auth headers.
func userIDFromCtx(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "demo-user"
}
