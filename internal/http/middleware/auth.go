package middleware

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderWebhookSecret carries the shared secret on webhook deliveries.
	HeaderWebhookSecret = "X-Webhook-Secret"
	// HeaderOperatorID identifies the operator calling the operator API.
	HeaderOperatorID = "X-Operator-ID"
	// HeaderAuthorization carries "Bearer <token>" on operator API calls.
	HeaderAuthorization = "Authorization"

	bearerPrefix = "Bearer "

	operatorIDKey = "operatorID"
)

func deny(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}

// WebhookSecret rejects requests whose X-Webhook-Secret differs from secret.
// An empty secret disables the check.
func WebhookSecret(secret string) gin.HandlerFunc {
	want := []byte(secret)
	return func(c *gin.Context) {
		if len(want) == 0 {
			c.Next()
			return
		}
		got := []byte(c.GetHeader(HeaderWebhookSecret))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			deny(c, http.StatusUnauthorized, "unauthorized", "invalid webhook secret")
			return
		}
		c.Next()
	}
}

// APIToken rejects requests whose bearer token differs from token. Unlike
// WebhookSecret it fails closed: an empty token rejects every request.
func APIToken(token string) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		got, ok := bearer(c.GetHeader(HeaderAuthorization))
		if len(want) == 0 || !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			c.Header("WWW-Authenticate", "Bearer")
			deny(c, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		c.Next()
	}
}

// bearer returns the credentials of an "Authorization: Bearer" value.
func bearer(h string) (string, bool) {
	if len(h) < len(bearerPrefix) || !strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(bearerPrefix):]), true
}

// Operator requires X-Operator-ID to name a configured operator and stores
// the id on the context for OperatorID and the rate limiter.
func Operator(isOperator func(int64) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderOperatorID))
		id, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil {
			deny(c, http.StatusUnauthorized, "unauthorized", "missing or invalid "+HeaderOperatorID)
			return
		}
		if !isOperator(id) {
			deny(c, http.StatusForbidden, "forbidden", "not an operator")
			return
		}
		c.Set(operatorIDKey, id)
		c.Next()
	}
}

// OperatorID returns the id stored by Operator.
func OperatorID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(operatorIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
