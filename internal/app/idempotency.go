package app

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"booking-service/internal/cache"
)

const idempotencyHeader = "Idempotency-Key"

type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// idempotent replays the first non-5xx response recorded for an
// Idempotency-Key, so a retried booking never books twice. Keys are scoped to
// the tenant and bound to the request body; reusing a key with a different
// body is rejected. Server errors are not recorded and may be retried.
func (a *App) idempotent() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(idempotencyHeader)
		if a.Replay == nil || key == "" {
			c.Next()
			return
		}
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable request body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		tenantID := requestTenant(c, body)
		if tenantID == "" {
			// The handler rejects the request without a tenant.
			c.Next()
			return
		}
		if !tenantAccess(c, tenantID) {
			return
		}
		cacheKey := c.Request.Method + ":" + c.Request.URL.Path + ":" + tenantID + ":" + key
		fingerprint := bodyFingerprint(body)
		ctx := c.Request.Context()

		if r, ok, err := a.Replay.Get(ctx, cacheKey); err != nil {
			log.Printf("app: idempotency lookup %s: %v", cacheKey, err)
		} else if ok {
			if r.Fingerprint != fingerprint {
				c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "idempotency key reused with a different request"})
				return
			}
			c.Header("Idempotent-Replayed", "true")
			c.Data(r.Status, r.ContentType, r.Body)
			c.Abort()
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if status >= http.StatusInternalServerError {
			return
		}
		resp := &cache.Response{
			Status:      status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
			Fingerprint: fingerprint,
		}
		if err := a.Replay.Put(ctx, cacheKey, resp); err != nil {
			log.Printf("app: idempotency store %s: %v", cacheKey, err)
		}
	}
}

// requestTenant resolves the tenant from the route, or from the tenantRef of
// a voice request body.
func requestTenant(c *gin.Context, body []byte) string {
	if id := c.Param("id"); id != "" {
		return id
	}
	var ref struct {
		TenantRef string `json:"tenantRef"`
	}
	if err := json.Unmarshal(body, &ref); err != nil {
		return ""
	}
	return ref.TenantRef
}

func bodyFingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
