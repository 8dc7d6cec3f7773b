package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

type storedResponse struct {
	status      int
	contentType string
	body        []byte
}

type teeWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w teeWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w teeWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Cache memoizes successful GET responses by request URI for the given TTL.
// Polled status endpoints must not be wrapped in it; it is meant for listing
// routes whose staleness window is acceptable.
func Cache(store *cache.Cache, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.RequestURI
		if hit, ok := store.Get(key); ok {
			resp := hit.(storedResponse)
			c.Data(resp.status, resp.contentType, resp.body)
			c.Abort()
			return
		}

		tee := teeWriter{ResponseWriter: c.Writer, buf: bytes.NewBuffer(nil)}
		c.Writer = tee
		c.Next()

		if status := tee.Status(); status >= 200 && status < 300 {
			store.Set(key, storedResponse{
				status:      status,
				contentType: tee.Header().Get("Content-Type"),
				body:        tee.buf.Bytes(),
			}, ttl)
		}
	}
}
