package httpx

import (
	"net/http"
	"strings"
	"time"

	kafkax "github.com/ariefcatur/go-hotel-booking/internal/kafka"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// RequestLogger writes one logrus entry per request.
func RequestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				entry := log.WithFields(logrus.Fields{
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      ww.Status(),
					"bytes":       ww.BytesWritten(),
					"duration_ms": time.Since(start).Milliseconds(),
					"request_id":  middleware.GetReqID(r.Context()),
				})
				if ww.Status() >= 500 {
					entry.Warn("http request")
					return
				}
				entry.Info("http request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// TraceEvents stamps the request id onto every event published while serving the request.
func TraceEvents(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kafkax.WithTraceID(r.Context(), middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserHeader carries the caller identity set by the auth layer in front of the API.
const UserHeader = "X-User-Id"

func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserHeader))
}
