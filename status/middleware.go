package status

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

// LoggerKey holds the per-request logger.
const LoggerKey contextKey = "status_logger"

// Headers are the security headers set on every response.
type Headers struct {
	CSP                 string
	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
}

// DefaultHeaders suits a JSON-only API.
func DefaultHeaders() Headers {
	return Headers{
		CSP:                 "default-src 'none'; frame-ancestors 'none'",
		XFrameOptions:       "DENY",
		XContentTypeOptions: "nosniff",
		ReferrerPolicy:      "no-referrer",
	}
}

// SecurityHeaders sets the non-empty fields of h on every response.
func SecurityHeaders(h Headers) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			set := func(k, v string) {
				if v != "" {
					w.Header().Set(k, v)
				}
			}
			set("Content-Security-Policy", h.CSP)
			set("X-Frame-Options", h.XFrameOptions)
			set("X-Content-Type-Options", h.XContentTypeOptions)
			set("Referrer-Policy", h.ReferrerPolicy)
			next.ServeHTTP(w, r)
		})
	}
}

// HeadToGet lets GET routes answer HEAD requests.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLog tags each request with an X-Request-ID and stores a logger
// carrying it in the context.
func RequestLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)
			l := logger.With("request_id", id, "method", r.Method, "path", r.URL.Path)
			l.Debug("status: request")
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), LoggerKey, l)))
		})
	}
}

// GetLogger returns the request logger, or slog.Default.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
