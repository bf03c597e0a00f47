package middleware

import (
	"log/slog"
	"net/http"

	"github.com/formrelay-systems/formrelay/internal/httputil"
)

// Recover converts a panic anywhere below it into a structured proxy-error
// acknowledgment. Callers must always be able to distinguish "the proxy
// broke" from "the upstream rejected the data", so the error tag here is
// fixed and never carries upstream content.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				// The logging wrapper lives above this package, so the
				// request id is attached here by hand under the same
				// field name it would use.
				attrs := []any{
					slog.String("path", r.URL.Path),
					slog.Any("panic", rec),
				}
				if reqID := GetRequestID(r.Context()); reqID != "" {
					attrs = append(attrs, slog.String("request_id", reqID))
				}
				slog.Error("panic in request handler", attrs...)
				httputil.WriteJSON(w, http.StatusInternalServerError, map[string]interface{}{
					"success": false,
					"error":   "proxy_error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
