package transport

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/rhuss/rollcall/pkg/api"
)

// Recovery returns middleware that catches panics in the handler and
// converts them to a generic 500 response. The panic value and stack are
// logged but never sent to the client. The server continues to accept new
// requests after a panic is recovered. When the handler already started
// the response, the panic is only logged.
func Recovery(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic recovered",
					"request_id", RequestIDFromContext(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()),
					"response_started", sw.written,
				)
				if sw.written {
					return
				}
				WriteAPIError(w, api.NewInternalError())
			}()
			next.ServeHTTP(sw, r)
		})
	}
}
