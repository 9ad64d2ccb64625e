package middleware

import (
	"net/http"
	"time"
)

// Timeout bounds every API request. The budget must comfortably exceed the
// provider introspection timeout so a slow upstream surfaces as
// UPSTREAM_TIMEOUT from the handler rather than a generic request timeout.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	message := `{"success":false,"error":{"code":"REQUEST_TIMEOUT","message":"request timed out"}}`

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, message)
	}
}
