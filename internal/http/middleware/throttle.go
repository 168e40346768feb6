package middleware

import (
	"encoding/json"
	"net/http"

	"apgc/backend/internal/rate"
)

// ScanThrottle rate-limits authenticated operators. Requests without an
// operator fall back to the client address.
func ScanThrottle(limiter *rate.KeyedLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			key, ok := OperatorFromContext(r.Context())
			if !ok {
				key = "ip:" + r.RemoteAddr
			}
			if !limiter.Allow(key) {
				w.Header().Set("Retry-After", "1")
				writeJSONError(w, http.StatusTooManyRequests, "too many scans")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
