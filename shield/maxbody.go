package shield

import "net/http"

// MaxBody returns middleware that caps the request body at maxBytes for
// every request. Reads past the cap fail with http.MaxBytesError, which
// handlers surface as 413.
func MaxBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
