package auth

import (
	"net/http"

	"github.com/jonwraymond/workerhealth/observe"
)

// Require returns middleware that rejects unauthenticated requests with 401
// and stores the caller's Identity in the request context otherwise. A nil
// Authenticator lets every request through.
func Require(a Authenticator, logger observe.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observe.NewNopLogger()
	}
	return func(next http.Handler) http.Handler {
		if a == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := a.Authenticate(r.Context(), r)
			if err != nil {
				logger.Warn(r.Context(), "request rejected",
					observe.F("path", r.URL.Path),
					observe.F("error", err.Error()),
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="workerhealthd"`)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
