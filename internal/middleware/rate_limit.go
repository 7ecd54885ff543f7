package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/vin-sipoi/jengahacks-api/internal/models"
	pkghttp "github.com/vin-sipoi/jengahacks-api/pkg/http"
)

// RequestRateLimit holds transport-level rate limiting configuration.
// This is a coarse per-IP request throttle in front of the whole API;
// the admission controller applies the business-level per-identifier
// limits separately.
type RequestRateLimit struct {
	RequestsPerMinute int
}

// DefaultRequestRateLimit allows 60 requests per minute per IP
func DefaultRequestRateLimit() RequestRateLimit {
	return RequestRateLimit{
		RequestsPerMinute: 60,
	}
}

// RateLimitByIP creates a middleware that rate limits requests by client
// IP. Keys on the socket peer address, not forwarding headers, which a
// client controls.
func RateLimitByIP(config RequestRateLimit) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteRateLimited(w, models.CodeRateLimitExceeded,
				"too many requests", time.Minute)
		}),
	)
}
