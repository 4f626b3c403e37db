package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/asksql/asksql/internal/model"
)

// RateLimit returns an HTTP middleware that limits requests per IP address
// to the specified number per minute using a sliding window. A limit of
// zero or less disables limiting. Rejected requests get the standard JSON
// error envelope with status 429.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(tooManyRequests),
	)
}

func tooManyRequests(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    http.StatusTooManyRequests,
			Message: "Rate limit exceeded, retry later",
			Context: map[string]any{"request_id": GetRequestID(r.Context())},
		},
	})
}
