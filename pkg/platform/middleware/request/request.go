// Package request provides request ID middleware. Every request gets a
// correlation ID that threads through logs and audit records.
package request

import (
	"net/http"

	"github.com/google/uuid"

	"taxgate/pkg/requestcontext"
)

// HeaderRequestID is the inbound/outbound correlation ID header.
const HeaderRequestID = "X-Request-ID"

// RequestID assigns a correlation ID to the request, honoring an inbound
// X-Request-ID from a trusted proxy and generating one otherwise. The ID is
// echoed back on the response for client-side correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(HeaderRequestID, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
