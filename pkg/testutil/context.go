package testutil

import (
	"net/http"

	"taxgate/pkg/requestcontext"
)

// WithBearerToken sets the Authorization header the way authenticated clients
// send it.
func WithBearerToken(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// WithRequestID pins the request ID in the context, bypassing the request ID
// middleware for handler-level tests.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithClientMetadata pins the client IP and user agent in the context,
// bypassing the metadata middleware for handler-level tests.
func WithClientMetadata(req *http.Request, ip, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, userAgent))
}
