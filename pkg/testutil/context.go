package testutil

import (
	"net/http"
	"time"

	"persona/pkg/requestcontext"
)

// WithRequestMetadata attaches what the platform middleware would put on a
// request: request ID, client metadata and a fixed request time.
func WithRequestMetadata(req *http.Request, requestID string, now time.Time) *http.Request {
	ctx := requestcontext.WithRequestID(req.Context(), requestID)
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", "persona-test/1.0")
	ctx = requestcontext.WithTime(ctx, now)
	return req.WithContext(ctx)
}
