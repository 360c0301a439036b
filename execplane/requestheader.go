package execplane

import (
	"context"
	"net/http"
)

// requestHeaderContextKey is the context key under which an inbound request's
// headers are stashed so a transport can hand them over to a subgraph call.
// Promoted from the teacher's federation/executor context helpers of the
// same name into execplane, since hand-over is now a transport-level concern
// (see transport/httptransport) rather than something tied to one executor.
type requestHeaderContextKey struct{}

// SetRequestHeaderToContext stores header on ctx for a later
// GetRequestHeaderFromContext call further down the same request's call
// chain.
func SetRequestHeaderToContext(ctx context.Context, header http.Header) context.Context {
	return context.WithValue(ctx, requestHeaderContextKey{}, header)
}

// GetRequestHeaderFromContext recovers headers stored by
// SetRequestHeaderToContext, or nil if none were stored.
func GetRequestHeaderFromContext(ctx context.Context) http.Header {
	h, ok := ctx.Value(requestHeaderContextKey{}).(http.Header)
	if !ok {
		return nil
	}
	return h
}
