package auth

import (
	"context"
	"net/url"
)

// Response is the outcome of one transport round trip, after all redirects
// have been followed. FinalURL carries the resolved location: most of the
// vendor's protocol state (requestId, track_id, authorization code) travels
// in redirect URLs rather than response bodies.
type Response struct {
	Status   int
	Body     string
	FinalURL *url.URL
}

// Transport executes the login protocol's HTTP steps. Two implementations
// exist: a direct HTTP client and a browser-engine-driven one. The vendor
// edge fingerprints client transports and 403s ordinary HTTP libraries, so
// the login state machine must stay transport-agnostic and be able to run
// the identical sequence over either.
//
// Implementations carry cookies across calls within one login attempt.
type Transport interface {
	Get(ctx context.Context, rawURL string) (*Response, error)
	PostForm(ctx context.Context, rawURL string, form url.Values) (*Response, error)
	// Reset drops all accumulated cookies/session state.
	Reset() error
	// Close releases transport resources. Safe to call more than once.
	Close() error
}

func (r *Response) query(key string) string {
	if r == nil || r.FinalURL == nil {
		return ""
	}
	return r.FinalURL.Query().Get(key)
}
