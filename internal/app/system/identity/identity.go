// internal/app/system/identity/identity.go

// Package identity carries the authenticated-caller record supplied by the
// external identity gateway.
//
// Token validation happens upstream; by the time a request reaches this
// service the gateway has already verified it and forwarded the stable
// subject identifier plus mutable profile fields as headers. An absent
// subject header means the caller is anonymous — that is a representable
// state, not an error, and each operation decides whether it requires
// authentication.
package identity

import (
	"context"
	"net/http"
)

// Gateway headers. The deployment must ensure these are stripped from
// client traffic and only ever set by the identity gateway.
const (
	HeaderSubject = "X-Auth-Subject"
	HeaderName    = "X-Auth-Name"
	HeaderEmail   = "X-Auth-Email"
	HeaderPicture = "X-Auth-Picture"
)

// Identity is the inbound authenticated-identity record.
type Identity struct {
	Subject    string `json:"subject"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	PictureURL string `json:"picture_url,omitempty"`
}

// IsZero reports whether no identity was presented (anonymous caller).
func (id Identity) IsZero() bool { return id.Subject == "" }

type ctxKey struct{}

// WithIdentity returns a context carrying the identity record.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity record from the context, or the zero
// Identity when the caller is anonymous.
func FromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(ctxKey{}).(Identity)
	return id
}

// FromRequest is shorthand for FromContext(r.Context()).
func FromRequest(r *http.Request) Identity {
	return FromContext(r.Context())
}

// Middleware lifts the gateway headers into the request context. It never
// rejects a request; anonymous callers pass through with a zero Identity.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{
			Subject:    r.Header.Get(HeaderSubject),
			Name:       r.Header.Get(HeaderName),
			Email:      r.Header.Get(HeaderEmail),
			PictureURL: r.Header.Get(HeaderPicture),
		}
		if !id.IsZero() {
			r = r.WithContext(WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
