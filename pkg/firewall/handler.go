package firewall

import (
	"context"
	"net/http"

	"github.com/palisadeproject/palisade/pkg/passport"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	principalKey contextKey = iota
)

// PrincipalFromContext retrieves the authenticated principal from the
// context. Returns nil for an anonymous request.
func PrincipalFromContext(ctx context.Context) *passport.Principal {
	p, _ := ctx.Value(principalKey).(*passport.Principal)
	return p
}

// ContextWithPrincipal returns a new context with the principal attached.
func ContextWithPrincipal(ctx context.Context, p *passport.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// Middleware runs the pipeline in front of the application handler.
// Requests that pass get the principal attached to their context;
// everything else is answered by the pipeline's outcome.
func (d *Dispatcher) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		outcome, principal := d.handle(w, r)
		if !outcome.Proceed() {
			outcome.Write(w, r)
			return
		}
		if principal != nil {
			r = r.WithContext(ContextWithPrincipal(r.Context(), principal))
		}
		next.ServeHTTP(w, r)
	})
}
