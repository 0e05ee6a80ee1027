package firewall

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"connectrpc.com/connect"
)

// Interceptor runs the pipeline for unary RPC handlers. The procedure
// path is dispatched like an HTTP path, so firewalls and access rules
// written against "^/pkg.Service/" cover RPCs unchanged.
type Interceptor struct {
	dispatcher *Dispatcher
}

// NewInterceptor creates a connect interceptor backed by the dispatcher.
func NewInterceptor(d *Dispatcher) *Interceptor {
	return &Interceptor{dispatcher: d}
}

// WrapUnary implements connect.Interceptor.
func (i *Interceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		hr := &http.Request{
			Method: http.MethodPost,
			URL:    &url.URL{Path: req.Spec().Procedure},
			Header: req.Header(),
		}
		hr = hr.WithContext(ctx)

		outcome, principal := i.dispatcher.handle(discardWriter{header: make(http.Header)}, hr)
		if !outcome.Proceed() {
			return nil, connect.NewError(codeFor(outcome.Status), errors.New("request rejected"))
		}
		if principal != nil {
			ctx = ContextWithPrincipal(ctx, principal)
		}
		return next(ctx, req)
	}
}

// WrapStreamingClient implements connect.Interceptor.
func (i *Interceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler implements connect.Interceptor.
func (i *Interceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}

func codeFor(status int) connect.Code {
	switch status {
	case http.StatusForbidden:
		return connect.CodePermissionDenied
	case http.StatusInternalServerError:
		return connect.CodeInternal
	default:
		// Redirects and 401s both mean the RPC caller is not
		// authenticated.
		return connect.CodeUnauthenticated
	}
}

// discardWriter absorbs transport side effects (cookies) that have no
// meaning for RPC callers.
type discardWriter struct {
	header http.Header
}

func (d discardWriter) Header() http.Header         { return d.header }
func (d discardWriter) Write(p []byte) (int, error) { return len(p), nil }
func (d discardWriter) WriteHeader(int)             {}
