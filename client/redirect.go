package client

import (
	"context"
	"fmt"
	"net/http"
)

type redirectKey struct{}

func withRedirectPolicy(ctx context.Context, p RedirectPolicy) context.Context {
	return context.WithValue(ctx, redirectKey{}, p)
}

// checkRedirect applies the policy carried by the request context, or def
// when the request did not set one.
func checkRedirect(def RedirectPolicy) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		p := def
		if v, ok := req.Context().Value(redirectKey{}).(RedirectPolicy); ok {
			p = v
		}

		if !p.Follow {
			return http.ErrUseLastResponse
		}
		if len(via) > p.Max {
			return fmt.Errorf("%w: stopped after %d", ErrTooManyRedirects, p.Max)
		}

		return nil
	}
}
