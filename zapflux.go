// Package zapflux exposes the client and session builders.
package zapflux

import (
	"context"
	"fmt"

	"github.com/adamwoolhether/zapflux/client"
	"github.com/adamwoolhether/zapflux/config"
	"github.com/adamwoolhether/zapflux/flux"
)

// NewClient instantiates the process-wide *client.Client with the provided
// options. If not specified, http.DefaultTransport is used.
func NewClient(opts ...client.Option) (*client.Client, error) {
	return client.Build(opts...)
}

// NewFlux instantiates a session-aware client. session is consulted for
// every authenticated request.
func NewFlux(session flux.SessionFunc, opts ...flux.Option) (*flux.Flux, error) {
	return flux.New(session, opts...)
}

// Load builds a Flux from the configuration file at path. The auth section
// supplies the session; extra options are applied after it.
func Load(path string, opts ...flux.Option) (*flux.Flux, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	session, authOpts := FromAuth(cfg.Auth)
	fluxOpts := append([]flux.Option{flux.WithClientOptions(client.WithConfig(cfg.Client))}, authOpts...)

	f, err := flux.New(session, append(fluxOpts, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("building flux: %w", err)
	}

	return f, nil
}

// FromAuth returns a fixed session func for the credentials in auth and
// the header option its header and prefix describe. The expiry of JWT
// access tokens is read from their exp claim; opaque tokens get an unknown
// expiry. An empty access token yields no session, so authenticated
// requests fail before reaching the network.
func FromAuth(auth config.Auth) (flux.SessionFunc, []flux.Option) {
	var session *flux.Session
	if auth.AccessToken != "" {
		s, err := flux.SessionFromJWT(auth.AccessToken, auth.RefreshToken)
		if err != nil {
			s = &flux.Session{AccessToken: auth.AccessToken, RefreshToken: auth.RefreshToken}
		}
		session = s
	}

	var opts []flux.Option
	if auth.Header != "" || auth.Prefix != nil {
		name, prefix := flux.DefaultHeaderName, flux.DefaultTokenPrefix
		if auth.Header != "" {
			name = auth.Header
		}
		if auth.Prefix != nil {
			prefix = *auth.Prefix
		}
		opts = append(opts, flux.WithHeader(name, prefix))
	}

	return func(context.Context) (*flux.Session, error) { return session, nil }, opts
}
