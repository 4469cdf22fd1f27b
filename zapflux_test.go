package zapflux_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/adamwoolhether/zapflux"
	"github.com/adamwoolhether/zapflux/client"
	"github.com/adamwoolhether/zapflux/config"
	"github.com/adamwoolhether/zapflux/flux"
)

func ptr[T any](v T) *T { return &v }

func TestFromAuth(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	tests := map[string]struct {
		auth       config.Auth
		valid      bool
		expires    time.Time
		headerOpts int
	}{
		"empty":  {auth: config.Auth{}},
		"opaque": {auth: config.Auth{AccessToken: "opaque"}, valid: true},
		"jwt":    {auth: config.Auth{AccessToken: signed, RefreshToken: "r"}, valid: true, expires: exp},
		"header": {auth: config.Auth{AccessToken: "k", Header: "X-Api-Key", Prefix: ptr("")}, valid: true, headerOpts: 1},
		"prefix": {auth: config.Auth{AccessToken: "k", Prefix: ptr("Token ")}, valid: true, headerOpts: 1},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			session, opts := zapflux.FromAuth(tc.auth)

			s, err := session(t.Context())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Valid() != tc.valid {
				t.Errorf("exp valid %v, got %v", tc.valid, s.Valid())
			}
			if tc.valid && !s.ExpiresAt.Equal(tc.expires) {
				t.Errorf("exp expiry %v, got %v", tc.expires, s.ExpiresAt)
			}
			if len(opts) != tc.headerOpts {
				t.Errorf("exp %d header options, got %d", tc.headerOpts, len(opts))
			}
		})
	}
}

func TestLoad(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Api-Key")
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "zap.yaml")
	raw := "client:\n  base_url: " + srv.URL + "\nauth:\n  access_token: k-1\n  header: X-Api-Key\n  prefix: \"\"\n"
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	f, err := zapflux.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Dispose()

	resp, err := flux.Get[any](t.Context(), f, "/ping")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.HasError() {
		t.Fatalf("unexpected failure: %v", resp.Err())
	}
	if got != "k-1" {
		t.Errorf("exp api key header, got %q", got)
	}
}

func TestLoad_NoSession(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "zap.yaml")
	if err := os.WriteFile(path, []byte("client:\n  base_url: "+srv.URL+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	f, err := zapflux.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Dispose()

	resp, err := flux.Get[any](t.Context(), f, "/ping")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Kind != client.KindAuth || !errors.Is(resp.Err(), flux.ErrNoSession) {
		t.Errorf("expected unauthorized no-session failure, got %v", resp.Err())
	}
	if hits != 0 {
		t.Errorf("expected no network call, got %d", hits)
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zap.yaml")
	if err := os.WriteFile(path, []byte("client:\n  max_redirects: -1\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := zapflux.Load(path); err == nil {
		t.Fatal("expected validation error, got nil")
	}
}
