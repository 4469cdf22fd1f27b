package flux

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoSession is wrapped when an authenticated request finds no session.
	ErrNoSession = errors.New("no session")
	// ErrRefreshFailed is wrapped when the refresh callback yields no session.
	ErrRefreshFailed = errors.New("session refresh failed")
	// ErrInvalidToken is returned when a session token cannot be parsed.
	ErrInvalidToken = errors.New("invalid token")
)

// Session is an access/refresh credential pair. A zero ExpiresAt means the
// expiry is unknown.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Valid reports whether s carries an access token.
func (s *Session) Valid() bool {
	return s != nil && s.AccessToken != ""
}

// ExpiresWithin reports whether s expires before now+d. Sessions with an
// unknown expiry never do.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}

	return !now.Add(d).Before(s.ExpiresAt)
}

// SessionFromJWT builds a Session whose expiry is read from the exp claim
// of access. The signature is not verified: the token is only inspected,
// its issuer remains the authority.
func SessionFromJWT(access, refresh string) (*Session, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	s := &Session{
		AccessToken:  access,
		RefreshToken: refresh,
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: exp: %w", ErrInvalidToken, err)
	}
	if exp != nil {
		s.ExpiresAt = exp.Time
	}

	return s, nil
}
