package token

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// SessionDuration is the default bearer token lifetime.
	SessionDuration = 24 * time.Hour
	// RememberedSessionDuration applies when the client asked to stay signed in.
	RememberedSessionDuration = 30 * 24 * time.Hour

	// VerificationTokenTTL is the lifetime of an email verification link.
	VerificationTokenTTL = 24 * time.Hour
	// ResetTokenTTL is the lifetime of a password reset link.
	ResetTokenTTL = time.Hour

	oneTimeTokenBytes = 32
)

// ErrInvalidSession is the single outcome for any session validation failure:
// bad signature, malformed token, or expiry. Callers cannot distinguish them.
var ErrInvalidSession = errors.New("invalid or expired session token")

type SessionClaims struct {
	jwt.RegisteredClaims
	Remember bool `json:"remember,omitempty"`
}

// Issuer mints and validates session tokens and one-time tokens.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), now: time.Now}
}

// NewIssuerAt builds an issuer with a custom clock. Used by tests.
func NewIssuerAt(secret string, now func() time.Time) *Issuer {
	return &Issuer{secret: []byte(secret), now: now}
}

// MintSession signs a stateless bearer token for the account. There is no
// server-side revocation list; expiry is the only termination mechanism.
func (i *Issuer) MintSession(accountID string, remember bool) (string, error) {
	ttl := SessionDuration
	if remember {
		ttl = RememberedSessionDuration
	}

	now := i.now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Remember: remember,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// ValidateSession verifies signature and expiry and returns the account id.
// Every failure collapses into ErrInvalidSession.
func (i *Issuer) ValidateSession(tokenString string) (string, error) {
	claims := &SessionClaims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSession
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !tok.Valid || claims.Subject == "" {
		return "", ErrInvalidSession
	}
	return claims.Subject, nil
}

// MintOneTime generates an opaque URL-safe random token and its expiry.
// The caller stores both on the account record.
func (i *Issuer) MintOneTime(ttl time.Duration) (string, time.Time, error) {
	buf := make([]byte, oneTimeTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, err
	}
	value := base64.RawURLEncoding.EncodeToString(buf)
	return value, i.now().Add(ttl), nil
}

// OneTimeResult classifies a one-time token check.
type OneTimeResult int

const (
	OneTimeOK OneTimeResult = iota
	OneTimeExpired
	OneTimeMismatch
)

// CheckOneTime compares a supplied token against the stored value and expiry.
// The comparison is constant-time.
func (i *Issuer) CheckOneTime(storedValue string, storedExpiry *time.Time, supplied string) OneTimeResult {
	if storedValue == "" || supplied == "" {
		return OneTimeMismatch
	}
	if subtle.ConstantTimeCompare([]byte(storedValue), []byte(supplied)) != 1 {
		return OneTimeMismatch
	}
	if storedExpiry == nil || i.now().After(*storedExpiry) {
		return OneTimeExpired
	}
	return OneTimeOK
}
