package feedtoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ScopeAll grants every feed of an apartment.
const ScopeAll = "*"

var (
	ErrMalformed = errors.New("feed token malformed")
	ErrSignature = errors.New("feed token signature mismatch")
	ErrExpired   = errors.New("feed token expired")
)

// Claims is the payload bound into a feed token.
type Claims struct {
	ApartmentID string
	Scope       string
	ExpiresAt   time.Time
}

// Allows reports whether the claims grant access to the given feed.
func (c Claims) Allows(apartmentID, scope string) bool {
	if c.ApartmentID != apartmentID {
		return false
	}
	return c.Scope == ScopeAll || c.Scope == scope
}

// Signer issues and verifies HMAC-SHA256 feed tokens of the form
// base64(apartment).scope.expiry.signature.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner constructs a signer with the provided secret and default TTL.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 365 * 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a token for apartmentID and scope. A non-positive ttl uses the default.
func (s *Signer) Issue(apartmentID, scope string, ttl time.Duration) (string, time.Time, error) {
	if apartmentID == "" || scope == "" {
		return "", time.Time{}, fmt.Errorf("apartment and scope required")
	}
	if strings.Contains(scope, ".") {
		return "", time.Time{}, fmt.Errorf("invalid scope %q", scope)
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	expiresAt := s.now().Add(ttl).Truncate(time.Second)
	encoded := base64.RawURLEncoding.EncodeToString([]byte(apartmentID))
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	token := strings.Join([]string{encoded, scope, exp, s.sign(encoded, scope, exp)}, ".")
	return token, expiresAt, nil
}

// Parse validates a token and returns its claims.
func (s *Signer) Parse(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return nil, ErrMalformed
	}
	encoded, scope, exp, signature := parts[0], parts[1], parts[2], parts[3]

	if len(s.secret) == 0 {
		return nil, ErrSignature
	}
	if !hmac.Equal([]byte(s.sign(encoded, scope, exp)), []byte(signature)) {
		return nil, ErrSignature
	}
	rawID, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	claims := &Claims{ApartmentID: string(rawID), Scope: scope, ExpiresAt: time.Unix(expUnix, 0)}
	if s.now().After(claims.ExpiresAt) {
		return nil, ErrExpired
	}
	return claims, nil
}

func (s *Signer) sign(encoded, scope, exp string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(encoded + "|" + scope + "|" + exp))
	return hex.EncodeToString(mac.Sum(nil))
}
