// Package session issues and verifies the signed, time-limited tokens that
// carry an authenticated account between requests.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the iss claim of every token this package signs.
const Issuer = "talentcontrol"

// DefaultTTL is the token lifetime when none is configured.
const DefaultTTL = time.Hour

var (
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrEmptySecret           = errors.New("signing secret must not be empty")
)

// Claims is the payload of a session token. The subject duplicates AccountID.
type Claims struct {
	AccountID string `json:"account_id"`
	Role      string `json:"role"`
	CompanyID string `json:"company_id,omitempty"`
	jwt.RegisteredClaims
}

// Extra holds the optional claims of a token.
type Extra struct {
	CompanyID string
}

// Manager signs and verifies HS256 tokens with a single secret.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager creates a Manager. A non-positive ttl selects DefaultTTL.
func NewManager(secret string, ttl time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &Manager{secret: key, ttl: ttl, now: time.Now}, nil
}

// TTL returns the lifetime of issued tokens.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue signs a token for accountID that expires ttl from now.
func (m *Manager) Issue(accountID, role string, extra Extra) (string, time.Time, error) {
	now := m.now().Truncate(time.Second)
	expiresAt := now.Add(m.ttl)

	claims := &Claims{
		AccountID: accountID,
		Role:      role,
		CompanyID: extra.CompanyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify checks the signature, algorithm, issuer and expiry of token and
// returns its claims. Every failure wraps ErrInvalidOrExpiredToken.
func (m *Manager) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidOrExpiredToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOrExpiredToken, err)
	}
	if claims.AccountID == "" || claims.Subject != claims.AccountID {
		return nil, fmt.Errorf("%w: subject does not match account", ErrInvalidOrExpiredToken)
	}
	return claims, nil
}
