package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken error = errors.New("invalid token")

const issuer = "save-orchestrator"

// AgentClaims are claims of a token given to agents of an Execution.
type AgentClaims struct {
	jwt.RegisteredClaims
	ExecutionId int64 `json:"executionId"`
}

// Issuer signs and verifies agent tokens with HMAC-SHA256.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Issuer)

// WithClock replaces the clock deciding "iat" and "exp".
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// New returns an Issuer.
//
// # Args
//
// - secret: HMAC key. It should be 32 bytes or longer.
//
// - ttl: lifetime of tokens.
func New(secret []byte, ttl time.Duration, options ...Option) *Issuer {
	i := &Issuer{secret: secret, ttl: ttl, now: time.Now}
	for _, o := range options {
		o(i)
	}
	return i
}

// Issue returns a signed token for agents of the execution.
func (i *Issuer) Issue(executionId int64) (string, error) {
	now := i.now().Truncate(time.Second)
	claims := AgentClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   strconv.FormatInt(executionId, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		ExecutionId: executionId,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(i.secret)
}

// Verify checks the token and returns its claims.
//
// # Returns
//
// - *AgentClaims: claims in the token.
//
// - error: ErrInvalidToken when the token is broken, expired, or signed with another key.
func (i *Issuer) Verify(token string) (*AgentClaims, error) {
	claims := &AgentClaims{}
	tok, err := jwt.ParseWithClaims(
		token, claims,
		func(t *jwt.Token) (interface{}, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}
	if sub := strconv.FormatInt(claims.ExecutionId, 10); claims.Subject != sub {
		return nil, fmt.Errorf("%w: subject %s does not match execution %d", ErrInvalidToken, claims.Subject, claims.ExecutionId)
	}
	return claims, nil
}
