package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"chatlima-server/internal/config"
)

// TokenClaims is the claim set of tokens issued by the server.
type TokenClaims struct {
	Email       string   `json:"email,omitempty"`
	Name        string   `json:"name,omitempty"`
	IsAnonymous bool     `json:"is_anonymous"`
	Roles       []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(cfg *config.Config) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(cfg.AuthJWTSecret),
		issuer: cfg.AuthIssuer,
		ttl:    cfg.AnonymousTokenTTL,
		now:    time.Now,
	}
}

// IssueAnonymous returns a token for an anonymous user whose subject is the user id.
func (i *TokenIssuer) IssueAnonymous(userID string) (string, time.Time, error) {
	return i.Issue(TokenClaims{IsAnonymous: true}, userID)
}

func (i *TokenIssuer) Issue(claims TokenClaims, subject string) (string, time.Time, error) {
	now := i.now().UTC()
	expiresAt := now.Add(i.ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    i.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
