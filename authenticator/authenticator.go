package authenticator

import (
	"context"
)

// Token represents an authentication token
type Token struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	Expiry       int64
}

// Claims represents user claims from the ID token
type Claims map[string]interface{}

// Subject returns the stable user identifier from the claims.
func (c Claims) Subject() string {
	sub, _ := c["sub"].(string)
	return sub
}

// Email returns the email claim, empty when absent.
func (c Claims) Email() string {
	email, _ := c["email"].(string)
	return email
}

// Name returns the best available display name claim.
func (c Claims) Name() string {
	for _, key := range []string{"name", "nickname", "email"} {
		if value, ok := c[key].(string); ok && value != "" {
			return value
		}
	}
	return c.Subject()
}

// Provider interface abstracts OAuth provider operations
type Provider interface {
	GetAuthURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*Token, error)
	GetClaims(ctx context.Context, token *Token) (Claims, error)
}
