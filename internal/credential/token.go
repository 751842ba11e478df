package credential

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrMalformedToken = errors.New("malformed access token")
	ErrExpiredToken   = errors.New("access token expired")
)

// AccessToken is a bearer token and its expiry. ExpiresOn is zero when the
// token carries no exp claim.
type AccessToken struct {
	Token     string
	ExpiresOn time.Time
}

// Credential supplies bearer tokens to capability clients.
type Credential interface {
	Token(ctx context.Context) (AccessToken, error)
}

// TokenCredential is a static user access token.
type TokenCredential struct {
	token AccessToken
	now   func() time.Time
}

// New parses a user access token. The token must be a JWT (three dot-separated
// base64url segments) whose payload is a JSON object.
func New(token string) (*TokenCredential, error) {
	token = strings.TrimSpace(token)
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return nil, ErrMalformedToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, ErrMalformedToken
	}
	var claims struct {
		Exp *json.Number `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, ErrMalformedToken
	}

	at := AccessToken{Token: token}
	if claims.Exp != nil {
		secs, err := claims.Exp.Float64()
		if err != nil {
			return nil, ErrMalformedToken
		}
		at.ExpiresOn = time.Unix(int64(secs), 0)
	}
	return &TokenCredential{token: at, now: time.Now}, nil
}

// Token returns the access token, or ErrExpiredToken once it has expired.
func (c *TokenCredential) Token(ctx context.Context) (AccessToken, error) {
	if err := ctx.Err(); err != nil {
		return AccessToken{}, err
	}
	if !c.token.ExpiresOn.IsZero() && !c.now().Before(c.token.ExpiresOn) {
		return AccessToken{}, ErrExpiredToken
	}
	return c.token, nil
}

// ExpiresOn reports when the token stops being valid.
func (c *TokenCredential) ExpiresOn() time.Time {
	return c.token.ExpiresOn
}

// BearerHeader builds an Authorization header value from cred.
func BearerHeader(ctx context.Context, cred Credential) (string, error) {
	at, err := cred.Token(ctx)
	if err != nil {
		return "", err
	}
	return "Bearer " + at.Token, nil
}
