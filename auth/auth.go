// Package auth extracts the voting actor from an HS256 bearer token.
// A request without a token is anonymous, not rejected: the vote flow
// decides what an anonymous caller may do.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/giygas/medcompare-api/entities"
	"github.com/giygas/medcompare-api/logging"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken      = errors.New("no bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Claims are the token claims the API reads
type Claims struct {
	IsDoctor bool `json:"is_doctor"`
	jwt.RegisteredClaims
}

type contextKey struct{}

// Authenticator validates tokens signed with a shared secret
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewAuthenticator creates an authenticator. An empty secret disables
// authentication and every request is anonymous.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

// Enabled reports whether a secret is configured
func (a *Authenticator) Enabled() bool {
	return len(a.secret) > 0
}

// Parse validates a token and returns its actor
func (a *Authenticator) Parse(token string) (*entities.Actor, error) {
	if !a.Enabled() {
		return nil, ErrNoToken
	}

	claims := &Claims{}
	_, err := a.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return &entities.Actor{ID: claims.Subject, IsDoctor: claims.IsDoctor}, nil
}

// FromRequest reads the Authorization header
func (a *Authenticator) FromRequest(r *http.Request) (*entities.Actor, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return nil, ErrNoToken
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: expected Bearer scheme", ErrInvalidToken)
	}
	return a.Parse(strings.TrimSpace(token))
}

// Middleware stores the actor of a valid token in the request context.
// Missing or invalid tokens leave the request anonymous.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := a.FromRequest(r)
		switch {
		case err == nil:
			r = r.WithContext(WithActor(r.Context(), actor))
		case !errors.Is(err, ErrNoToken):
			logging.Debug("Ignoring invalid bearer token", "path", r.URL.Path, "error", err)
		}
		next.ServeHTTP(w, r)
	})
}

// WithActor returns a context carrying actor
func WithActor(ctx context.Context, actor *entities.Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, actor)
}

// ActorFrom returns the actor stored in ctx, or nil
func ActorFrom(ctx context.Context) *entities.Actor {
	actor, _ := ctx.Value(contextKey{}).(*entities.Actor)
	return actor
}

// IssueToken signs a token for subject, used by tooling and tests
func (a *Authenticator) IssueToken(subject string, isDoctor bool, ttl time.Duration) (string, error) {
	if !a.Enabled() {
		return "", errors.New("authentication is disabled")
	}
	now := time.Now()
	claims := Claims{
		IsDoctor: isDoctor,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
