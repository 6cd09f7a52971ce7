package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
)

// Claims is the bearer token payload. The subject is the user id.
type Claims struct {
	Role  string `json:"role,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens and resolves the caller from
// the user store. Role and status always come from the store, not the token.
type Authenticator struct {
	users  auth.Repository
	secret []byte
	parser *jwt.Parser
}

// NewAuthenticator creates an Authenticator for tokens signed with secret.
func NewAuthenticator(users auth.Repository, secret []byte) *Authenticator {
	return &Authenticator{
		users:  users,
		secret: secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

// Authenticate resolves the identity behind an Authorization header value.
// Both "Bearer <token>" and a bare token are accepted.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (auth.Identity, error) {
	raw := strings.TrimSpace(header)
	if raw == "" {
		return auth.Identity{}, apperr.New(apperr.Unauthorized, "you are not authorized")
	}
	if scheme, token, ok := strings.Cut(raw, " "); ok && strings.EqualFold(scheme, "Bearer") {
		raw = strings.TrimSpace(token)
	}

	var claims Claims
	if _, err := a.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}); err != nil {
		return auth.Identity{}, apperr.Wrap(apperr.Unauthorized, err, "invalid or expired token")
	}
	if claims.Subject == "" {
		return auth.Identity{}, apperr.New(apperr.Unauthorized, "token has no subject")
	}

	u, err := a.users.FindUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return auth.Identity{}, apperr.New(apperr.Unauthorized, "user not found")
		}
		return auth.Identity{}, errors.Wrap(err, "find user")
	}
	if !u.Active {
		return auth.Identity{}, apperr.New(apperr.Inactive, "user is blocked")
	}

	return auth.Identity{
		UserID: u.ID,
		Role:   u.Role,
		Name:   u.Name,
		Email:  u.Email,
		Phone:  u.Phone,
	}, nil
}

// Require wraps next so that it only runs for authenticated callers. The
// identity is stored in the request context.
func (a *Authenticator) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := a.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := auth.WithIdentity(r.Context(), id)
		ctx = zctx.With(ctx, zap.String("user_id", id.UserID))
		next(w, r.WithContext(ctx))
	}
}

// Issue signs a token for u valid for ttl.
func Issue(secret []byte, u auth.User, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		Role:  string(u.Role),
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}
