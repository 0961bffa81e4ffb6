// Package auth verifies bearer tokens and exposes the caller's identity to
// handlers through the request context.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Seeker220/letswatch/models"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKeyClaims struct{}

// Claims is the identity carried by a verified token
type Claims struct {
	UserID   string `json:"id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Verifier checks HS256 tokens signed with a shared secret
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for secret
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a token. The user id comes from the "id"
// claim, which may be a number or a string, and falls back to "sub".
func (v *Verifier) Verify(token string) (*Claims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, models.ErrUnauthorized
	}

	claims := &Claims{
		UserID:   claimString(mc["id"]),
		Username: claimString(mc["username"]),
		Email:    claimString(mc["email"]),
	}
	if claims.UserID == "" {
		claims.UserID = claimString(mc["sub"])
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: token has no user id", models.ErrUnauthorized)
	}
	return claims, nil
}

// Middleware rejects requests without a valid bearer token with 401 before
// they reach the handler.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var tok string
		authz := r.Header.Get("Authorization")
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			tok = strings.TrimSpace(authz[len("bearer "):])
		}

		if tok == "" {
			unauthorized(w)
			return
		}

		claims, err := v.Verify(tok)
		if err != nil {
			unauthorized(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// WithClaims stores claims on ctx
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ctxKeyClaims{}, claims)
}

// ClaimsFrom returns the verified claims, or nil outside an authenticated request
func ClaimsFrom(ctx context.Context) *Claims {
	if c, ok := ctx.Value(ctxKeyClaims{}).(*Claims); ok {
		return c
	}
	return nil
}

// UserID returns the authenticated user id or ""
func UserID(ctx context.Context) string {
	if c := ClaimsFrom(ctx); c != nil {
		return c.UserID
	}
	return ""
}

// RequireUser returns the user id or ErrUnauthorized
func RequireUser(ctx context.Context) (string, error) {
	if id := UserID(ctx); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("%w: missing user in request context", models.ErrUnauthorized)
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Not authenticated"})
}

func claimString(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case json.Number:
		return c.String()
	default:
		return ""
	}
}
