package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// Claims defines the JWT claims structure.
type Claims struct {
	UserID  string `json:"userId"`
	IsAdmin bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// UserClaimsKey is the context key for user claims.
type contextKey string

const UserClaimsKey = contextKey("userClaims")

// ErrInvalidToken is returned for malformed, expired or forged tokens.
var ErrInvalidToken = errors.New("invalid token")

// TokenIssuer signs and validates bearer tokens.
type TokenIssuer struct {
	key    []byte
	expiry time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer using an HMAC secret.
func NewTokenIssuer(secret string, expiry time.Duration) *TokenIssuer {
	return &TokenIssuer{key: []byte(secret), expiry: expiry, now: time.Now}
}

// Expiry is the lifetime of issued tokens.
func (t *TokenIssuer) Expiry() time.Duration { return t.expiry }

// Generate creates a new JWT for a given user.
func (t *TokenIssuer) Generate(userID string, isAdmin bool) (string, error) {
	now := t.now()
	claims := &Claims{
		UserID:  userID,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.key)
}

// Validate parses and validates a JWT string.
func (t *TokenIssuer) Validate(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return t.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenFromRequest extracts a bearer token from the Authorization header, the
// token cookie or, when allowQuery is set, the token query parameter.
func TokenFromRequest(r *http.Request, allowQuery bool) string {
	// 1. Try to get the token from the Authorization header
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if after, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
	}

	// 2. If not in header, fall back to the cookie
	if cookie, err := r.Cookie("token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	// 3. Browsers cannot set headers on websocket upgrades
	if allowQuery {
		return r.URL.Query().Get("token")
	}
	return ""
}

// ActorID returns the user id of a request carrying a valid token, or "".
func (t *TokenIssuer) ActorID(r *http.Request) string {
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		return claims.UserID
	}
	tokenStr := TokenFromRequest(r, false)
	if tokenStr == "" {
		return ""
	}
	claims, err := t.Validate(tokenStr)
	if err != nil {
		return ""
	}
	return claims.UserID
}

// Middleware creates a middleware for protecting routes.
func (t *TokenIssuer) Middleware(allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := TokenFromRequest(r, allowQuery)
			if tokenStr == "" {
				writeError(w, http.StatusUnauthorized, "Not authorized, no token")
				return
			}

			claims, err := t.Validate(tokenStr)
			if err != nil {
				log.Debug().Err(err).Msg("Rejected bearer token")
				writeError(w, http.StatusUnauthorized, "Not authorized, token failed")
				return
			}

			// Pass claims down via context
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// OptionalMiddleware attaches claims when a valid token is present but never rejects.
func (t *TokenIssuer) OptionalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tokenStr := TokenFromRequest(r, false); tokenStr != "" {
			if claims, err := t.Validate(tokenStr); err == nil {
				r = r.WithContext(WithClaims(r.Context(), claims))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose claims are not administrative.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Not authorized, no token")
			return
		}
		if !claims.IsAdmin {
			writeError(w, http.StatusForbidden, "Access denied, admin only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithClaims stores claims on the context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, UserClaimsKey, claims)
}

// ClaimsFromContext returns the authenticated caller, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserClaimsKey).(*Claims)
	return claims, ok && claims != nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, "{%q:%q}\n", "message", message)
}
