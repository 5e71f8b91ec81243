package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ayo6706/twinvest-bridge/internal/api/problem"
	"github.com/ayo6706/twinvest-bridge/internal/session"
)

type contextKey string

const (
	sessionIDContextKey contextKey = "session_id"
	principalContextKey contextKey = "principal"
	entryContextKey     contextKey = "session_entry"
	traceContextKey     contextKey = "trace"
)

var jwtSecret []byte
var jwtIssuer string
var jwtAudience string

type authClaims struct {
	SessionID string `json:"session_id"`
	Principal string `json:"principal,omitempty"`
	Method    string `json:"method"`
	jwt.RegisteredClaims
}

func SetJWTSecret(secret string) {
	if secret == "" {
		return
	}
	jwtSecret = []byte(secret)
}

func SetJWTValidation(issuer, audience string) {
	jwtIssuer = strings.TrimSpace(issuer)
	jwtAudience = strings.TrimSpace(audience)
}

func JWTSecret() []byte {
	clone := make([]byte, len(jwtSecret))
	copy(clone, jwtSecret)
	return clone
}

// IssueToken signs a bearer token bound to a registered session.
func IssueToken(e session.Entry) (string, error) {
	if len(jwtSecret) == 0 {
		return "", fmt.Errorf("jwt secret is not configured")
	}
	claims := authClaims{
		SessionID: e.ID.String(),
		Principal: e.Session.Principal,
		Method:    string(e.Session.Method),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   e.ID.String(),
			IssuedAt:  jwt.NewNumericDate(e.Created),
			ExpiresAt: jwt.NewNumericDate(e.Expires),
		},
	}
	if jwtIssuer != "" {
		claims.Issuer = jwtIssuer
	}
	if jwtAudience != "" {
		claims.Audience = jwt.ClaimStrings{jwtAudience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
}

// AuthMiddleware validates the JWT token and injects session metadata into the context.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/authorization-header-required"), http.StatusText(http.StatusUnauthorized), "Authorization header required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token-format"), http.StatusText(http.StatusUnauthorized), "Invalid token format")
			return
		}
		if len(jwtSecret) == 0 {
			problem.Write(w, r, http.StatusInternalServerError, problem.Type("auth/misconfigured"), http.StatusText(http.StatusInternalServerError), "auth is not configured")
			return
		}

		claims := &authClaims{}
		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
		if jwtIssuer != "" {
			opts = append(opts, jwt.WithIssuer(jwtIssuer))
		}
		if jwtAudience != "" {
			opts = append(opts, jwt.WithAudience(jwtAudience))
		}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
			}
			return jwtSecret, nil
		}, opts...)
		if err != nil || !token.Valid {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token"), http.StatusText(http.StatusUnauthorized), "Invalid token")
			return
		}
		if _, err := uuid.Parse(claims.SessionID); err != nil || (claims.Subject != "" && claims.Subject != claims.SessionID) {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token-claims"), http.StatusText(http.StatusUnauthorized), "Invalid token claims")
			return
		}
		TraceFromContext(r.Context()).bindSession(claims.SessionID, claims.Principal, claims.Method)
		ctx := context.WithValue(r.Context(), sessionIDContextKey, claims.SessionID)
		ctx = context.WithValue(ctx, principalContextKey, claims.Principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionMiddleware resolves the authenticated session id against the
// registry. Tokens outliving their session are refused.
func SessionMiddleware(registry *session.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(SessionIDFromContext(r.Context()))
			if err != nil {
				problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token-claims"), http.StatusText(http.StatusUnauthorized), "Invalid token claims")
				return
			}
			entry, ok := registry.Get(id)
			if !ok {
				problem.Write(w, r, http.StatusUnauthorized, problem.Type(problem.SessionExpired), http.StatusText(http.StatusUnauthorized), "session expired or logged out")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), entryContextKey, entry)))
		})
	}
}

// SessionIDFromContext returns the authenticated gateway session id.
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(sessionIDContextKey).(string); ok {
		return v
	}
	return ""
}

// PrincipalFromContext returns the principal the token was issued for,
// empty when the provider reported none.
func PrincipalFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(principalContextKey).(string); ok {
		return v
	}
	return ""
}

// EntryFromContext returns the registered session for the request.
func EntryFromContext(ctx context.Context) (session.Entry, bool) {
	if ctx == nil {
		return session.Entry{}, false
	}
	e, ok := ctx.Value(entryContextKey).(session.Entry)
	return e, ok
}
