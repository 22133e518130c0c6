// Package api implements the vitalplan REST API using chi.
package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

// Auth modes.
const (
	AuthDisabled = "disabled"
	AuthToken    = "token"
	AuthJWT      = "jwt"
)

// AuthConfig selects how requests are authenticated.
type AuthConfig struct {
	Mode      string
	Token     string
	JWTSecret string
}

type subjectKey struct{}

// subjectFrom returns the authenticated owner id, or 0 when the request was
// not authenticated with a JWT.
func subjectFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(subjectKey{}).(int64)
	return id
}

// AuthMiddleware returns middleware that validates the Bearer credential.
// In disabled mode all requests pass through. In token mode the credential
// must equal the shared token. In jwt mode it must be an HS256 JWT signed
// with the shared secret whose sub claim is the caller's owner id.
func AuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Mode == "" || cfg.Mode == AuthDisabled {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			credential := strings.TrimPrefix(auth, "Bearer ")

			switch cfg.Mode {
			case AuthToken:
				if subtle.ConstantTimeCompare([]byte(credential), []byte(cfg.Token)) != 1 {
					writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
					return
				}
			case AuthJWT:
				owner, err := verifyJWT(credential, cfg.JWTSecret)
				if err != nil {
					writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
					return
				}
				r = r.WithContext(context.WithValue(r.Context(), subjectKey{}, owner))
			default:
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func verifyJWT(tokenString, secret string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return 0, fmt.Errorf("invalid token")
	}
	owner, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || owner <= 0 {
		return 0, fmt.Errorf("invalid subject %q", claims.Subject)
	}
	return owner, nil
}

// RequireOwner rejects JWT-authenticated requests for another owner's plan.
// It must be mounted on a route with an {ownerID} parameter.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := subjectFrom(r.Context())
		if subject == 0 {
			next.ServeHTTP(w, r)
			return
		}
		if chi.URLParam(r, "ownerID") != strconv.FormatInt(subject, 10) {
			writeJSON(w, http.StatusForbidden, errorBody("forbidden"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ScopeEvents pins the event stream of a JWT-authenticated caller to its
// own owner id.
func ScopeEvents(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := subjectFrom(r.Context())
		if subject == 0 {
			next.ServeHTTP(w, r)
			return
		}
		r = r.Clone(r.Context())
		q := r.URL.Query()
		q.Set("owner", strconv.FormatInt(subject, 10))
		r.URL.RawQuery = q.Encode()
		next.ServeHTTP(w, r)
	})
}
