package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const identityKey contextKey = "httpapi.identity"

// identitySkip lists paths that are reachable without credentials.
var identitySkip = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

// identityMiddleware resolves the caller identity and stashes it in the
// request context. With a JWT secret configured it expects a HS256 bearer
// token and uses its subject claim; without one it trusts the X-User-ID
// header, which is only acceptable in development setups.
func identityMiddleware(next http.Handler, secret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identitySkip[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		var caller string
		if secret == "" {
			caller = r.Header.Get("X-User-ID")
		} else {
			raw := bearerToken(r)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, errMissingToken)
				return
			}
			sub, err := tokenSubject(raw, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, errInvalidToken)
				return
			}
			caller = sub
		}

		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), caller)))
	})
}

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid bearer token")
)

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func tokenSubject(raw, secret string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", err
	}
	return token.Claims.GetSubject()
}

func withIdentity(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, identityKey, caller)
}

// identityFrom returns the caller stored by identityMiddleware, if any.
func identityFrom(ctx context.Context) string {
	caller, _ := ctx.Value(identityKey).(string)
	return caller
}

// requireIdentity writes a 401 and returns false when no caller identity is
// present on the request.
func requireIdentity(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller := identityFrom(r.Context())
	if caller == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return "", false
	}
	return caller, true
}
