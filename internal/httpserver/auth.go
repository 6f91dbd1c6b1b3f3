// internal/httpserver/auth.go
//
// Session bearer tokens.
// A token is an HS256 JWT whose "sid" claim names a live session in the
// registry. There are no accounts: holding the token is holding the session.

package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/robalobadob/motsrares/internal/session"
)

// ctxSessionKey is the context key type for the resolved controller.
type ctxSessionKey struct{}

// signSessionToken creates an HS256 JWT for id, issued at now and valid until exp.
func (s *Server) signSessionToken(id string, now, exp time.Time) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid": id,
		"exp": exp.Unix(),
		"iat": now.Unix(),
	})
	return t.SignedString([]byte(s.cfg.Auth.JWTSecret))
}

// parseSessionToken validates tok and returns its session ID.
func (s *Server) parseSessionToken(tok string) (string, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.Auth.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	id, _ := claims["sid"].(string)
	if id == "" {
		return "", fmt.Errorf("invalid token: missing sid")
	}
	return id, nil
}

// requireSession enforces a valid token and injects its controller into the request context.
func (s *Server) requireSession() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearerOrQuery(r)
			if tok == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			id, err := s.parseSessionToken(tok)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			c, err := s.sessions.Get(r.Context(), id)
			if err != nil {
				writeErr(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), ctxSessionKey{}, c)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// currentSession returns the controller placed by requireSession.
func currentSession(r *http.Request) *session.Controller {
	c, _ := r.Context().Value(ctxSessionKey{}).(*session.Controller)
	return c
}

// bearerOrQuery extracts a token from the Authorization header, or from the
// "token" query parameter for websocket clients that cannot set headers.
func bearerOrQuery(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	return r.URL.Query().Get("token")
}
