package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
)

// SessionCookie is the cookie the hosted sign-in flow sets.
const SessionCookie = "__session"

// Session identifies a signed-in user.
type Session struct {
	Subject string
}

// SessionVerifier decides whether a request carries a valid session.
// Authentication itself happens elsewhere; the API only consumes the verdict.
type SessionVerifier interface {
	Verify(r *http.Request) (Session, bool)
}

// TokenVerifier accepts a static set of tokens, presented either as a bearer
// token or as the session cookie.
type TokenVerifier struct {
	tokens []string
}

func NewTokenVerifier(tokens []string) *TokenVerifier {
	var clean []string
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	return &TokenVerifier{tokens: clean}
}

func (v *TokenVerifier) Verify(r *http.Request) (Session, bool) {
	presented := bearerToken(r)
	if presented == "" {
		if c, err := r.Cookie(SessionCookie); err == nil {
			presented = c.Value
		}
	}
	if presented == "" {
		return Session{}, false
	}
	for i, t := range v.tokens {
		if subtle.ConstantTimeCompare([]byte(presented), []byte(t)) == 1 {
			return Session{Subject: "token#" + strconv.Itoa(i)}, true
		}
	}
	return Session{}, false
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

type sessionKey struct{}

// SessionFromContext returns the session attached by requireSession.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.verifier.Verify(r)
		if !ok {
			writeUnauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}
