package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// DetailInvalidCredentials is the rejection message for a missing or bad token.
const DetailInvalidCredentials = "Could not validate credentials"

// Verifier checks a bearer token and returns its subject. jwt.Signer satisfies it.
type Verifier interface {
	Verify(token string) (string, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(token string) (string, error)

func (f VerifierFunc) Verify(token string) (string, error) {
	return f(token)
}

type subjectContextKey struct{}

// SubjectFromContext returns the subject injected by Bearer.
func SubjectFromContext(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(subjectContextKey{}).(string)
	return sub, ok && sub != ""
}

// Bearer rejects requests without a token the verifier accepts.
func Bearer(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				Reject(w, http.StatusUnauthorized, DetailInvalidCredentials)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				Reject(w, http.StatusUnauthorized, "Not authenticated")
				return
			}

			sub, err := verifier.Verify(token)
			if err != nil || sub == "" {
				Reject(w, http.StatusUnauthorized, DetailInvalidCredentials)
				return
			}

			ctx := context.WithValue(r.Context(), subjectContextKey{}, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Reject writes a `{"detail": detail}` error reply.
func Reject(w http.ResponseWriter, status int, detail string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
