// Package auth carries the caller's bearer credential from the HTTP boundary
// to the operations that forward it to the remote store. Tokens are obtained
// elsewhere; nothing here verifies them.
package auth

import (
	"context"
	"net/http"
	"strings"
)

type credentialKey struct{}

const bearerPrefix = "bearer "

// BearerToken extracts the bearer token from r. A missing or malformed header
// yields "".
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

// Middleware stores the request's credential in its context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithCredential(r.Context(), BearerToken(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func WithCredential(ctx context.Context, credential string) context.Context {
	return context.WithValue(ctx, credentialKey{}, credential)
}

// CredentialFrom returns the credential stored by Middleware, or "".
func CredentialFrom(ctx context.Context) string {
	c, _ := ctx.Value(credentialKey{}).(string)
	return c
}
