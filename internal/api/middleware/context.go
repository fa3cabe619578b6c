package middleware

import (
	"context"
	"net"
	"net/http"
)

type contextKey string

const clientKey contextKey = "client"

// SetClient stores the rate limit identity of the caller.
func SetClient(ctx context.Context, client string) context.Context {
	return context.WithValue(ctx, clientKey, client)
}

// GetClient returns the identity stored by ClientIdentity.
func GetClient(r *http.Request) (string, bool) {
	client, ok := r.Context().Value(clientKey).(string)
	return client, ok && client != ""
}

// ClientIdentity records the caller's IP address. It must run after chi's
// RealIP so proxied requests are keyed by the forwarded address.
func ClientIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(SetClient(r.Context(), clientIP(r.RemoteAddr))))
	})
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
