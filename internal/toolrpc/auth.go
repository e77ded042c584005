package toolrpc

import (
	"context"
	"crypto/subtle"
	"strings"

	"google.golang.org/grpc/metadata"
)

// Authorizer decides whether a call to the named RPC method is allowed.
type Authorizer func(ctx context.Context, method string) bool

// BearerTokenAuthorizer accepts calls whose "authorization" metadata carries
// "Bearer <token>" for one of tokens. With no tokens every call is allowed.
func BearerTokenAuthorizer(tokens []string) Authorizer {
	allowed := make([][]byte, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		allowed = append(allowed, []byte(t))
	}

	return func(ctx context.Context, _ string) bool {
		if len(allowed) == 0 {
			return true
		}
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return false
		}
		for _, raw := range md.Get("authorization") {
			token, ok := parseBearerToken(raw)
			if !ok {
				continue
			}
			got := []byte(token)
			for _, want := range allowed {
				if subtle.ConstantTimeCompare(got, want) == 1 {
					return true
				}
			}
		}
		return false
	}
}

func parseBearerToken(raw string) (string, bool) {
	h := strings.TrimSpace(raw)
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(h[7:])
	return token, token != ""
}
