package server

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"

	"taskmatch/internal/auth"
)

const maxCachedTokens = 64

// tokenCache remembers digests of tokens that already passed bcrypt so each
// request does not pay the hash cost again.
type tokenCache struct {
	mu       sync.Mutex
	verified map[string]struct{}
}

func newTokenCache() *tokenCache {
	return &tokenCache{verified: make(map[string]struct{})}
}

func (c *tokenCache) verify(tokenHash, token string) bool {
	sum := sha256.Sum256([]byte(tokenHash + "\x00" + token))
	key := hex.EncodeToString(sum[:])

	c.mu.Lock()
	_, ok := c.verified[key]
	c.mu.Unlock()
	if ok {
		return true
	}

	if !auth.VerifyToken(tokenHash, token) {
		return false
	}

	c.mu.Lock()
	if len(c.verified) >= maxCachedTokens {
		clear(c.verified)
	}
	c.verified[key] = struct{}{}
	c.mu.Unlock()
	return true
}

func requiresAuth(path string) bool {
	if path == webhookPath {
		return false
	}
	return strings.HasPrefix(path, "/v1/")
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.APITokenHash == "" || !requiresAuth(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok || !s.tokens.verify(s.opts.APITokenHash, token) {
			s.writeErrorReq(w, r, http.StatusUnauthorized,
				makeAPIError(http.StatusUnauthorized, "unauthorized", ErrCodeUnauthorized, errors.New("unauthorized")))
			return
		}
		next.ServeHTTP(w, r)
	})
}
