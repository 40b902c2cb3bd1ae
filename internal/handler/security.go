package handler

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
)

var errUnauthorized = errors.New("unauthorized")

// SecurityHandler authenticates requests via HMAC-SHA256 hashed API keys
// presented as bearer tokens.
type SecurityHandler struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurityHandler creates a SecurityHandler with the given API key
// repository and HMAC pepper.
func NewSecurityHandler(apikeys auth.Repository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Authenticate resolves a raw API key. The stored hash is compared in
// constant time against the computed one.
func (s *SecurityHandler) Authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, error) {
	if key == "" {
		return nil, errUnauthorized
	}
	hexHash := auth.HashKey(s.pepper, key)

	info, err := s.apikeys.FindByHash(ctx, hexHash)
	if err != nil {
		if !errors.Is(err, auth.ErrNotFound) {
			return nil, errors.Wrap(err, "find api key")
		}
		return nil, errUnauthorized
	}

	computed, _ := hex.DecodeString(hexHash)
	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(computed, stored) != 1 {
		return nil, errUnauthorized
	}
	return info, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// Require rejects requests without a valid key carrying scope. The key is
// stored in the request context for later checks.
func (s *SecurityHandler) Require(scope auth.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, err := s.Authenticate(r.Context(), bearerToken(r))
			switch {
			case errors.Is(err, errUnauthorized):
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "missing or invalid api key")
				return
			case err != nil:
				writeInternal(w, r, err)
				return
			}
			if !info.HasScope(scope) {
				zctx.From(r.Context()).Info("API key lacks scope",
					zap.String("key_id", info.ID),
					zap.String("scope", string(scope)),
				)
				writeError(w, r, http.StatusForbidden, "forbidden", "api key lacks scope "+string(scope))
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithKey(r.Context(), info)))
		})
	}
}

// RequireStore rejects requests whose key is not bound to the store named
// by the URL parameter param. It must run after Require.
func (s *SecurityHandler) RequireStore(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, ok := auth.FromContext(r.Context())
			if !ok || !info.CanManage(chi.URLParam(r, param)) {
				writeError(w, r, http.StatusForbidden, "forbidden", "api key cannot manage this store")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
