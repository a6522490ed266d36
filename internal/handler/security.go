package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"

	"github.com/xenking/taberna/pkg/httpmiddleware"
)

// APIKeyHeader carries the staff API key.
const APIKeyHeader = "api_key"

// APIKeyAuth admits requests whose api_key header hashes, with HMAC-SHA256
// under the pepper, to one of the configured hashes.
type APIKeyAuth struct {
	pepper []byte
	hashes [][]byte
}

// NewAPIKeyAuth parses hex-encoded key hashes.
func NewAPIKeyAuth(pepper string, hexHashes []string) (*APIKeyAuth, error) {
	a := &APIKeyAuth{pepper: []byte(pepper)}
	for _, h := range hexHashes {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		b, err := hex.DecodeString(h)
		if err != nil {
			return nil, errors.Wrapf(err, "decode api key hash %q", h)
		}
		if len(b) != sha256.Size {
			return nil, errors.Errorf("api key hash %q: want %d bytes, got %d", h, sha256.Size, len(b))
		}
		a.hashes = append(a.hashes, b)
	}
	return a, nil
}

// HashAPIKey returns the hex HMAC-SHA256 of key, the value to put in the
// configuration.
func HashAPIKey(pepper, key string) string {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// Valid reports whether key matches a configured hash. Every hash is compared
// in constant time.
func (a *APIKeyAuth) Valid(key string) bool {
	if a == nil || key == "" {
		return false
	}
	mac := hmac.New(sha256.New, a.pepper)
	mac.Write([]byte(key))
	sum := mac.Sum(nil)

	ok := 0
	for _, h := range a.hashes {
		ok |= subtle.ConstantTimeCompare(sum, h)
	}
	return ok == 1
}

// Middleware rejects requests without a valid key. A nil APIKeyAuth rejects
// everything.
func (a *APIKeyAuth) Middleware() httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.Valid(r.Header.Get(APIKeyHeader)) {
				zctx.From(r.Context()).Warn("Rejected admin request")
				writeError(w, http.StatusUnauthorized, "No autorizado")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
