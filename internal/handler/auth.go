package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
)

// DeskKeyHeader carries the key of the desk making the request.
const DeskKeyHeader = "X-Desk-Key"

type deskKey struct{}

// deskFrom returns the authenticated desk name, empty when desk keys are
// disabled.
func deskFrom(ctx context.Context) string {
	name, _ := ctx.Value(deskKey{}).(string)
	return name
}

// HashDeskKey returns the hex HMAC-SHA256 of key under pepper, the form in
// which desk keys are configured.
func HashDeskKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// DeskAuth authenticates desks by key. Builder sessions are bound to the
// desk that opened them.
type DeskAuth struct {
	pepper []byte
	hashes map[string][]byte // desk name -> key hash
}

// NewDeskAuth creates a DeskAuth from desk name to hex key hash. Entries
// that are not valid hex are ignored. With no valid entries every request
// is let through anonymously.
func NewDeskAuth(pepper string, keys map[string]string) *DeskAuth {
	a := &DeskAuth{
		pepper: []byte(pepper),
		hashes: make(map[string][]byte, len(keys)),
	}
	for name, h := range keys {
		if b, err := hex.DecodeString(h); err == nil && len(b) == sha256.Size {
			a.hashes[name] = b
		}
	}
	return a
}

// Enabled reports whether any desk key is configured.
func (a *DeskAuth) Enabled() bool {
	return len(a.hashes) > 0
}

func (a *DeskAuth) authenticate(key string) (string, bool) {
	mac := hmac.New(sha256.New, a.pepper)
	mac.Write([]byte(key))
	sum := mac.Sum(nil)

	found := ""
	for name, h := range a.hashes {
		if subtle.ConstantTimeCompare(sum, h) == 1 {
			found = name
		}
	}
	return found, found != ""
}

// Middleware rejects requests without a known desk key.
func (a *DeskAuth) Middleware(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(DeskKeyHeader)
		name, ok := a.authenticate(key)
		if key == "" || !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unknown desk key", Code: "UNAUTHORIZED"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), deskKey{}, name)))
	})
}
