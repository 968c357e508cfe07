// Package session holds per-visitor key/value documents for anonymous
// visitors. Values are stored as JSON and read and written whole.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
)

// CartKey is the session key holding the anonymous cart document.
const CartKey = "cart"

// Store is a session-scoped key/value store. Get reports false when the
// key is absent or the session has expired.
type Store interface {
	Get(ctx context.Context, sessionID, key string, dst any) (bool, error)
	Put(ctx context.Context, sessionID, key string, value any) error
	Forget(ctx context.Context, sessionID, key string) error
	Destroy(ctx context.Context, sessionID string) error
}

// NewID returns a random, URL-safe session identifier.
func NewID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidID reports whether id has the shape NewID produces.
func ValidID(id string) bool {
	if len(id) != 43 {
		return false
	}
	b, err := base64.RawURLEncoding.DecodeString(id)
	return err == nil && len(b) == 32
}

func encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

func decode(raw []byte, dst any) error {
	return json.Unmarshal(raw, dst)
}
