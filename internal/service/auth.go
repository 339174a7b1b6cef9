package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cloo-solutions/regassist/internal/domain"
)

const (
	apiKeyPrefix = "rga_"
	// HashedKeyPrefix marks a configured key given as the sha256 of the token.
	HashedKeyPrefix = "sha256:"
)

// StaticKeyAuth validates bearer tokens against a fixed set of keys. Keys
// are configured either as tokens or as sha256 hashes prefixed with
// HashedKeyPrefix.
type StaticKeyAuth struct {
	hashes [][sha256.Size]byte
}

func NewStaticKeyAuth(keys []string) (*StaticKeyAuth, error) {
	a := &StaticKeyAuth{}
	for i, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}

		var sum [sha256.Size]byte
		if hexHash, ok := strings.CutPrefix(k, HashedKeyPrefix); ok {
			raw, err := hex.DecodeString(hexHash)
			if err != nil || len(raw) != sha256.Size {
				return nil, fmt.Errorf("api key %d: invalid sha256 hash", i)
			}
			copy(sum[:], raw)
		} else {
			if !IsValidAPIToken(k) {
				return nil, fmt.Errorf("api key %d: expected %s<64 hex chars>", i, apiKeyPrefix)
			}
			sum = sha256.Sum256([]byte(k))
		}
		a.hashes = append(a.hashes, sum)
	}
	return a, nil
}

// ValidateAPIKey returns a short client identifier for a known token.
func (a *StaticKeyAuth) ValidateAPIKey(_ context.Context, token string) (string, error) {
	if !IsValidAPIToken(token) {
		return "", domain.ErrInvalidAPIKey
	}

	sum := sha256.Sum256([]byte(token))
	found := 0
	for _, h := range a.hashes {
		found |= subtle.ConstantTimeCompare(sum[:], h[:])
	}
	if found == 0 {
		return "", domain.ErrInvalidAPIKey
	}
	return "key-" + hex.EncodeToString(sum[:4]), nil
}

// Len returns the number of configured keys.
func (a *StaticKeyAuth) Len() int { return len(a.hashes) }

// GenerateAPIToken returns a new random token and the configuration entry
// that accepts it without storing the token itself.
func GenerateAPIToken() (token, hashed string, err error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", err
	}
	token = apiKeyPrefix + hex.EncodeToString(bytes)
	return token, HashedKeyPrefix + hashToken(token), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func IsValidAPIToken(token string) bool {
	if !strings.HasPrefix(token, apiKeyPrefix) {
		return false
	}
	hexPart := token[len(apiKeyPrefix):]
	if len(hexPart) != 64 {
		return false
	}
	for _, c := range hexPart {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
