package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// APIKeyStore validates API keys against bcrypt hashes from configuration.
// Keys are never stored in cleartext; the config carries label -> hash.
type APIKeyStore struct {
	hashes map[string]string
}

// NewAPIKeyStore creates a store from configured label/hash pairs.
func NewAPIKeyStore(hashes map[string]string) *APIKeyStore {
	s := &APIKeyStore{hashes: make(map[string]string, len(hashes))}
	for label, hash := range hashes {
		s.hashes[label] = hash
	}
	return s
}

// Validate checks a presented key against every configured hash and returns
// the matching label.
func (s *APIKeyStore) Validate(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidAPIKey
	}
	for label, hash := range s.hashes {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil {
			return label, nil
		}
	}
	return "", ErrInvalidAPIKey
}

// Empty reports whether any keys are configured.
func (s *APIKeyStore) Empty() bool {
	return len(s.hashes) == 0
}

// HashKey produces a bcrypt hash for an API key, for seeding configuration.
func HashKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
