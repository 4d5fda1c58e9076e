package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// HMACSignatureService implements ports.EventSigner using HMAC-SHA256 under a
// key shared with event consumers.
type HMACSignatureService struct {
	key []byte
}

// NewHMACSignatureService creates a signer for key. An empty key is rejected.
func NewHMACSignatureService(key string) (*HMACSignatureService, error) {
	if key == "" {
		return nil, errors.New("signing key is empty")
	}
	return &HMACSignatureService{key: []byte(key)}, nil
}

// Sign returns the lowercase hex HMAC-SHA256 of payload.
func (s *HMACSignatureService) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signature in constant time.
func (s *HMACSignatureService) Verify(payload []byte, signature string) bool {
	return hmac.Equal([]byte(s.Sign(payload)), []byte(signature))
}
