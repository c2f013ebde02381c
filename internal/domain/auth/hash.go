package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HashKey returns the hex HMAC-SHA256 of key under pepper, the form in
// which API keys are stored.
func HashKey(key string, pepper []byte) string {
	return hex.EncodeToString(hashKey(key, pepper))
}

func hashKey(key string, pepper []byte) []byte {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return mac.Sum(nil)
}
