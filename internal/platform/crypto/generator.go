package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

// GenerateSecureRandomString creates a cryptographically secure random string.
// n is the number of bytes of randomness; the resulting string is longer due
// to base64 encoding.
func GenerateSecureRandomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// OAuthStateKeyPrefix is shared by every correlation key so that keys can be
// recognized in storage without a cookie pointing at them.
const OAuthStateKeyPrefix = "oauth_"

// NewCorrelationKey generates a key of the form oauth_<epoch-ms>_<random>.
// The timestamp gives operators a rough creation time when inspecting rows;
// the random suffix is what makes the key unguessable.
func NewCorrelationKey() (string, error) {
	suffix, err := GenerateSecureRandomString(16)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d_%s", OAuthStateKeyPrefix, time.Now().UnixMilli(), suffix), nil
}
