package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// DefaultKeyPrefix is the prefix used for generated key tokens.
const DefaultKeyPrefix = "VORAHUB"

// GenerateKeyToken creates a new random key token of the form
// PREFIX-TTTTTT-HHHHHH-HHHHHH, where TTTTTT is the tail of the current
// millisecond timestamp in base 36 and the H groups come from a
// cryptographically random 12-byte value.
func GenerateKeyToken(prefix string) (string, error) {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultKeyPrefix
	}

	secret := make([]byte, 12)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return "", fmt.Errorf("generate key token: %w", err)
	}
	secretHex := strings.ToUpper(hex.EncodeToString(secret))

	stamp := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
	if len(stamp) > 6 {
		stamp = stamp[len(stamp)-6:]
	}

	return fmt.Sprintf("%s-%s-%s-%s", prefix, stamp, secretHex[:6], secretHex[6:12]), nil
}

// NormalizeKeyToken canonicalizes a user-supplied token for lookup.
func NormalizeKeyToken(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

// GenerateRandomString returns a hex-encoded random string of the given length.
func GenerateRandomString(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, bytes); err != nil {
		return "", fmt.Errorf("generate random string: %w", err)
	}
	return hex.EncodeToString(bytes)[:length], nil
}
