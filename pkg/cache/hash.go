package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// hashKey generates a cache key by hashing the components.
// The key format is: prefix:hash(parts...)
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	return fmt.Sprintf("%s:%s", prefix, Hash(data))
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Keyer derives cache keys.
type Keyer interface {
	// ReportKey keys a check report by the request body that produced it,
	// the report format and the marker environment it was evaluated in.
	ReportKey(body []byte, format string, env map[string]string) string
}

// DefaultKeyer produces unprefixed keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ReportKey returns "report:<sha256 of body, format and env>". The env map
// is encoded in sorted key order.
func (DefaultKeyer) ReportKey(body []byte, format string, env map[string]string) string {
	return hashKey("report", Hash(body), format, env)
}
