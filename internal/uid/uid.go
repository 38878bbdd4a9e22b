// Package uid provides unique identifier generation for the secrets store:
// ARN name suffixes and request IDs that don't need full UUID structure.
// Version IDs and client request tokens use google/uuid instead (see
// internal/store), since the wire protocol requires UUID-v4 there.
package uid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const alphaNumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RequestID generates a 32-character hex string suitable for use as an
// x-amzn-RequestId response header value, using crypto/rand.
func RequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// Fallback: timestamp-based ID. Should never happen with crypto/rand.
		return fmt.Sprintf("%032x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// ARNSuffix generates the six-character random alphanumeric suffix Secrets
// Manager appends to a secret's name when forming its ARN
// (arn:aws:secretsmanager:<region>:<account>:secret:<name>-XXXXXX).
func ARNSuffix() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%06x", time.Now().UnixNano()&0xffffff)[:6]
	}
	out := make([]byte, 6)
	for i, v := range b {
		out[i] = alphaNumeric[int(v)%len(alphaNumeric)]
	}
	return string(out)
}
