package models

import (
	"crypto/ed25519"

	"github.com/kunay1/seal/pkg/constants"
)

// Certificate delegates a short-lived session key to a long-term identity for one policy scope.
// It is built by the client, never persisted by the server and validated on every request.
type Certificate struct {
	// User is the address of the identity that signed the certificate.
	User ObjectID
	// PolicyScope is the package the certificate is valid for.
	PolicyScope ObjectID
	// SessionKey is the public half of the session key pair.
	SessionKey ed25519.PublicKey
	// CreationTime is in epoch milliseconds.
	CreationTime uint64
	// TTLMin is the validity window in minutes.
	TTLMin uint16
	// Signature is the identity's personal-message signature over the canonical certificate message.
	Signature []byte
	// MvrName is an advisory human-readable package name. It is not signature-covered.
	MvrName *string
}

// NotAfter returns the first epoch millisecond at which the certificate is no longer valid.
// The second result is false when the window overflows.
func (c *Certificate) NotAfter() (uint64, bool) {
	window := uint64(c.TTLMin) * constants.MillisPerMinute
	end := c.CreationTime + window
	if end < c.CreationTime {
		return 0, false
	}
	return end, true
}
