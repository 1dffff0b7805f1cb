// Package crypto provides the infrastructure encryptor that wraps key shares for the client.
package crypto

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/kunay1/seal/internal/domain/service"
	"github.com/kunay1/seal/pkg/constants"
	"github.com/kunay1/seal/pkg/sealcrypto"
)

var _ service.Encryptor = (*BoxEncryptor)(nil)

// BoxEncryptor seals key shares to the client's ephemeral X25519 key with an anonymous
// NaCl box. It is stateless and safe for concurrent use.
type BoxEncryptor struct {
	rand io.Reader
}

// NewBoxEncryptor returns an encryptor reading randomness from crypto/rand.
func NewBoxEncryptor() *BoxEncryptor {
	return &BoxEncryptor{rand: rand.Reader}
}

// Encrypt implements service.Encryptor.
func (e *BoxEncryptor) Encrypt(publicKey, plaintext []byte) ([]byte, error) {
	if len(publicKey) != constants.EncryptionKeyLength {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", constants.EncryptionKeyLength, len(publicKey))
	}
	var pk [32]byte
	copy(pk[:], publicKey)
	return sealcrypto.Seal(pk, plaintext, e.rand)
}
