package service

import (
	"crypto/ed25519"

	"github.com/kunay1/seal/internal/domain/models"
	"github.com/kunay1/seal/pkg/constants"
	"github.com/kunay1/seal/pkg/errors"
	"github.com/kunay1/seal/pkg/sealcrypto"
)

// VerifyRequestSignature checks that req was signed by sessionKey over the canonical request
// message built from the raw transaction and both ephemeral keys.
func VerifyRequestSignature(req *models.KeyRequest, sessionKey ed25519.PublicKey) error {
	if req == nil {
		return errors.ErrInvalidParameter.WithMessage("request is required")
	}
	if len(req.EncryptionKey) != constants.EncryptionKeyLength {
		return errors.ErrInvalidParameter.WithMessage("encryption key must be 32 bytes")
	}
	if len(req.VerificationKey) != constants.VerificationKeyLength {
		return errors.ErrInvalidParameter.WithMessage("verification key must be 32 bytes")
	}
	if len(sessionKey) != ed25519.PublicKeySize || len(req.Signature) != ed25519.SignatureSize {
		return errors.ErrInvalidRequestSignature
	}

	msg := sealcrypto.RequestMessage(req.Transaction, req.EncryptionKey, req.VerificationKey)
	if !ed25519.Verify(sessionKey, msg, req.Signature) {
		return errors.ErrInvalidRequestSignature
	}
	return nil
}
