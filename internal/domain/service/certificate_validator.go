package service

import (
	"crypto/ed25519"

	"github.com/kunay1/seal/internal/domain/models"
	"github.com/kunay1/seal/pkg/errors"
	"github.com/kunay1/seal/pkg/sealcrypto"
)

// ValidateCertificate checks that cert was issued by its user identity for expectedScope and is
// valid at now (epoch milliseconds). On success it returns the delegated session key.
//
// Checks run cheapest first: ttl bound, validity window, scope, then the identity signature.
func ValidateCertificate(cert *models.Certificate, expectedScope models.ObjectID, now uint64, maxTTLMin uint16) (ed25519.PublicKey, error) {
	if cert == nil {
		return nil, errors.ErrInvalidParameter.WithMessage("certificate is required")
	}
	if len(cert.SessionKey) != ed25519.PublicKeySize {
		return nil, errors.ErrInvalidParameter.WithMessage("certificate session key must be 32 bytes")
	}

	if cert.TTLMin > maxTTLMin {
		return nil, errors.ErrCertificateTTLTooLong.
			WithMetadata("ttl_min", cert.TTLMin).
			WithMetadata("max_ttl_min", maxTTLMin)
	}

	if now < cert.CreationTime {
		return nil, errors.ErrCertificateNotYetValid
	}
	notAfter, ok := cert.NotAfter()
	if !ok || now >= notAfter {
		return nil, errors.ErrCertificateExpired
	}

	if cert.PolicyScope != expectedScope {
		return nil, errors.ErrPolicyScopeMismatch
	}

	msg := sealcrypto.CertificateMessage(cert.PolicyScope, cert.SessionKey, cert.CreationTime, cert.TTLMin)
	if err := sealcrypto.VerifyPersonalMessage(cert.User, msg, cert.Signature); err != nil {
		return nil, errors.ErrInvalidSignature.WithCause(err)
	}

	session := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(session, cert.SessionKey)
	return session, nil
}
