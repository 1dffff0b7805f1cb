// Package sealcrypto holds the cryptographic wire contract shared by the key server and its
// clients: identity addresses, personal-message intent signatures, the canonical certificate
// and request messages, and the sealed-box encryption used to deliver key shares.
//
// Every encoding here must stay bit-exact between signer and verifier.
package sealcrypto

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/nacl/box"
)

const (
	// AddressLength is the length of a user address and of any object identifier.
	AddressLength = 32

	// Ed25519Flag is the signature scheme flag prepended to identity signatures.
	Ed25519Flag byte = 0x00

	// IdentitySignatureLength is flag || signature || public key.
	IdentitySignatureLength = 1 + ed25519.SignatureSize + ed25519.PublicKeySize

	// SealedBoxOverhead is the ciphertext expansion of Seal.
	SealedBoxOverhead = box.AnonymousOverhead

	requestDomain = "seal-request-v1"
	timeLayout    = "2006-01-02T15:04:05.000Z"
)

var personalMessageIntent = []byte{3, 0, 0}

var (
	ErrSignatureLength  = errors.New("sealcrypto: identity signature has wrong length")
	ErrUnsupportedFlag  = errors.New("sealcrypto: unsupported signature scheme flag")
	ErrAddressMismatch  = errors.New("sealcrypto: public key does not match address")
	ErrBadSignature     = errors.New("sealcrypto: signature verification failed")
	ErrDecryptionFailed = errors.New("sealcrypto: sealed box could not be opened")
)

// ================================================================================
// Identity
// ================================================================================

// DeriveAddress returns the address of an Ed25519 identity: blake2b256(flag || pk).
func DeriveAddress(pk ed25519.PublicKey) [AddressLength]byte {
	buf := make([]byte, 0, 1+len(pk))
	buf = append(buf, Ed25519Flag)
	buf = append(buf, pk...)
	return blake2b.Sum256(buf)
}

// FormatAddress renders an address or object identifier as 0x-prefixed lowercase hex.
func FormatAddress(addr [AddressLength]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

// ParseAddress is the inverse of FormatAddress. It accepts only the canonical form.
func ParseAddress(s string) ([AddressLength]byte, error) {
	var addr [AddressLength]byte
	if len(s) != 2+2*AddressLength || s[:2] != "0x" {
		return addr, fmt.Errorf("sealcrypto: address %q is not 0x followed by %d hex characters", s, 2*AddressLength)
	}
	for _, c := range s[2:] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return addr, fmt.Errorf("sealcrypto: address %q is not lowercase hex", s)
		}
	}
	if _, err := hex.Decode(addr[:], []byte(s[2:])); err != nil {
		return addr, fmt.Errorf("sealcrypto: %w", err)
	}
	return addr, nil
}

// PersonalMessageDigest returns the digest an identity signs for a personal message:
// blake2b256(intent || uleb128(len(msg)) || msg).
func PersonalMessageDigest(msg []byte) [32]byte {
	buf := make([]byte, 0, len(personalMessageIntent)+binary.MaxVarintLen64+len(msg))
	buf = append(buf, personalMessageIntent...)
	buf = binary.AppendUvarint(buf, uint64(len(msg)))
	buf = append(buf, msg...)
	return blake2b.Sum256(buf)
}

// SignPersonalMessage signs msg with an identity key and returns the encoded identity signature.
func SignPersonalMessage(sk ed25519.PrivateKey, msg []byte) []byte {
	digest := PersonalMessageDigest(msg)
	sig := ed25519.Sign(sk, digest[:])

	out := make([]byte, 0, IdentitySignatureLength)
	out = append(out, Ed25519Flag)
	out = append(out, sig...)
	out = append(out, sk.Public().(ed25519.PublicKey)...)
	return out
}

// VerifyPersonalMessage checks that sig is a valid identity signature over msg by the
// identity whose address is addr.
func VerifyPersonalMessage(addr [AddressLength]byte, msg, sig []byte) error {
	if len(sig) != IdentitySignatureLength {
		return ErrSignatureLength
	}
	if sig[0] != Ed25519Flag {
		return ErrUnsupportedFlag
	}
	rawSig := sig[1 : 1+ed25519.SignatureSize]
	pk := ed25519.PublicKey(sig[1+ed25519.SignatureSize:])

	if DeriveAddress(pk) != addr {
		return ErrAddressMismatch
	}
	digest := PersonalMessageDigest(msg)
	if !ed25519.Verify(pk, digest[:], rawSig) {
		return ErrBadSignature
	}
	return nil
}

// ================================================================================
// Canonical Messages
// ================================================================================

// CertificateMessage builds the text an identity signs to delegate a session key.
// The optional name binding is deliberately not part of it.
func CertificateMessage(scope [AddressLength]byte, sessionKey ed25519.PublicKey, creationTimeMs uint64, ttlMin uint16) []byte {
	created := time.UnixMilli(int64(creationTimeMs)).UTC().Format(timeLayout)
	return []byte(fmt.Sprintf(
		"Accessing keys of package %s for %d mins from %s, session key %s",
		FormatAddress(scope),
		ttlMin,
		created,
		base64.StdEncoding.EncodeToString(sessionKey),
	))
}

// RequestMessage builds the bytes a session key signs for one request:
// domain || u32be(len(tx)) || tx || u32be(len(encKey)) || encKey || u32be(len(encVK)) || encVK.
func RequestMessage(tx, encKey, encVerificationKey []byte) []byte {
	buf := make([]byte, 0, len(requestDomain)+12+len(tx)+len(encKey)+len(encVerificationKey))
	buf = append(buf, requestDomain...)
	for _, part := range [][]byte{tx, encKey, encVerificationKey} {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(part)))
		buf = append(buf, part...)
	}
	return buf
}

// ================================================================================
// Ephemeral Encryption
// ================================================================================

// EncryptionKeyPair is a per-request key pair used only to receive key shares.
type EncryptionKeyPair struct {
	Public       [32]byte
	Private      [32]byte
	Verification ed25519.PublicKey
}

// GenerateEncryptionKeyPair creates an X25519 key pair plus the verification key derived
// from its private half.
func GenerateEncryptionKeyPair(rand io.Reader) (*EncryptionKeyPair, error) {
	pub, priv, err := box.GenerateKey(rand)
	if err != nil {
		return nil, fmt.Errorf("sealcrypto: generate encryption key: %w", err)
	}
	return &EncryptionKeyPair{
		Public:       *pub,
		Private:      *priv,
		Verification: DeriveVerificationKey(*priv),
	}, nil
}

// DeriveVerificationKey returns the Ed25519 public key seeded by an encryption private key.
func DeriveVerificationKey(priv [32]byte) ed25519.PublicKey {
	return ed25519.NewKeyFromSeed(priv[:]).Public().(ed25519.PublicKey)
}

// Seal encrypts plaintext so that only the holder of the private key matching pk can read it.
// The ciphertext is randomized; the function holds no state.
func Seal(pk [32]byte, plaintext []byte, rand io.Reader) ([]byte, error) {
	out, err := box.SealAnonymous(nil, plaintext, &pk, rand)
	if err != nil {
		return nil, fmt.Errorf("sealcrypto: seal: %w", err)
	}
	return out, nil
}

// Open decrypts a ciphertext produced by Seal.
func Open(kp *EncryptionKeyPair, ciphertext []byte) ([]byte, error) {
	out, ok := box.OpenAnonymous(nil, ciphertext, &kp.Public, &kp.Private)
	if !ok {
		return nil, ErrDecryptionFailed
	}
	return out, nil
}
