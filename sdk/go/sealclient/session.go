// Package sealclient builds authenticated key requests for a seal key server and opens
// the key shares it returns.
package sealclient

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kunay1/seal/pkg/sealcrypto"
)

var ErrScopeMismatch = errors.New("sealclient: response is for a different policy scope")

// Identity is a long-term Ed25519 identity.
type Identity struct {
	key ed25519.PrivateKey
}

// NewIdentity wraps an existing private key.
func NewIdentity(key ed25519.PrivateKey) *Identity {
	return &Identity{key: key}
}

// GenerateIdentity creates a random identity.
func GenerateIdentity() (*Identity, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Identity{key: key}, nil
}

// Address returns the identity's 0x-prefixed address.
func (i *Identity) Address() string {
	return sealcrypto.FormatAddress(sealcrypto.DeriveAddress(i.key.Public().(ed25519.PublicKey)))
}

// Session is a short-lived session key delegated by an Identity for one policy scope.
type Session struct {
	key   ed25519.PrivateKey
	scope string
	cert  Certificate
	rand  io.Reader
}

// NewSession signs a certificate delegating a fresh session key for ttlMin minutes from
// createdAt.
func (i *Identity) NewSession(scope string, ttlMin uint16, createdAt time.Time) (*Session, error) {
	scopeAddr, err := sealcrypto.ParseAddress(scope)
	if err != nil {
		return nil, err
	}
	sessPub, sessKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	created := uint64(createdAt.UnixMilli())
	msg := sealcrypto.CertificateMessage(scopeAddr, sessPub, created, ttlMin)
	return &Session{
		key:   sessKey,
		scope: scope,
		cert: Certificate{
			User:         i.Address(),
			PolicyScope:  sealcrypto.FormatAddress(scopeAddr),
			SessionVK:    base64.StdEncoding.EncodeToString(sessPub),
			CreationTime: created,
			TTLMin:       ttlMin,
			Signature:    base64.StdEncoding.EncodeToString(sealcrypto.SignPersonalMessage(i.key, msg)),
		},
		rand: rand.Reader,
	}, nil
}

// Certificate returns the signed certificate.
func (s *Session) Certificate() Certificate {
	return s.cert
}

// Request is one signed fetch request together with the ephemeral key that opens its response.
type Request struct {
	Body  FetchKeyRequest
	scope string
	keys  *sealcrypto.EncryptionKeyPair
}

// NewRequest generates an ephemeral encryption key and signs tx with the session key.
func (s *Session) NewRequest(tx []byte) (*Request, error) {
	kp, err := sealcrypto.GenerateEncryptionKeyPair(s.rand)
	if err != nil {
		return nil, err
	}
	sig := ed25519.Sign(s.key, sealcrypto.RequestMessage(tx, kp.Public[:], kp.Verification))
	return &Request{
		Body: FetchKeyRequest{
			PTB:                base64.StdEncoding.EncodeToString(tx),
			EncKey:             base64.StdEncoding.EncodeToString(kp.Public[:]),
			EncVerificationKey: base64.StdEncoding.EncodeToString(kp.Verification),
			RequestSignature:   base64.StdEncoding.EncodeToString(sig),
			Certificate:        s.cert,
		},
		scope: s.scope,
		keys:  kp,
	}, nil
}

// Open decrypts every key share in resp, in response order.
func (r *Request) Open(resp *FetchKeyResponse) ([]KeyShare, error) {
	if resp.PolicyScope != "" && resp.PolicyScope != r.scope {
		return nil, ErrScopeMismatch
	}
	shares := make([]KeyShare, 0, len(resp.DecryptionKeys))
	for _, k := range resp.DecryptionKeys {
		ct, err := base64.StdEncoding.DecodeString(k.EncryptedKey)
		if err != nil {
			return nil, fmt.Errorf("sealclient: key %s: %w", k.ID, err)
		}
		plain, err := sealcrypto.Open(r.keys, ct)
		if err != nil {
			return nil, fmt.Errorf("sealclient: key %s: %w", k.ID, err)
		}
		shares = append(shares, KeyShare{ID: k.ID, Key: plain})
	}
	return shares, nil
}
