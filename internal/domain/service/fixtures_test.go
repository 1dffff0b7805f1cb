package service_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kunay1/seal/internal/domain/models"
	"github.com/kunay1/seal/pkg/sealcrypto"
)

const t0 uint64 = 1_700_000_000_000

var (
	testScope = models.MustParseObjectID("0x" + "ab" + "00000000000000000000000000000000000000000000000000000000000001")
	idA       = models.MustParseObjectID("0x1111111111111111111111111111111111111111111111111111111111111111")
	idB       = models.MustParseObjectID("0x2222222222222222222222222222222222222222222222222222222222222222")
	idC       = models.MustParseObjectID("0x3333333333333333333333333333333333333333333333333333333333333333")
)

// identityFixture plays the client: a long-term identity, a session key and an ephemeral
// encryption key pair.
type identityFixture struct {
	identity ed25519.PrivateKey
	user     models.ObjectID
	session  ed25519.PrivateKey
	enc      *sealcrypto.EncryptionKeyPair
}

func newIdentityFixture(t *testing.T) *identityFixture {
	t.Helper()
	idPub, idPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_, sessPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	enc, err := sealcrypto.GenerateEncryptionKeyPair(rand.Reader)
	require.NoError(t, err)
	return &identityFixture{
		identity: idPriv,
		user:     models.ObjectID(sealcrypto.DeriveAddress(idPub)),
		session:  sessPriv,
		enc:      enc,
	}
}

func (f *identityFixture) sessionKey() ed25519.PublicKey {
	return f.session.Public().(ed25519.PublicKey)
}

func (f *identityFixture) certificate(scope models.ObjectID, created uint64, ttl uint16) *models.Certificate {
	msg := sealcrypto.CertificateMessage(scope, f.sessionKey(), created, ttl)
	return &models.Certificate{
		User:         f.user,
		PolicyScope:  scope,
		SessionKey:   f.sessionKey(),
		CreationTime: created,
		TTLMin:       ttl,
		Signature:    sealcrypto.SignPersonalMessage(f.identity, msg),
	}
}

func (f *identityFixture) request(tx []byte) *models.KeyRequest {
	encKey := append([]byte(nil), f.enc.Public[:]...)
	vk := append([]byte(nil), f.enc.Verification...)
	return &models.KeyRequest{
		Transaction:     tx,
		EncryptionKey:   encKey,
		VerificationKey: vk,
		Signature:       ed25519.Sign(f.session, sealcrypto.RequestMessage(tx, encKey, vk)),
	}
}

func policyTx(t *testing.T, scope models.ObjectID, ids ...models.ObjectID) []byte {
	t.Helper()
	args := make([]models.PolicyArgument, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, models.PolicyArgument{Kind: models.ArgumentPolicyID, Value: id.String()})
	}
	args = append(args, models.PolicyArgument{Kind: models.ArgumentPure, Value: base64.StdEncoding.EncodeToString([]byte{1})})
	raw, err := json.Marshal(models.PolicyTransaction{
		Version: 1,
		Commands: []models.PolicyCommand{{
			Kind:      models.CommandMoveCall,
			Package:   scope.String(),
			Module:    "allowlist",
			Function:  "seal_approve",
			Arguments: args,
		}},
	})
	require.NoError(t, err)
	return raw
}

// sealEncryptor encrypts with the production sealed box.
type sealEncryptor struct{}

func (sealEncryptor) Encrypt(publicKey, plaintext []byte) ([]byte, error) {
	var pk [32]byte
	copy(pk[:], publicKey)
	return sealcrypto.Seal(pk, plaintext, rand.Reader)
}
