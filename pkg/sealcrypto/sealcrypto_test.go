package sealcrypto_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunay1/seal/pkg/sealcrypto"
)

func TestPersonalMessageRoundTrip(t *testing.T) {
	pk, sk, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	addr := sealcrypto.DeriveAddress(pk)

	msg := []byte("hello")
	sig := sealcrypto.SignPersonalMessage(sk, msg)
	require.Len(t, sig, sealcrypto.IdentitySignatureLength)

	assert.NoError(t, sealcrypto.VerifyPersonalMessage(addr, msg, sig))
	assert.ErrorIs(t, sealcrypto.VerifyPersonalMessage(addr, []byte("hellO"), sig), sealcrypto.ErrBadSignature)

	var other [32]byte
	other[0] = 1
	assert.ErrorIs(t, sealcrypto.VerifyPersonalMessage(other, msg, sig), sealcrypto.ErrAddressMismatch)

	assert.ErrorIs(t, sealcrypto.VerifyPersonalMessage(addr, msg, sig[:10]), sealcrypto.ErrSignatureLength)

	bad := append([]byte{}, sig...)
	bad[0] = 0x01
	assert.ErrorIs(t, sealcrypto.VerifyPersonalMessage(addr, msg, bad), sealcrypto.ErrUnsupportedFlag)
}

func TestCertificateMessageIsStable(t *testing.T) {
	var scope [32]byte
	scope[31] = 0xab
	session := make(ed25519.PublicKey, ed25519.PublicKeySize)

	msg := sealcrypto.CertificateMessage(scope, session, 1_700_000_000_123, 5)
	assert.Equal(t,
		"Accessing keys of package 0x00000000000000000000000000000000000000000000000000000000000000ab "+
			"for 5 mins from 2023-11-14T22:13:20.123Z, session key AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=",
		string(msg))
}

func TestRequestMessageBindsEveryField(t *testing.T) {
	base := sealcrypto.RequestMessage([]byte("tx"), []byte("pk"), []byte("vk"))

	assert.NotEqual(t, base, sealcrypto.RequestMessage([]byte("tX"), []byte("pk"), []byte("vk")))
	assert.NotEqual(t, base, sealcrypto.RequestMessage([]byte("tx"), []byte("pK"), []byte("vk")))
	assert.NotEqual(t, base, sealcrypto.RequestMessage([]byte("tx"), []byte("pk"), []byte("vK")))
	// Length prefixes keep field boundaries unambiguous.
	assert.NotEqual(t, base, sealcrypto.RequestMessage([]byte("txp"), []byte("k"), []byte("vk")))
}

func TestSealOpen(t *testing.T) {
	kp, err := sealcrypto.GenerateEncryptionKeyPair(rand.Reader)
	require.NoError(t, err)
	assert.Equal(t, sealcrypto.DeriveVerificationKey(kp.Private), kp.Verification)

	plaintext := []byte("0123456789abcdef0123456789abcdef")
	c1, err := sealcrypto.Seal(kp.Public, plaintext, rand.Reader)
	require.NoError(t, err)
	c2, err := sealcrypto.Seal(kp.Public, plaintext, rand.Reader)
	require.NoError(t, err)

	assert.NotEqual(t, c1, c2)
	assert.Len(t, c1, len(plaintext)+sealcrypto.SealedBoxOverhead)

	for _, c := range [][]byte{c1, c2} {
		out, err := sealcrypto.Open(kp, c)
		require.NoError(t, err)
		assert.Equal(t, plaintext, out)
	}

	other, err := sealcrypto.GenerateEncryptionKeyPair(rand.Reader)
	require.NoError(t, err)
	_, err = sealcrypto.Open(other, c1)
	assert.ErrorIs(t, err, sealcrypto.ErrDecryptionFailed)
}

func TestParseAddress(t *testing.T) {
	pk, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	addr := sealcrypto.DeriveAddress(pk)

	parsed, err := sealcrypto.ParseAddress(sealcrypto.FormatAddress(addr))
	require.NoError(t, err)
	assert.Equal(t, addr, parsed)

	for _, bad := range []string{"", "0x12", "ab" + sealcrypto.FormatAddress(addr)[2:], "0x" + string(make([]byte, 64))} {
		_, err := sealcrypto.ParseAddress(bad)
		assert.Error(t, err, bad)
	}
}
