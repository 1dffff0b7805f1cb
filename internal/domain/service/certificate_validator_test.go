package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunay1/seal/internal/domain/service"
	"github.com/kunay1/seal/pkg/errors"
)

func TestValidateCertificateWindow(t *testing.T) {
	f := newIdentityFixture(t)
	cert := f.certificate(testScope, t0, 1)

	tests := []struct {
		name    string
		now     uint64
		wantErr error
	}{
		{"one ms before creation", t0 - 1, errors.ErrCertificateNotYetValid},
		{"at creation", t0, nil},
		{"last valid ms", t0 + 59_999, nil},
		{"at expiry", t0 + 60_000, errors.ErrCertificateExpired},
		{"two minutes later", t0 + 120_000, errors.ErrCertificateExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sk, err := service.ValidateCertificate(cert, testScope, tt.now, 30)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, sk)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, f.sessionKey(), sk)
		})
	}
}

func TestValidateCertificateRejectsLongTTL(t *testing.T) {
	f := newIdentityFixture(t)
	cert := f.certificate(testScope, t0, 31)

	_, err := service.ValidateCertificate(cert, testScope, t0, 30)
	assert.ErrorIs(t, err, errors.ErrCertificateTTLTooLong)

	_, err = service.ValidateCertificate(cert, testScope, t0, 31)
	assert.NoError(t, err)
}

func TestValidateCertificateScopeMismatch(t *testing.T) {
	f := newIdentityFixture(t)
	cert := f.certificate(testScope, t0, 10)

	_, err := service.ValidateCertificate(cert, idA, t0, 30)
	assert.ErrorIs(t, err, errors.ErrPolicyScopeMismatch)
}

func TestValidateCertificateSignatureCoversEveryField(t *testing.T) {
	f := newIdentityFixture(t)
	other := newIdentityFixture(t)

	cases := map[string]func(t *testing.T) error{
		"creation time": func(t *testing.T) error {
			c := f.certificate(testScope, t0, 10)
			c.CreationTime = t0 - 1000
			_, err := service.ValidateCertificate(c, testScope, t0, 30)
			return err
		},
		"ttl": func(t *testing.T) error {
			c := f.certificate(testScope, t0, 10)
			c.TTLMin = 11
			_, err := service.ValidateCertificate(c, testScope, t0, 30)
			return err
		},
		"session key": func(t *testing.T) error {
			c := f.certificate(testScope, t0, 10)
			c.SessionKey = other.sessionKey()
			_, err := service.ValidateCertificate(c, testScope, t0, 30)
			return err
		},
		"scope": func(t *testing.T) error {
			c := f.certificate(testScope, t0, 10)
			c.PolicyScope = idA
			_, err := service.ValidateCertificate(c, idA, t0, 30)
			return err
		},
		"user": func(t *testing.T) error {
			c := f.certificate(testScope, t0, 10)
			c.User = other.user
			_, err := service.ValidateCertificate(c, testScope, t0, 30)
			return err
		},
		"signature byte": func(t *testing.T) error {
			c := f.certificate(testScope, t0, 10)
			c.Signature[5] ^= 0xff
			_, err := service.ValidateCertificate(c, testScope, t0, 30)
			return err
		},
		"truncated signature": func(t *testing.T) error {
			c := f.certificate(testScope, t0, 10)
			c.Signature = c.Signature[:64]
			_, err := service.ValidateCertificate(c, testScope, t0, 30)
			return err
		},
	}
	for name, run := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, run(t), errors.ErrInvalidSignature)
		})
	}
}

func TestValidateCertificateNameBindingIsAdvisory(t *testing.T) {
	f := newIdentityFixture(t)
	cert := f.certificate(testScope, t0, 10)
	name := "@org/allowlist"
	cert.MvrName = &name

	_, err := service.ValidateCertificate(cert, testScope, t0, 30)
	assert.NoError(t, err)
}

func TestValidateCertificateOverflowingWindow(t *testing.T) {
	f := newIdentityFixture(t)
	cert := f.certificate(testScope, ^uint64(0)-10, 30)

	_, err := service.ValidateCertificate(cert, testScope, ^uint64(0)-5, 30)
	assert.ErrorIs(t, err, errors.ErrCertificateExpired)
}

func TestValidateCertificateRejectsBadSessionKey(t *testing.T) {
	f := newIdentityFixture(t)
	cert := f.certificate(testScope, t0, 10)
	cert.SessionKey = cert.SessionKey[:16]

	_, err := service.ValidateCertificate(cert, testScope, t0, 30)
	assert.ErrorIs(t, err, errors.ErrInvalidParameter)

	_, err = service.ValidateCertificate(nil, testScope, t0, 30)
	assert.ErrorIs(t, err, errors.ErrInvalidParameter)
}
