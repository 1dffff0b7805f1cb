// Package kms_test provides tests for the kms package.
package kms_test

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunay1/seal/internal/config"
	"github.com/kunay1/seal/internal/infrastructure/kms"
	"github.com/kunay1/seal/pkg/logger"
)

// fakeKV serves a single KV v2 secret.
type fakeKV struct {
	mu   sync.Mutex
	data map[string]interface{}
}

func (f *fakeKV) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.URL.Path != "/v1/secret/data/seal/master" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodGet:
		if f.data == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]interface{}{"data": f.data}})
	case http.MethodPut, http.MethodPost:
		var body struct {
			Data map[string]interface{} `json:"data"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.data = body.Data
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]interface{}{"version": 1}})
	}
}

func newProvider(t *testing.T, kv *fakeKV) *kms.VaultProvider {
	t.Helper()
	ts := httptest.NewServer(kv)
	t.Cleanup(ts.Close)

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = ts.URL
	vaultClient, err := api.NewClient(vaultConfig)
	require.NoError(t, err)

	cfg := config.VaultConfig{MountPath: "secret", SecretPath: "seal/master"}
	return kms.NewVaultProvider(cfg, vaultClient, nil, logger.NewNoopLogger())
}

func TestVaultProvider_LoadMasterSecret(t *testing.T) {
	secret := make([]byte, 32)
	secret[0] = 7
	provider := newProvider(t, &fakeKV{data: map[string]interface{}{"master_secret": hex.EncodeToString(secret)}})

	got, err := provider.LoadMasterSecret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, secret, got)
}

func TestVaultProvider_Missing(t *testing.T) {
	provider := newProvider(t, &fakeKV{})
	_, err := provider.LoadMasterSecret(context.Background())
	assert.Error(t, err)
}

func TestVaultProvider_BadSecret(t *testing.T) {
	provider := newProvider(t, &fakeKV{data: map[string]interface{}{"master_secret": "abcd"}})
	_, err := provider.LoadMasterSecret(context.Background())
	assert.Error(t, err)
}

func TestVaultProvider_StoreThenLoad(t *testing.T) {
	provider := newProvider(t, &fakeKV{})
	secret := make([]byte, 32)
	for i := range secret {
		secret[i] = byte(i)
	}

	require.NoError(t, provider.StoreMasterSecret(context.Background(), secret))
	got, err := provider.LoadMasterSecret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, secret, got)

	assert.Error(t, provider.StoreMasterSecret(context.Background(), secret[:16]))
}

func TestStaticSecretSource(t *testing.T) {
	good := kms.NewStaticSecretSource("0x" + hex.EncodeToString(make([]byte, 32)))
	got, err := good.LoadMasterSecret(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 32)

	_, err = kms.NewStaticSecretSource("zz").LoadMasterSecret(context.Background())
	assert.Error(t, err)
}
