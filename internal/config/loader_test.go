package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunay1/seal/pkg/logger"
)

const devSecret = "0101010101010101010101010101010101010101010101010101010101010101"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
key_authority:
  source: static
  master_secret_hex: "`+devSecret+`"
`)
	cfg, err := LoadConfig(path, logger.NewNoopLogger())
	require.NoError(t, err)

	assert.Equal(t, 2024, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Policy.MaxCertificateTTLMinutes)
	assert.Equal(t, 30*time.Minute, cfg.Policy.MaxRequestAge)
	assert.Equal(t, 10, cfg.Policy.MaxPolicyIDs)
	assert.False(t, cfg.Policy.ReplayProtection)
	assert.Equal(t, "identity", cfg.RateLimit.Dimension)
	assert.Equal(t, uint64(50_000_000), cfg.Chain.GasBudget)
	assert.Equal(t, "rpc", cfg.Chain.Mode)
	assert.Equal(t, "seal.audit", cfg.Kafka.Topic)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9001
policy:
  max_certificate_ttl_minutes: 5
  evaluator_timeout: 2s
key_authority:
  source: static
  master_secret_hex: "`+devSecret+`"
`)
	t.Setenv("SEAL_POLICY_MAX_POLICY_IDS", "3")
	t.Setenv("SEAL_CHAIN_RPC_URL", "http://fullnode:9000")

	cfg, err := LoadConfig(path, logger.NewNoopLogger())
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Policy.MaxCertificateTTLMinutes)
	assert.Equal(t, 2*time.Second, cfg.Policy.EvaluatorTimeout)
	assert.Equal(t, 3, cfg.Policy.MaxPolicyIDs)
	assert.Equal(t, "http://fullnode:9000", cfg.Chain.RPCURL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"vault without address", "key_authority:\n  source: vault\n"},
		{"short static secret", "key_authority:\n  source: static\n  master_secret_hex: abcd\n"},
		{"static in production", "server:\n  environment: production\nkey_authority:\n  source: static\n  master_secret_hex: \"" + devSecret + "\"\n"},
		{"unknown source", "key_authority:\n  source: hsm\n"},
		{"zero ttl", "policy:\n  max_certificate_ttl_minutes: 0\nkey_authority:\n  source: static\n  master_secret_hex: \"" + devSecret + "\"\n"},
		{"redis replay without redis", "policy:\n  replay_protection: true\n  replay_store: redis\nkey_authority:\n  source: static\n  master_secret_hex: \"" + devSecret + "\"\n"},
		{"static chain without file", "chain:\n  mode: static\nkey_authority:\n  source: static\n  master_secret_hex: \"" + devSecret + "\"\n"},
		{"unknown chain mode", "chain:\n  mode: grpc\nkey_authority:\n  source: static\n  master_secret_hex: \"" + devSecret + "\"\n"},
		{"bad dimension", "rate_limit:\n  dimension: ip\nkey_authority:\n  source: static\n  master_secret_hex: \"" + devSecret + "\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body), logger.NewNoopLogger())
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsUnquotedNumericSecret(t *testing.T) {
	path := writeConfig(t, "key_authority:\n  source: static\n  master_secret_hex: "+devSecret+"\n")
	_, err := LoadConfig(path, logger.NewNoopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quoted string")
}

func TestLoadSecretFromEnvironment(t *testing.T) {
	path := writeConfig(t, "key_authority:\n  source: static\n")
	t.Setenv("SEAL_KEY_AUTHORITY_MASTER_SECRET_HEX", devSecret)

	cfg, err := LoadConfig(path, logger.NewNoopLogger())
	require.NoError(t, err)
	assert.Equal(t, devSecret, cfg.KeyAuthority.MasterSecretHex)
}

func TestWatchPolicy(t *testing.T) {
	base := "key_authority:\n  source: static\n  master_secret_hex: \"" + devSecret + "\"\n"
	path := writeConfig(t, base+"policy:\n  max_policy_ids: 4\n")

	loader := NewLoader(path, logger.NewNoopLogger())
	cfg, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Policy.MaxPolicyIDs)

	changes := make(chan PolicyConfig, 4)
	loader.WatchPolicy(func(p PolicyConfig) { changes <- p })

	require.NoError(t, os.WriteFile(path, []byte(base+"policy:\n  max_policy_ids: 7\n"), 0o600))

	select {
	case p := <-changes:
		assert.Equal(t, 7, p.MaxPolicyIDs)
	case <-time.After(5 * time.Second):
		t.Fatal("policy change was not observed")
	}
}
