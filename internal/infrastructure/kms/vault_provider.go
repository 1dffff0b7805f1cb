// Package kms holds the node's master secret and derives key shares from it.
package kms

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	vault "github.com/hashicorp/vault/api"

	"github.com/kunay1/seal/internal/config"
	"github.com/kunay1/seal/internal/domain/service"
	"github.com/kunay1/seal/pkg/constants"
	"github.com/kunay1/seal/pkg/logger"
)

// masterSecretField is the KV v2 field holding the hex-encoded master secret.
const masterSecretField = "master_secret"

// MasterSecretSource supplies the 32-byte master secret at startup.
type MasterSecretSource interface {
	LoadMasterSecret(ctx context.Context) ([]byte, error)
}

// VaultProvider reads and writes the master secret in a Vault KV v2 mount.
type VaultProvider struct {
	vaultClient *vault.Client
	logger      logger.Logger
	metrics     service.Metrics
	config      config.VaultConfig
}

// NewVaultClient builds a Vault API client from configuration.
func NewVaultClient(cfg config.VaultConfig) (*vault.Client, error) {
	vc := vault.DefaultConfig()
	vc.Address = cfg.Address
	if cfg.Timeout > 0 {
		vc.Timeout = cfg.Timeout
	}
	client, err := vault.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	return client, nil
}

// NewVaultProvider creates a new VaultProvider. metrics may be nil.
func NewVaultProvider(cfg config.VaultConfig, vaultClient *vault.Client, metrics service.Metrics, log logger.Logger) *VaultProvider {
	if metrics == nil {
		metrics = service.NoopMetrics{}
	}
	return &VaultProvider{
		vaultClient: vaultClient,
		logger:      log.WithComponent("VaultProvider"),
		metrics:     metrics,
		config:      cfg,
	}
}

func (p *VaultProvider) dataPath() string {
	mount := strings.Trim(p.config.MountPath, "/")
	if mount == "" {
		mount = "secret"
	}
	return fmt.Sprintf("%s/data/%s", mount, strings.Trim(p.config.SecretPath, "/"))
}

// LoadMasterSecret implements MasterSecretSource.
func (p *VaultProvider) LoadMasterSecret(ctx context.Context) ([]byte, error) {
	path := p.dataPath()
	start := time.Now()
	secret, err := p.vaultClient.Logical().ReadWithContext(ctx, path)
	p.metrics.RecordVaultAPI("read_master_secret", time.Since(start), err)
	if err != nil {
		p.logger.Error(ctx, "failed to read master secret from Vault", err, logger.String("path", path))
		return nil, fmt.Errorf("could not retrieve master secret from vault: %w", err)
	}
	if secret == nil || secret.Data["data"] == nil {
		return nil, fmt.Errorf("master secret not found in vault at %s", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format in vault")
	}
	encoded, ok := data[masterSecretField].(string)
	if !ok {
		return nil, fmt.Errorf("%s not found or not a string in vault secret", masterSecretField)
	}
	return decodeMasterSecret(encoded)
}

// StoreMasterSecret writes a new master secret. Used by the admin CLI.
func (p *VaultProvider) StoreMasterSecret(ctx context.Context, secret []byte) error {
	if len(secret) != constants.MasterSecretLength {
		return fmt.Errorf("master secret must be %d bytes", constants.MasterSecretLength)
	}
	path := p.dataPath()
	payload := map[string]interface{}{
		"data": map[string]interface{}{
			masterSecretField: hex.EncodeToString(secret),
		},
	}

	start := time.Now()
	_, err := p.vaultClient.Logical().WriteWithContext(ctx, path, payload)
	p.metrics.RecordVaultAPI("write_master_secret", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to write master secret to vault: %w", err)
	}
	p.logger.Info(ctx, "master secret stored in Vault", logger.String("path", path))
	return nil
}

// StaticSecretSource serves a master secret given in configuration. Development only.
type StaticSecretSource struct {
	hex string
}

// NewStaticSecretSource wraps a hex-encoded secret.
func NewStaticSecretSource(hexSecret string) *StaticSecretSource {
	return &StaticSecretSource{hex: hexSecret}
}

// LoadMasterSecret implements MasterSecretSource.
func (s *StaticSecretSource) LoadMasterSecret(context.Context) ([]byte, error) {
	return decodeMasterSecret(s.hex)
}

func decodeMasterSecret(encoded string) ([]byte, error) {
	secret, err := hex.DecodeString(strings.TrimPrefix(encoded, "0x"))
	if err != nil {
		return nil, fmt.Errorf("master secret is not valid hex: %w", err)
	}
	if len(secret) != constants.MasterSecretLength {
		return nil, fmt.Errorf("master secret must be %d bytes, got %d", constants.MasterSecretLength, len(secret))
	}
	return secret, nil
}
