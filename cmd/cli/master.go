package cli

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kunay1/seal/internal/config"
	"github.com/kunay1/seal/internal/infrastructure/kms"
	"github.com/kunay1/seal/pkg/constants"
	"github.com/kunay1/seal/pkg/logger"
)

func newMasterCommand() *cobra.Command {
	masterCmd := &cobra.Command{
		Use:   "master",
		Short: "Manage the node master secret",
	}

	var (
		store      bool
		configPath string
	)
	keygenCmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new master secret",
		Long: `Generates a random master secret and prints it with its public master id.
With --store the secret is written to the Vault path from the node's config instead of printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := make([]byte, constants.MasterSecretLength)
			if _, err := rand.Read(secret); err != nil {
				return err
			}
			authority, err := kms.NewHKDFKeyAuthority(secret, 0)
			if err != nil {
				return err
			}

			if !store {
				fmt.Fprintf(cmd.OutOrStdout(), "master_secret_hex: %s\nmaster_id: %s\n", hex.EncodeToString(secret), authority.MasterID())
				return nil
			}

			cfg, err := config.LoadConfig(configPath, logger.NewNoopLogger())
			if err != nil {
				return err
			}
			client, err := kms.NewVaultClient(cfg.Vault)
			if err != nil {
				return err
			}
			provider := kms.NewVaultProvider(cfg.Vault, client, nil, logger.NewNoopLogger())
			if err := provider.StoreMasterSecret(cmd.Context(), secret); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored in vault at %s/%s\nmaster_id: %s\n", cfg.Vault.MountPath, cfg.Vault.SecretPath, authority.MasterID())
			return nil
		},
	}
	keygenCmd.Flags().BoolVar(&store, "store", false, "write the secret to Vault instead of printing it")
	keygenCmd.Flags().StringVarP(&configPath, "config", "c", "", "node config file holding the vault section")

	var secretHex string
	idCmd := &cobra.Command{
		Use:   "id",
		Short: "Print the public master id for a master secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := kms.NewStaticSecretSource(secretHex).LoadMasterSecret(cmd.Context())
			if err != nil {
				return err
			}
			authority, err := kms.NewHKDFKeyAuthority(secret, 0)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), authority.MasterID())
			return nil
		},
	}
	idCmd.Flags().StringVar(&secretHex, "secret", "", "master secret as 64 hex characters")
	_ = idCmd.MarkFlagRequired("secret")

	masterCmd.AddCommand(keygenCmd, idCmd)
	return masterCmd
}
