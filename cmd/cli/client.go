package cli

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kunay1/seal/sdk/go/sealclient"
)

// requestFlags describe the policy call a test request is built for.
type requestFlags struct {
	identity string
	pkg      string
	module   string
	function string
	ids      []string
	objects  []string
	ttlMin   uint16
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.identity, "identity", "", "identity seed as 64 hex characters (see `identity keygen`)")
	cmd.Flags().StringVar(&f.pkg, "package", "", "policy package address; also the certificate scope")
	cmd.Flags().StringVar(&f.module, "module", "allowlist", "policy module")
	cmd.Flags().StringVar(&f.function, "function", "seal_approve", "policy function")
	cmd.Flags().StringSliceVar(&f.ids, "id", nil, "policy identifier to request (repeatable)")
	cmd.Flags().StringSliceVar(&f.objects, "object", nil, "object passed to the policy function (repeatable)")
	cmd.Flags().Uint16Var(&f.ttlMin, "ttl", 10, "session lifetime in minutes")
	_ = cmd.MarkFlagRequired("identity")
	_ = cmd.MarkFlagRequired("package")
	_ = cmd.MarkFlagRequired("id")
}

func (f *requestFlags) build() (*sealclient.Request, error) {
	identity, err := parseIdentity(f.identity)
	if err != nil {
		return nil, err
	}
	args := make([]sealclient.Argument, 0, len(f.ids)+len(f.objects))
	for _, id := range f.ids {
		args = append(args, sealclient.PolicyID(id))
	}
	for _, obj := range f.objects {
		args = append(args, sealclient.Object(obj))
	}
	tx, err := sealclient.BuildPolicyTransaction(f.pkg, f.module, f.function, args...)
	if err != nil {
		return nil, err
	}
	sess, err := identity.NewSession(f.pkg, f.ttlMin, time.Now())
	if err != nil {
		return nil, err
	}
	return sess.NewRequest(tx)
}

func parseIdentity(seedHex string) (*sealclient.Identity, error) {
	seed, err := hex.DecodeString(strings.TrimPrefix(seedHex, "0x"))
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("identity must be %d hex characters", 2*ed25519.SeedSize)
	}
	return sealclient.NewIdentity(ed25519.NewKeyFromSeed(seed)), nil
}

func newIdentityCommand() *cobra.Command {
	identityCmd := &cobra.Command{
		Use:   "identity",
		Short: "Manage client identities",
	}
	identityCmd.AddCommand(&cobra.Command{
		Use:   "keygen",
		Short: "Generate an Ed25519 identity and print its seed and address",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed := make([]byte, ed25519.SeedSize)
			if _, err := rand.Read(seed); err != nil {
				return err
			}
			identity := sealclient.NewIdentity(ed25519.NewKeyFromSeed(seed))
			fmt.Fprintf(cmd.OutOrStdout(), "seed: %s\naddress: %s\n", hex.EncodeToString(seed), identity.Address())
			return nil
		},
	})
	return identityCmd
}

func newRequestCommand() *cobra.Command {
	var flags requestFlags
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Print a signed fetch_key request body",
		Long: `Prints the JSON body of a signed fetch_key request. The ephemeral decryption key is
not printed, so use fetch to also open the response.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.build()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(req.Body)
		},
	}
	flags.register(cmd)
	return cmd
}

func newFetchCommand() *cobra.Command {
	var (
		flags  requestFlags
		server string
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Send a signed request to a node and print the decrypted key shares",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.build()
			if err != nil {
				return err
			}
			shares, err := sealclient.NewClient(server, nil).FetchKey(cmd.Context(), req)
			if err != nil {
				return err
			}
			for _, share := range shares {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", share.ID, hex.EncodeToString(share.Key))
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&server, "server", "http://127.0.0.1:2024", "key server base URL")
	return cmd
}

func newInfoCommand() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print a node's service id, master id and version",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := sealclient.NewClient(server, nil).ServiceInfo(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "service_id: %s\nmaster_id: %s\nversion: %s\n", info.ServiceID, info.MasterID, info.Version)
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://127.0.0.1:2024", "key server base URL")
	return cmd
}
