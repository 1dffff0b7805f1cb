// Package cli implements the seal-admin command-line tool.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kunay1/seal/pkg/constants"
)

// NewRootCommand builds the command tree for the `seal-admin` binary.
// NewRootCommand 构建 `seal-admin` 命令树。
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "seal-admin",
		Short: "Administrative tool for Seal key server nodes.",
		Long: `seal-admin generates and stores master secrets, creates client identities and
sends signed key requests to a node for manual testing, and tails the audit stream.`,
		Version:       constants.ServiceVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newMasterCommand(), newIdentityCommand(), newRequestCommand(), newFetchCommand(), newInfoCommand(), newAuditCommand())
	return rootCmd
}

// Execute is the main entry point for the CLI application.
// It parses the command-line arguments and runs the matching command. If an error occurs,
// it prints the error and exits.
// Execute 是 CLI 应用程序的主入口点。
// 它解析命令行参数并执行相应的命令。如果发生错误，它会打印错误并退出。
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
