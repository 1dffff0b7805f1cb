package cli

import (
	"context"
	"encoding/json"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kunay1/seal/internal/config"
	"github.com/kunay1/seal/internal/domain/models"
	"github.com/kunay1/seal/internal/infrastructure/audit"
	"github.com/kunay1/seal/pkg/logger"
)

// tailedEvent is one line of `audit tail` output.
type tailedEvent struct {
	models.AuditEvent
	Verified bool `json:"verified"`
}

func newAuditCommand() *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit stream",
	}

	var (
		cfg     config.KafkaConfig
		groupID string
	)
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Print audit events from Kafka as JSON lines, checking their signatures",
		RunE: func(cmd *cobra.Command, args []string) error {
			consumer, err := audit.NewKafkaConsumer(cfg, groupID, logger.NewNoopLogger())
			if err != nil {
				return err
			}
			defer consumer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			out := cmd.OutOrStdout()
			return consumer.Run(ctx, func(_ context.Context, ev models.AuditEvent, verifyErr error) error {
				return printEvent(out, ev, cfg.SigningKey != "" && verifyErr == nil)
			})
		},
	}
	tailCmd.Flags().StringSliceVar(&cfg.Brokers, "brokers", []string{"127.0.0.1:9092"}, "Kafka brokers")
	tailCmd.Flags().StringVar(&cfg.Topic, "topic", "seal.audit", "audit topic")
	tailCmd.Flags().StringVar(&cfg.SigningKey, "signing-key", "", "HMAC key the nodes sign audit events with")
	tailCmd.Flags().StringVar(&groupID, "group", "", "consumer group; empty reads from the start without committing")

	auditCmd.AddCommand(tailCmd)
	return auditCmd
}

func printEvent(w io.Writer, ev models.AuditEvent, verified bool) error {
	return json.NewEncoder(w).Encode(tailedEvent{AuditEvent: ev, Verified: verified})
}
