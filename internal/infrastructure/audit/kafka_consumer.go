package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kunay1/seal/internal/config"
	"github.com/kunay1/seal/internal/domain/models"
	"github.com/kunay1/seal/pkg/logger"
)

// ErrUnverifiedEvent is passed to the handler for events whose signature is missing or wrong.
var ErrUnverifiedEvent = errors.New("audit event signature did not verify")

// messageReader is the subset of *kafka.Reader the consumer needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventHandler receives each decoded audit event. verifyErr is ErrUnverifiedEvent when a
// signing key is configured and the message signature does not match.
type EventHandler func(ctx context.Context, event models.AuditEvent, verifyErr error) error

// KafkaConsumer reads audit events back from the audit topic and checks their signatures.
type KafkaConsumer struct {
	reader     messageReader
	signingKey string
	commits    bool
	logger     logger.Logger
}

// NewKafkaConsumer creates a consumer in groupID. An empty groupID reads the topic's first
// partition from the start without committing offsets.
func NewKafkaConsumer(cfg config.KafkaConfig, groupID string, log logger.Logger) (*KafkaConsumer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("kafka brokers and topic are required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
	})
	return newKafkaConsumer(reader, cfg.SigningKey, groupID != "", log), nil
}

func newKafkaConsumer(r messageReader, signingKey string, commits bool, log logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		reader:     r,
		signingKey: signingKey,
		commits:    commits,
		logger:     log.WithComponent("KafkaConsumer"),
	}
}

// Run feeds events to handle until ctx is done or handle returns an error. Messages that
// do not decode are logged and skipped.
func (c *KafkaConsumer) Run(ctx context.Context, handle EventHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to fetch audit message: %w", err)
		}

		var event models.AuditEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Warn(ctx, "Skipping undecodable audit message",
				logger.Int64("offset", msg.Offset), logger.Err(err))
			c.commit(ctx, msg)
			continue
		}

		if err := handle(ctx, event, c.verify(msg)); err != nil {
			return err
		}
		c.commit(ctx, msg)
	}
}

// Close closes the underlying Kafka reader.
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

func (c *KafkaConsumer) verify(msg kafka.Message) error {
	if c.signingKey == "" {
		return nil
	}
	for _, h := range msg.Headers {
		if h.Key == signatureHeader && VerifyAuditPayload(msg.Value, string(h.Value), c.signingKey) {
			return nil
		}
	}
	return ErrUnverifiedEvent
}

func (c *KafkaConsumer) commit(ctx context.Context, msg kafka.Message) {
	if !c.commits {
		return
	}
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Warn(ctx, "Failed to commit audit message", logger.Int64("offset", msg.Offset), logger.Err(err))
	}
}
