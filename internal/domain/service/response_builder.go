package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kunay1/seal/internal/domain/models"
	"github.com/kunay1/seal/pkg/constants"
	"github.com/kunay1/seal/pkg/errors"
	"github.com/kunay1/seal/pkg/logger"
)

// ResponseBuilder derives key shares for authorized identifiers and encrypts each one to the
// requester's ephemeral key.
type ResponseBuilder struct {
	authority KeyAuthority
	encryptor Encryptor
	metrics   Metrics
	tracer    trace.Tracer
	log       logger.Logger
}

// NewResponseBuilder creates a ResponseBuilder. metrics may be nil.
func NewResponseBuilder(authority KeyAuthority, encryptor Encryptor, metrics Metrics, log logger.Logger) *ResponseBuilder {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &ResponseBuilder{
		authority: authority,
		encryptor: encryptor,
		metrics:   metrics,
		tracer:    otel.Tracer("seal/response"),
		log:       log.WithComponent("response_builder"),
	}
}

// CreateResponse returns one encrypted share per id, in input order. Any failure discards the
// shares built so far and surfaces as KeyDerivationFailed for the whole response.
func (b *ResponseBuilder) CreateResponse(ctx context.Context, scope models.ObjectID, ids []models.ObjectID, encryptionKey []byte) (*models.KeyShareResponse, error) {
	ctx, span := b.tracer.Start(ctx, "response.create",
		trace.WithAttributes(attribute.Int("seal.policy_ids", len(ids))))
	defer span.End()

	start := time.Now()
	resp, err := b.build(ctx, scope, ids, encryptionKey)
	b.metrics.RecordKeyDerivation(err == nil, len(ids), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(errors.CodeOf(err)))
		b.log.Error(ctx, "failed to build key share response", err,
			logger.String("policy_scope", scope.String()))
		return nil, err
	}
	return resp, nil
}

func (b *ResponseBuilder) build(ctx context.Context, scope models.ObjectID, ids []models.ObjectID, encryptionKey []byte) (*models.KeyShareResponse, error) {
	if len(encryptionKey) != constants.EncryptionKeyLength {
		return nil, errors.ErrInvalidParameter.WithMessage("encryption key must be 32 bytes")
	}
	if len(ids) == 0 {
		return nil, errors.ErrEmptyPolicySet
	}

	keys := make([]models.EncryptedKeyShare, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, errors.ErrKeyDerivationFailed.WithCause(err)
		}
		share, err := b.authority.DeriveKeyShare(ctx, scope, id)
		if err != nil {
			return nil, errors.ErrKeyDerivationFailed.
				WithMetadata("policy_id", id.String()).
				WithCause(err)
		}
		ct, err := b.encryptor.Encrypt(encryptionKey, share)
		if err != nil {
			return nil, errors.ErrKeyDerivationFailed.
				WithMetadata("policy_id", id.String()).
				WithCause(err)
		}
		keys = append(keys, models.EncryptedKeyShare{ID: id, EncryptedKey: ct})
	}

	return &models.KeyShareResponse{PolicyScope: scope, Keys: keys}, nil
}
