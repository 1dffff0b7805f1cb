// Package service provides application-level services that orchestrate domain services.
package service

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kunay1/seal/internal/application/dto"
	"github.com/kunay1/seal/internal/domain/models"
	domainService "github.com/kunay1/seal/internal/domain/service"
	"github.com/kunay1/seal/pkg/constants"
	"github.com/kunay1/seal/pkg/errors"
	"github.com/kunay1/seal/pkg/logger"
)

const auditTimeout = 5 * time.Second

// KeyAppService defines the interface for the key release application service
type KeyAppService interface {
	// FetchKey authorizes a request and returns key shares sealed to its encryption key
	FetchKey(ctx context.Context, req *dto.FetchKeyRequest) (*dto.FetchKeyResponse, error)

	// ServiceInfo returns the node's public identity
	ServiceInfo(ctx context.Context) *dto.ServiceInfoResponse

	// Close waits for pending audit events or until ctx is done
	Close(ctx context.Context) error
}

// keyAppServiceImpl is the concrete implementation of KeyAppService
type keyAppServiceImpl struct {
	authorizer *domainService.AuthorizationService
	builder    *domainService.ResponseBuilder
	audit      domainService.AuditService
	metrics    domainService.Metrics
	serviceID  string
	masterID   string
	now        func() time.Time
	logger     logger.Logger
	pending    sync.WaitGroup
}

// NewKeyAppService creates a new instance of KeyAppService. audit and metrics may be nil.
func NewKeyAppService(
	authorizer *domainService.AuthorizationService,
	builder *domainService.ResponseBuilder,
	authority domainService.KeyAuthority,
	audit domainService.AuditService,
	metrics domainService.Metrics,
	serviceID string,
	log logger.Logger,
) KeyAppService {
	if metrics == nil {
		metrics = domainService.NoopMetrics{}
	}
	masterID := authority.MasterID()
	if serviceID == "" {
		serviceID = masterID
	}
	return &keyAppServiceImpl{
		authorizer: authorizer,
		builder:    builder,
		audit:      audit,
		metrics:    metrics,
		serviceID:  serviceID,
		masterID:   masterID,
		now:        time.Now,
		logger:     log.WithComponent("KeyAppService"),
	}
}

// FetchKey runs the full key release flow. Every outcome is counted and audited.
func (s *keyAppServiceImpl) FetchKey(ctx context.Context, in *dto.FetchKeyRequest) (*dto.FetchKeyResponse, error) {
	start := s.now()

	req, cert, err := decodeFetchKeyRequest(in)
	if err != nil {
		s.finish(ctx, start, nil, cert, err)
		return nil, err
	}

	authorized, err := s.authorizer.CheckRequest(ctx, req, cert)
	if err != nil {
		s.finish(ctx, start, nil, cert, err)
		return nil, err
	}

	resp, err := s.builder.CreateResponse(ctx, authorized.PolicyScope, authorized.PolicyIDs, req.EncryptionKey)
	if err != nil {
		s.finish(ctx, start, authorized, cert, err)
		return nil, err
	}

	s.finish(ctx, start, authorized, cert, nil)
	return toFetchKeyResponse(resp), nil
}

// ServiceInfo implements KeyAppService.
func (s *keyAppServiceImpl) ServiceInfo(context.Context) *dto.ServiceInfoResponse {
	return &dto.ServiceInfoResponse{
		ServiceID: s.serviceID,
		MasterID:  s.masterID,
		Version:   constants.ServiceVersion,
	}
}

// Close implements KeyAppService.
func (s *keyAppServiceImpl) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *keyAppServiceImpl) finish(ctx context.Context, start time.Time, authorized *models.AuthorizedRequest, cert *models.Certificate, err error) {
	ids := 0
	if authorized != nil {
		ids = len(authorized.PolicyIDs)
	}
	code := ""
	if err != nil {
		code = string(errors.CodeOf(err))
	}
	s.metrics.RecordFetchKey(err == nil, code, ids, s.now().Sub(start))

	eventType := constants.AuditEventKeysReleased
	if err != nil {
		eventType = constants.AuditEventRequestDenied
		s.logger.Warn(ctx, "Key request rejected",
			logger.String("code", code),
			logger.Bool("retryable", errors.IsRetryable(err)),
			logger.Err(err))
	} else {
		s.logger.Info(ctx, "Key shares released",
			logger.String("user", authorized.User.String()),
			logger.String("policy_scope", authorized.PolicyScope.String()),
			logger.Int("count", ids))
	}

	event := models.NewAuditEvent(eventType, err == nil, s.now()).
		WithRequest(contextString(ctx, constants.ContextKeyRequestID), contextString(ctx, constants.ContextKeySDKVersion), traceID(ctx)).
		WithResultCode(code)
	switch {
	case authorized != nil:
		event.WithAuthorization(authorized.User, authorized.PolicyScope, authorized.PolicyIDs)
	case cert != nil:
		event.User = cert.User.String()
	}
	s.emitAudit(ctx, event)
}

// emitAudit delivers the event in the background. Audit failures never fail a request.
func (s *keyAppServiceImpl) emitAudit(ctx context.Context, event *models.AuditEvent) {
	if s.audit == nil {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
		defer cancel()
		if err := s.audit.LogEvent(actx, *event); err != nil {
			s.logger.Warn(actx, "Failed to write audit event",
				logger.String("event_id", event.EventID.String()), logger.Err(err))
		}
	}()
}

// decodeFetchKeyRequest converts the wire DTO into domain values. The certificate is returned
// whenever it decoded, so a failure can still be attributed to a user.
func decodeFetchKeyRequest(in *dto.FetchKeyRequest) (*models.KeyRequest, *models.Certificate, error) {
	if in == nil {
		return nil, nil, errors.ErrInvalidParameter.WithMessage("request body is required")
	}

	user, err := models.ParseObjectID(in.Certificate.User)
	if err != nil {
		return nil, nil, errors.ErrMalformedIdentifier.WithMessage("certificate.user is not a valid address")
	}
	scope, err := models.ParseObjectID(in.Certificate.PolicyScope)
	if err != nil {
		return nil, nil, errors.ErrMalformedIdentifier.WithMessage("certificate.policy_scope is not a valid address")
	}
	sessionVK, err := decodeField("certificate.session_vk", in.Certificate.SessionVK)
	if err != nil {
		return nil, nil, err
	}
	certSig, err := decodeField("certificate.signature", in.Certificate.Signature)
	if err != nil {
		return nil, nil, err
	}
	cert := &models.Certificate{
		User:         user,
		PolicyScope:  scope,
		SessionKey:   ed25519.PublicKey(sessionVK),
		CreationTime: in.Certificate.CreationTime,
		TTLMin:       in.Certificate.TTLMin,
		Signature:    certSig,
		MvrName:      in.Certificate.MvrName,
	}

	req := &models.KeyRequest{}
	for _, f := range []struct {
		name string
		src  string
		dst  *[]byte
	}{
		{"ptb", in.PTB, &req.Transaction},
		{"enc_key", in.EncKey, &req.EncryptionKey},
		{"enc_verification_key", in.EncVerificationKey, &req.VerificationKey},
		{"request_signature", in.RequestSignature, &req.Signature},
	} {
		if *f.dst, err = decodeField(f.name, f.src); err != nil {
			return nil, cert, err
		}
	}
	return req, cert, nil
}

func decodeField(name, value string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, errors.ErrInvalidParameter.WithMessage(name+" is not valid base64").WithMetadata("field", name)
	}
	return b, nil
}

func toFetchKeyResponse(resp *models.KeyShareResponse) *dto.FetchKeyResponse {
	out := &dto.FetchKeyResponse{
		PolicyScope:    resp.PolicyScope.String(),
		DecryptionKeys: make([]dto.DecryptionKeyDTO, len(resp.Keys)),
	}
	for i, k := range resp.Keys {
		out.DecryptionKeys[i] = dto.DecryptionKeyDTO{
			ID:           k.ID.String(),
			EncryptedKey: base64.StdEncoding.EncodeToString(k.EncryptedKey),
		}
	}
	return out
}

func contextString(ctx context.Context, key constants.ContextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

func traceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
