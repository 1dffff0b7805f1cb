package service

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/blake2b"

	"github.com/kunay1/seal/internal/domain/models"
	"github.com/kunay1/seal/pkg/constants"
	"github.com/kunay1/seal/pkg/errors"
	"github.com/kunay1/seal/pkg/logger"
)

// Policy holds the deployment's authorization limits. It can be swapped at runtime.
type Policy struct {
	// MaxCertificateTTLMin rejects certificates asking for a longer session.
	MaxCertificateTTLMin uint16
	// MaxRequestAge bounds now - certificate creation time. Zero disables the check.
	MaxRequestAge time.Duration
	// MaxPolicyIDs bounds the identifiers per request.
	MaxPolicyIDs int
	// EvaluatorTimeout bounds a single chain evaluation. Zero means the caller's deadline only.
	EvaluatorTimeout time.Duration
	// ReplayProtection rejects a request signature that already released keys.
	ReplayProtection bool
	// ReplayWindow is how long a served request is remembered.
	ReplayWindow time.Duration
	// RateLimitDimension selects the key the rate limiter counts against.
	RateLimitDimension constants.RateLimitDimension
}

// DefaultPolicy returns the limits used when configuration leaves them unset.
func DefaultPolicy() Policy {
	return Policy{
		MaxCertificateTTLMin: constants.DefaultMaxCertificateTTLMinutes,
		MaxRequestAge:        constants.DefaultMaxRequestAge,
		MaxPolicyIDs:         constants.DefaultMaxPolicyIDs,
		EvaluatorTimeout:     constants.DefaultEvaluatorTimeout,
		ReplayWindow:         constants.DefaultMaxRequestAge,
		RateLimitDimension:   constants.RateLimitDimensionIdentity,
	}
}

// AuthorizationService decides whether a requester may receive key shares for the policy
// identifiers named in a request.
type AuthorizationService struct {
	clock     Clock
	evaluator ChainEvaluator
	limiter   RateLimitService
	replay    ReplayCache
	metrics   Metrics
	tracer    trace.Tracer
	log       logger.Logger
	policy    atomic.Pointer[Policy]
}

// AuthorizationOption configures optional collaborators.
type AuthorizationOption func(*AuthorizationService)

// WithRateLimiter enables rate limiting.
func WithRateLimiter(l RateLimitService) AuthorizationOption {
	return func(s *AuthorizationService) { s.limiter = l }
}

// WithReplayCache sets the cache used when replay protection is on.
func WithReplayCache(c ReplayCache) AuthorizationOption {
	return func(s *AuthorizationService) { s.replay = c }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) AuthorizationOption {
	return func(s *AuthorizationService) { s.metrics = m }
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) AuthorizationOption {
	return func(s *AuthorizationService) { s.tracer = t }
}

// NewAuthorizationService wires the orchestrator. Clock and evaluator are required.
func NewAuthorizationService(clock Clock, evaluator ChainEvaluator, policy Policy, log logger.Logger, opts ...AuthorizationOption) *AuthorizationService {
	s := &AuthorizationService{
		clock:     clock,
		evaluator: evaluator,
		metrics:   NoopMetrics{},
		tracer:    otel.Tracer("seal/authorization"),
		log:       log.WithComponent("authorization"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.policy.Store(&policy)
	return s
}

// Policy returns the active limits.
func (s *AuthorizationService) Policy() Policy {
	return *s.policy.Load()
}

// UpdatePolicy replaces the active limits. Requests already in flight keep the old ones.
func (s *AuthorizationService) UpdatePolicy(p Policy) {
	s.policy.Store(&p)
	s.log.Info(context.Background(), "authorization policy updated",
		logger.Int("max_ttl_min", int(p.MaxCertificateTTLMin)),
		logger.Duration("max_request_age", p.MaxRequestAge),
		logger.Int("max_policy_ids", p.MaxPolicyIDs),
		logger.Bool("replay_protection", p.ReplayProtection),
	)
}

// CheckRequest runs every check in order and stops at the first failure. Nothing after a
// failed step runs; in particular no failed request ever reaches the chain evaluator past
// an authentication error, and nothing reaches key derivation.
func (s *AuthorizationService) CheckRequest(ctx context.Context, req *models.KeyRequest, cert *models.Certificate) (*models.AuthorizedRequest, error) {
	ctx, span := s.tracer.Start(ctx, "authorization.check_request")
	defer span.End()

	policy := s.Policy()
	now := s.clock.NowMillis()

	if req == nil || cert == nil {
		return nil, s.fail(ctx, span, errors.ErrInvalidParameter.WithMessage("request and certificate are required"))
	}

	// 1. Structural parse. The scope it yields is what the certificate must be valid for.
	var call *models.ValidatedPolicyCall
	err := s.step(ctx, "authorization.parse_transaction", func(context.Context) error {
		var err error
		call, err = ParsePolicyTransaction(req.Transaction)
		if err != nil {
			return err
		}
		if policy.MaxPolicyIDs > 0 && len(call.PolicyIDs) > policy.MaxPolicyIDs {
			return errors.ErrTooManyIdentifiers.
				WithMetadata("count", len(call.PolicyIDs)).
				WithMetadata("max", policy.MaxPolicyIDs)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}
	span.SetAttributes(
		attribute.String("seal.policy_scope", call.PolicyScope.String()),
		attribute.Int("seal.policy_ids", len(call.PolicyIDs)),
	)

	// 2. Certificate, then the independent request-age bound.
	var sessionKey ed25519.PublicKey
	err = s.step(ctx, "authorization.validate_certificate", func(context.Context) error {
		sk, err := ValidateCertificate(cert, call.PolicyScope, now, policy.MaxCertificateTTLMin)
		if err != nil {
			return err
		}
		sessionKey = sk
		return checkRequestAge(cert, now, policy.MaxRequestAge)
	})
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}

	// 3. Request signature under the delegated session key.
	err = s.step(ctx, "authorization.verify_request", func(context.Context) error {
		return VerifyRequestSignature(req, sessionKey)
	})
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}

	// 4. Resource protection. Only authenticated callers consume budget.
	if err := s.step(ctx, "authorization.rate_limit", func(ctx context.Context) error {
		return s.checkRateLimit(ctx, policy, cert)
	}); err != nil {
		return nil, s.fail(ctx, span, err)
	}

	fingerprint := requestFingerprint(req)
	if policy.ReplayProtection && s.replay != nil {
		if err := s.step(ctx, "authorization.replay_check", func(ctx context.Context) error {
			seen, err := s.replay.Seen(ctx, fingerprint)
			if err != nil {
				return errors.ErrInternal.WithCause(err)
			}
			s.metrics.RecordCacheAccess("replay", seen)
			if seen {
				return errors.ErrReplayedRequest
			}
			return nil
		}); err != nil {
			return nil, s.fail(ctx, span, err)
		}
	}

	// 5. Hypothetical execution on the ledger.
	if err := s.step(ctx, "authorization.evaluate_policy", func(ctx context.Context) error {
		return s.evaluate(ctx, policy, cert.User, call)
	}); err != nil {
		return nil, s.fail(ctx, span, err)
	}

	if policy.ReplayProtection && s.replay != nil {
		fresh, err := s.replay.MarkUsed(ctx, fingerprint, policy.ReplayWindow)
		if err != nil {
			return nil, s.fail(ctx, span, errors.ErrInternal.WithCause(err))
		}
		if !fresh {
			return nil, s.fail(ctx, span, errors.ErrReplayedRequest)
		}
	}

	ids := make([]models.ObjectID, len(call.PolicyIDs))
	copy(ids, call.PolicyIDs)
	return &models.AuthorizedRequest{
		User:        cert.User,
		PolicyScope: call.PolicyScope,
		PolicyIDs:   ids,
	}, nil
}

func (s *AuthorizationService) evaluate(ctx context.Context, policy Policy, sender models.ObjectID, call *models.ValidatedPolicyCall) error {
	if policy.EvaluatorTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.EvaluatorTimeout)
		defer cancel()
	}

	start := time.Now()
	outcome, err := s.evaluator.Evaluate(ctx, sender, call)
	switch {
	case err != nil:
		s.metrics.RecordEvaluation("unavailable", time.Since(start))
		return errors.ErrEvaluatorUnavailable.WithCause(err)
	case outcome == nil:
		s.metrics.RecordEvaluation("unavailable", time.Since(start))
		return errors.ErrEvaluatorUnavailable.WithMessage("chain evaluator returned no outcome")
	case !outcome.Success:
		s.metrics.RecordEvaluation("denied", time.Since(start))
		return errors.ErrPolicyNotSatisfied.WithMetadata("reason", outcome.Reason)
	}
	s.metrics.RecordEvaluation("success", time.Since(start))
	return nil
}

func (s *AuthorizationService) checkRateLimit(ctx context.Context, policy Policy, cert *models.Certificate) error {
	if s.limiter == nil {
		return nil
	}
	key := cert.User.String()
	if policy.RateLimitDimension == constants.RateLimitDimensionSession {
		key = hex.EncodeToString(cert.SessionKey)
	}

	allowed, _, resetAt, err := s.limiter.Allow(ctx, policy.RateLimitDimension, key)
	if err != nil {
		s.log.Error(ctx, "rate limiter failed, rejecting request", err)
		return errors.ErrRateLimited.WithCause(err)
	}
	if !allowed {
		s.metrics.RecordRateLimitHit(string(policy.RateLimitDimension))
		return errors.ErrRateLimited.WithMetadata("reset_at", resetAt)
	}
	return nil
}

// step runs fn in a child span and records its error.
func (s *AuthorizationService) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, name)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(errors.CodeOf(err)))
		return err
	}
	return nil
}

func (s *AuthorizationService) fail(ctx context.Context, span trace.Span, err error) error {
	code := errors.CodeOf(err)
	span.SetStatus(codes.Error, string(code))
	s.log.Debug(ctx, "request not authorized", logger.String("code", string(code)), logger.Err(err))
	return err
}

// checkRequestAge enforces the server-side freshness bound, separate from the certificate window.
func checkRequestAge(cert *models.Certificate, now uint64, maxAge time.Duration) error {
	if maxAge <= 0 || now <= cert.CreationTime {
		return nil
	}
	if now-cert.CreationTime > uint64(maxAge.Milliseconds()) {
		return errors.ErrRequestTooOld
	}
	return nil
}

// requestFingerprint identifies a signed request. The signature commits to every request field.
func requestFingerprint(req *models.KeyRequest) string {
	sum := blake2b.Sum256(req.Signature)
	return hex.EncodeToString(sum[:])
}
