package service

import (
	"context"
	"time"

	"github.com/kunay1/seal/internal/domain/models"
	"github.com/kunay1/seal/pkg/constants"
)

//go:generate mockery --name Clock --output mocks --outpkg mocks
// Clock supplies the trusted time used for every freshness check.
// Clock 提供所有新鲜度检查使用的可信时间。
type Clock interface {
	// NowMillis returns the current epoch time in milliseconds. It never decreases within a process.
	// NowMillis 返回当前的纪元毫秒时间，在进程内单调不减。
	NowMillis() uint64
}

//go:generate mockery --name ChainEvaluator --output mocks --outpkg mocks
// ChainEvaluator runs a policy call hypothetically against current ledger state.
// ChainEvaluator 针对当前账本状态假设性地执行策略调用。
type ChainEvaluator interface {
	// Evaluate reports whether executing call as sender would succeed. A returned error means the
	// evaluator could not decide; an unsuccessful outcome means the policy denied the sender.
	// Evaluate 报告以 sender 身份执行调用是否成功。返回错误表示无法判定；失败结果表示策略拒绝。
	Evaluate(ctx context.Context, sender models.ObjectID, call *models.ValidatedPolicyCall) (*models.ExecutionOutcome, error)
}

//go:generate mockery --name KeyAuthority --output mocks --outpkg mocks
// KeyAuthority derives raw key shares. It is deterministic for a fixed (scope, id) pair.
// KeyAuthority 派生原始密钥分片，对固定的 (scope, id) 对是确定性的。
type KeyAuthority interface {
	// DeriveKeyShare returns the key share for one policy identifier.
	// DeriveKeyShare 返回单个策略标识符的密钥分片。
	DeriveKeyShare(ctx context.Context, scope, id models.ObjectID) ([]byte, error)
	// MasterID identifies the master secret without revealing it.
	// MasterID 在不泄露主密钥的情况下标识主密钥。
	MasterID() string
}

// Encryptor encrypts key shares to a requester's ephemeral public key. Implementations hold no
// shared mutable state.
// Encryptor 将密钥分片加密到请求者的临时公钥。
type Encryptor interface {
	Encrypt(publicKey []byte, plaintext []byte) ([]byte, error)
}

//go:generate mockery --name RateLimitService --output mocks --outpkg mocks
// RateLimitService defines the interface for rate limiting operations.
// RateLimitService 定义了速率限制操作的接口。
type RateLimitService interface {
	// Allow checks if a request is allowed under the rate limit policy for a given dimension and key.
	// It returns whether the request is allowed, the number of remaining requests, and the time when the limit resets.
	// Allow 检查在给定维度和密钥的速率限制策略下是否允许请求。
	Allow(
		ctx context.Context,
		dimension constants.RateLimitDimension,
		key string,
	) (allowed bool, remaining int, resetAt time.Time, err error)
}

//go:generate mockery --name ReplayCache --output mocks --outpkg mocks
// ReplayCache remembers requests that already released keys.
// ReplayCache 记录已经释放过密钥的请求。
type ReplayCache interface {
	// Seen reports whether the fingerprint was already recorded.
	Seen(ctx context.Context, fingerprint string) (bool, error)
	// MarkUsed records the fingerprint for ttl. It returns false when the fingerprint was already present.
	MarkUsed(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error)
}

//go:generate mockery --name AuditService --output mocks --outpkg mocks
// AuditService defines the interface for logging security-sensitive audit events.
// AuditService 定义了用于记录安全敏感审计事件的接口。
type AuditService interface {
	// LogEvent records an audit event.
	// LogEvent 记录审计事件。
	LogEvent(ctx context.Context, event models.AuditEvent) error
}
