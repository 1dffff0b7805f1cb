// Package constants defines system-wide constants for the Seal key server.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ================================================================================
// Identifier and Key Sizes
// ================================================================================

const (
	// ObjectIDLength is the byte length of policy scopes, policy identifiers and user addresses
	ObjectIDLength = 32

	// EncryptionKeyLength is the byte length of an ephemeral encryption public key
	EncryptionKeyLength = 32

	// VerificationKeyLength is the byte length of an ephemeral verification key
	VerificationKeyLength = 32

	// MasterSecretLength is the byte length of the node's master secret
	MasterSecretLength = 32

	// KeyShareLength is the byte length of a derived key share
	KeyShareLength = 32

	// PolicyFunctionPrefix is the required prefix of the function a policy transaction calls
	PolicyFunctionPrefix = "seal_approve"

	// PolicyTransactionVersion is the only supported policy transaction wire version
	PolicyTransactionVersion = 1
)

// ================================================================================
// Policy Defaults
// ================================================================================

const (
	// DefaultMaxCertificateTTLMinutes bounds the lifetime a client may request for a session
	DefaultMaxCertificateTTLMinutes = 30

	// DefaultMaxRequestAge bounds how long after issuance a certificate may back a request
	DefaultMaxRequestAge = 30 * time.Minute

	// DefaultMaxPolicyIDs bounds the number of identifiers in a single request
	DefaultMaxPolicyIDs = 10

	// DefaultEvaluatorTimeout is the default deadline for a chain evaluation
	DefaultEvaluatorTimeout = 5 * time.Second

	// DefaultGasBudget is the gas budget attached to evaluation dry runs
	DefaultGasBudget = 50_000_000

	// MillisPerMinute converts certificate TTL minutes to epoch milliseconds
	MillisPerMinute = 60_000
)

// ================================================================================
// Rate Limiting Constants
// ================================================================================

// RateLimitDimension defines the key space a rate limit applies to
type RateLimitDimension string

const (
	// RateLimitDimensionIdentity limits requests per long-term identity
	RateLimitDimensionIdentity RateLimitDimension = "identity"

	// RateLimitDimensionSession limits requests per session key
	RateLimitDimensionSession RateLimitDimension = "session"
)

const (
	// DefaultRateLimitPerMinute is the default number of requests per identity per minute
	DefaultRateLimitPerMinute = 60

	// RateLimitWindow is the default rate-limit window
	RateLimitWindow = time.Minute
)

// ================================================================================
// HTTP Headers
// ================================================================================

const (
	// HeaderRequestID carries the request correlation ID
	HeaderRequestID = "X-Request-ID"

	// HeaderSDKVersion carries the client SDK version
	HeaderSDKVersion = "Client-Sdk-Version"

	// HeaderKeyServerVersion is set on every response
	HeaderKeyServerVersion = "X-KeyServer-Version"

	// HeaderRetryAfter tells clients when a rate-limited request may be retried
	HeaderRetryAfter = "Retry-After"
)

// ServiceVersion is reported to clients and in logs
const ServiceVersion = "0.4.0"

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey is a private type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyRequestID is the context key for the request ID
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyUser is the context key for the requesting user address
	ContextKeyUser ContextKey = "user"

	// ContextKeySDKVersion is the context key for the client SDK version
	ContextKeySDKVersion ContextKey = "sdk_version"
)

// ================================================================================
// Audit Event Types
// ================================================================================

// AuditEventType represents the type of an audit event
type AuditEventType string

const (
	// AuditEventKeysReleased is emitted when key shares are delivered
	AuditEventKeysReleased AuditEventType = "keys_released"

	// AuditEventRequestDenied is emitted when a request fails authorization
	AuditEventRequestDenied AuditEventType = "request_denied"
)
