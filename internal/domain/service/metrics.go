// Package service defines the key-release protocol: certificate and request verification,
// policy transaction validation, the authorization orchestrator and the response builder.
package service

import (
	"time"
)

// Metrics defines the interface for collecting business metrics.
// This abstraction allows the domain to remain independent of the specific monitoring implementation (e.g., Prometheus).
// Metrics 定义了收集业务指标的接口。
type Metrics interface {
	// RecordFetchKey records the outcome of one key request. errorCode is empty on success.
	// RecordFetchKey 记录一次密钥请求的结果。
	RecordFetchKey(success bool, errorCode string, identifiers int, duration time.Duration)

	// RecordEvaluation records the latency and status of a chain evaluator call.
	// RecordEvaluation 记录链上评估调用的延迟和状态。
	RecordEvaluation(outcome string, duration time.Duration)

	// RecordKeyDerivation records the latency of deriving and sealing one response.
	// RecordKeyDerivation 记录派生并加密一个响应的延迟。
	RecordKeyDerivation(success bool, shares int, duration time.Duration)

	// RecordRateLimitHit records an event when a rate limit is triggered.
	// RecordRateLimitHit 记录触发速率限制的事件。
	RecordRateLimitHit(dimension string)

	// RecordCacheAccess records a cache hit or miss.
	// RecordCacheAccess 记录缓存命中或未命中。
	RecordCacheAccess(cacheType string, hit bool)

	// RecordVaultAPI records the latency and error status of a Vault API call.
	// RecordVaultAPI 记录 Vault API 调用的延迟和错误状态。
	RecordVaultAPI(operation string, duration time.Duration, err error)
}

// NoopMetrics discards every observation.
type NoopMetrics struct{}

func (NoopMetrics) RecordFetchKey(bool, string, int, time.Duration) {}
func (NoopMetrics) RecordEvaluation(string, time.Duration) {}
func (NoopMetrics) RecordKeyDerivation(bool, int, time.Duration) {}
func (NoopMetrics) RecordRateLimitHit(string) {}
func (NoopMetrics) RecordCacheAccess(string, bool) {}
func (NoopMetrics) RecordVaultAPI(string, time.Duration, error) {}
