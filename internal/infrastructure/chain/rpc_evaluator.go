// Package chain talks to a full node to dry-run policy transactions.
package chain

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/kunay1/seal/internal/config"
	"github.com/kunay1/seal/internal/domain/models"
	"github.com/kunay1/seal/internal/domain/service"
	"github.com/kunay1/seal/pkg/logger"
)

var _ service.ChainEvaluator = (*RPCEvaluator)(nil)

const (
	evaluateMethod   = "seal_evaluatePolicy"
	maxResponseBytes = 1 << 20

	statusSuccess = "success"
	statusFailure = "failure"
)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type evaluateParams struct {
	Sender    string        `json:"sender"`
	TxBytes   string        `json:"tx_bytes"`
	Package   string        `json:"package"`
	Module    string        `json:"module"`
	Function  string        `json:"function"`
	Arguments []rpcArgument `json:"arguments"`
	GasBudget uint64        `json:"gas_budget"`
}

type rpcArgument struct {
	Kind  models.ArgumentKind `json:"kind"`
	Value string              `json:"value"`
}

type evaluateResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// RPCEvaluator dry-runs a validated policy call on a full node over JSON-RPC.
// Transport failures, RPC errors and unknown statuses are returned as errors; only an explicit
// "failure" status is a denial.
type RPCEvaluator struct {
	url       string
	gasBudget uint64
	httpDo    func(*http.Request) (*http.Response, error)
	nextID    atomic.Uint64
	logger    logger.Logger
}

// NewRPCEvaluator creates an evaluator for cfg.RPCURL. httpClient may be nil.
// Evaluation metrics are recorded by the caller.
func NewRPCEvaluator(cfg config.ChainConfig, httpClient *http.Client, log logger.Logger) (*RPCEvaluator, error) {
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return nil, errors.New("chain rpc url is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return &RPCEvaluator{
		url:       cfg.RPCURL,
		gasBudget: cfg.GasBudget,
		httpDo:    httpClient.Do,
		logger:    log.WithComponent("RPCEvaluator"),
	}, nil
}

// Evaluate implements service.ChainEvaluator.
func (e *RPCEvaluator) Evaluate(ctx context.Context, sender models.ObjectID, call *models.ValidatedPolicyCall) (*models.ExecutionOutcome, error) {
	outcome, err := e.evaluate(ctx, sender, call)
	if err != nil {
		e.logger.Warn(ctx, "Policy evaluation failed", logger.String("sender", sender.String()), logger.Err(err))
	}
	return outcome, err
}

func (e *RPCEvaluator) evaluate(ctx context.Context, sender models.ObjectID, call *models.ValidatedPolicyCall) (*models.ExecutionOutcome, error) {
	if call == nil {
		return nil, errors.New("nil policy call")
	}

	args := make([]rpcArgument, len(call.Arguments))
	for i, a := range call.Arguments {
		args[i] = rpcArgument{Kind: a.Kind}
		if a.Kind == models.ArgumentPure {
			args[i].Value = base64.StdEncoding.EncodeToString(a.Pure)
		} else {
			args[i].Value = a.ObjectID.String()
		}
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      e.nextID.Add(1),
		Method:  evaluateMethod,
		Params: []interface{}{evaluateParams{
			Sender:    sender.String(),
			TxBytes:   base64.StdEncoding.EncodeToString(call.Raw),
			Package:   call.PolicyScope.String(),
			Module:    call.Module,
			Function:  call.Function,
			Arguments: args,
			GasBudget: e.gasBudget,
		}},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpDo(req)
	if err != nil {
		return nil, fmt.Errorf("chain rpc: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("chain rpc: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("chain rpc: unexpected status %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, fmt.Errorf("chain rpc: decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("chain rpc: error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	var result evaluateResult
	if err := json.Unmarshal(rpcResp.Result, &result); err != nil {
		return nil, fmt.Errorf("chain rpc: decode result: %w", err)
	}

	switch result.Status {
	case statusSuccess:
		return &models.ExecutionOutcome{Success: true}, nil
	case statusFailure:
		return &models.ExecutionOutcome{Success: false, Reason: result.Error}, nil
	default:
		return nil, fmt.Errorf("chain rpc: unknown status %q", result.Status)
	}
}
