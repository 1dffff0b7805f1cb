package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunay1/seal/internal/config"
	"github.com/kunay1/seal/internal/domain/models"
	"github.com/kunay1/seal/pkg/logger"
)

var (
	scope  = models.MustParseObjectID("0x1111111111111111111111111111111111111111111111111111111111111111")
	policy = models.MustParseObjectID("0x2222222222222222222222222222222222222222222222222222222222222222")
	sender = models.MustParseObjectID("0x3333333333333333333333333333333333333333333333333333333333333333")
)

func testCall() *models.ValidatedPolicyCall {
	return &models.ValidatedPolicyCall{
		Raw:         []byte(`{"version":1}`),
		PolicyScope: scope,
		Module:      "allowlist",
		Function:    "seal_approve",
		Arguments: []models.CallArgument{
			{Kind: models.ArgumentPolicyID, ObjectID: policy},
			{Kind: models.ArgumentPure, Pure: []byte{1, 2, 3}},
		},
		PolicyIDs: []models.ObjectID{policy},
	}
}

func newTestEvaluator(t *testing.T, handler http.HandlerFunc) *RPCEvaluator {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	e, err := NewRPCEvaluator(config.ChainConfig{RPCURL: ts.URL, GasBudget: 1000, HTTPTimeout: time.Second}, nil, logger.NewNoopLogger())
	require.NoError(t, err)
	return e
}

func reply(w http.ResponseWriter, result interface{}) {
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": 1, "result": result})
}

func TestEvaluateSuccessSendsCall(t *testing.T) {
	var got rpcRequest
	var params evaluateParams
	e := newTestEvaluator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var raw struct {
			rpcRequest
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		got = raw.rpcRequest
		require.Len(t, raw.Params, 1)
		require.NoError(t, json.Unmarshal(raw.Params[0], &params))
		reply(w, map[string]string{"status": "success"})
	})

	out, err := e.Evaluate(context.Background(), sender, testCall())
	require.NoError(t, err)
	assert.True(t, out.Success)

	assert.Equal(t, evaluateMethod, got.Method)
	assert.Equal(t, sender.String(), params.Sender)
	assert.Equal(t, scope.String(), params.Package)
	assert.Equal(t, "seal_approve", params.Function)
	assert.Equal(t, uint64(1000), params.GasBudget)
	require.Len(t, params.Arguments, 2)
	assert.Equal(t, policy.String(), params.Arguments[0].Value)
	assert.Equal(t, "AQID", params.Arguments[1].Value)
}

func TestEvaluateFailureIsDenial(t *testing.T) {
	e := newTestEvaluator(t, func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]string{"status": "failure", "error": "MoveAbort(1)"})
	})
	out, err := e.Evaluate(context.Background(), sender, testCall())
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, "MoveAbort(1)", out.Reason)
}

func TestEvaluateErrorsAreNotDenials(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"http 503", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) }},
		{"rpc error", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": 1, "error": map[string]interface{}{"code": -32000, "message": "busy"}})
		}},
		{"unknown status", func(w http.ResponseWriter, r *http.Request) { reply(w, map[string]string{"status": "pending"}) }},
		{"garbage", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("not json")) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEvaluator(t, tt.handler)
			out, err := e.Evaluate(context.Background(), sender, testCall())
			assert.Error(t, err)
			assert.Nil(t, out)
		})
	}
}

func TestEvaluateHonoursContextDeadline(t *testing.T) {
	release := make(chan struct{})
	e := newTestEvaluator(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := e.Evaluate(ctx, sender, testCall())
	assert.Error(t, err)
}

func TestNewRPCEvaluatorRequiresURL(t *testing.T) {
	_, err := NewRPCEvaluator(config.ChainConfig{}, nil, logger.NewNoopLogger())
	assert.Error(t, err)
}
