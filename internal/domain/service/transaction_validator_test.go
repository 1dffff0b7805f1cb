package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunay1/seal/internal/domain/models"
	"github.com/kunay1/seal/internal/domain/service"
	"github.com/kunay1/seal/pkg/errors"
)

func TestParsePolicyTransactionPreservesOrder(t *testing.T) {
	raw := policyTx(t, testScope, idC, idA, idB)

	call, err := service.ParsePolicyTransaction(raw)
	require.NoError(t, err)

	assert.Equal(t, testScope, call.PolicyScope)
	assert.Equal(t, "allowlist", call.Module)
	assert.Equal(t, "seal_approve", call.Function)
	assert.Equal(t, []models.ObjectID{idC, idA, idB}, call.PolicyIDs)
	assert.Equal(t, raw, call.Raw)
	require.Len(t, call.Arguments, 4)
	assert.Equal(t, []byte{1}, call.Arguments[3].Pure)
}

func TestParsePolicyTransactionObjectsAreNotPolicyIDs(t *testing.T) {
	raw := []byte(`{"version":1,"commands":[{"kind":"move_call","package":"` + testScope.String() +
		`","module":"subscription","function":"seal_approve_sub","arguments":[` +
		`{"kind":"policy_id","value":"` + idA.String() + `"},` +
		`{"kind":"object","value":"` + idB.String() + `"}]}]}`)

	call, err := service.ParsePolicyTransaction(raw)
	require.NoError(t, err)
	assert.Equal(t, []models.ObjectID{idA}, call.PolicyIDs)
	assert.Equal(t, []models.ObjectID{idB}, call.Objects)
}

func TestParsePolicyTransactionRejects(t *testing.T) {
	scope := testScope.String()
	id := idA.String()
	call := func(fn, args string) string {
		return `{"kind":"move_call","package":"` + scope + `","module":"m","function":"` + fn + `","arguments":[` + args + `]}`
	}
	okArg := `{"kind":"policy_id","value":"` + id + `"}`

	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"empty", ``, errors.ErrUnsupportedTransactionShape},
		{"not json", `hello`, errors.ErrUnsupportedTransactionShape},
		{"trailing data", `{"version":1,"commands":[` + call("seal_approve", okArg) + `]}{}`, errors.ErrUnsupportedTransactionShape},
		{"unknown field", `{"version":1,"gas":5,"commands":[` + call("seal_approve", okArg) + `]}`, errors.ErrUnsupportedTransactionShape},
		{"wrong version", `{"version":2,"commands":[` + call("seal_approve", okArg) + `]}`, errors.ErrUnsupportedTransactionShape},
		{"no commands", `{"version":1,"commands":[]}`, errors.ErrUnsupportedTransactionShape},
		{"two calls", `{"version":1,"commands":[` + call("seal_approve", okArg) + `,` + call("seal_approve", okArg) + `]}`, errors.ErrUnsupportedTransactionShape},
		{"transfer", `{"version":1,"commands":[` + call("seal_approve", okArg) + `,{"kind":"transfer_objects"}]}`, errors.ErrUnsupportedTransactionShape},
		{"publish alone", `{"version":1,"commands":[{"kind":"publish"}]}`, errors.ErrUnsupportedTransactionShape},
		{"upgrade alone", `{"version":1,"commands":[{"kind":"upgrade"}]}`, errors.ErrUnsupportedTransactionShape},
		{"unknown kind", `{"version":1,"commands":[{"kind":"bogus"}]}`, errors.ErrUnsupportedTransactionShape},
		{"wrong function", `{"version":1,"commands":[` + call("transfer", okArg) + `]}`, errors.ErrUnsupportedTransactionShape},
		{"bad module", `{"version":1,"commands":[{"kind":"move_call","package":"` + scope + `","module":"9m","function":"seal_approve","arguments":[` + okArg + `]}]}`, errors.ErrUnsupportedTransactionShape},
		{"bad package", `{"version":1,"commands":[{"kind":"move_call","package":"0x2","module":"m","function":"seal_approve","arguments":[` + okArg + `]}]}`, errors.ErrMalformedIdentifier},
		{"short policy id", `{"version":1,"commands":[` + call("seal_approve", `{"kind":"policy_id","value":"0x1234"}`) + `]}`, errors.ErrMalformedIdentifier},
		{"uppercase policy id", `{"version":1,"commands":[` + call("seal_approve", `{"kind":"policy_id","value":"0x`+"AA"+id[4:]+`"}`) + `]}`, errors.ErrMalformedIdentifier},
		{"unprefixed policy id", `{"version":1,"commands":[` + call("seal_approve", `{"kind":"policy_id","value":"`+id[2:]+`"}`) + `]}`, errors.ErrMalformedIdentifier},
		{"bad object", `{"version":1,"commands":[` + call("seal_approve", okArg+`,{"kind":"object","value":"0xzz"}`) + `]}`, errors.ErrMalformedIdentifier},
		{"bad pure", `{"version":1,"commands":[` + call("seal_approve", okArg+`,{"kind":"pure","value":"!!"}`) + `]}`, errors.ErrUnsupportedTransactionShape},
		{"unknown argument", `{"version":1,"commands":[` + call("seal_approve", okArg+`,{"kind":"gas","value":""}`) + `]}`, errors.ErrUnsupportedTransactionShape},
		{"no policy ids", `{"version":1,"commands":[` + call("seal_approve", `{"kind":"pure","value":"AQ=="}`) + `]}`, errors.ErrEmptyPolicySet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, err := service.ParsePolicyTransaction([]byte(tt.raw))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, call)
		})
	}
}

func TestParsePolicyTransactionIsDeterministic(t *testing.T) {
	raw := policyTx(t, testScope, idA, idB)
	a, err := service.ParsePolicyTransaction(raw)
	require.NoError(t, err)
	b, err := service.ParsePolicyTransaction(raw)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
