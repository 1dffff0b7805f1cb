package service

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kunay1/seal/internal/domain/models"
	"github.com/kunay1/seal/pkg/constants"
	"github.com/kunay1/seal/pkg/errors"
)

// ParsePolicyTransaction turns raw transaction bytes into a ValidatedPolicyCall. It is pure and
// never consults ledger state.
//
// Accepted shape: exactly one move_call to a seal_approve* function whose arguments are
// policy_id, object or pure values. Anything that could move value, publish or upgrade code is
// rejected outright.
func ParsePolicyTransaction(raw []byte) (*models.ValidatedPolicyCall, error) {
	if len(raw) == 0 {
		return nil, errors.ErrUnsupportedTransactionShape.WithMessage("policy transaction is empty")
	}

	var tx models.PolicyTransaction
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&tx); err != nil {
		return nil, errors.ErrUnsupportedTransactionShape.WithCause(err)
	}
	if dec.More() {
		return nil, errors.ErrUnsupportedTransactionShape.WithMessage("trailing data after policy transaction")
	}

	if tx.Version != constants.PolicyTransactionVersion {
		return nil, errors.ErrUnsupportedTransactionShape.
			WithMessage(fmt.Sprintf("unsupported policy transaction version %d", tx.Version))
	}

	for i, cmd := range tx.Commands {
		if cmd.Kind != models.CommandMoveCall {
			return nil, errors.ErrUnsupportedTransactionShape.
				WithMessage(fmt.Sprintf("command %d has disallowed kind %q", i, cmd.Kind))
		}
	}
	if len(tx.Commands) != 1 {
		return nil, errors.ErrUnsupportedTransactionShape.
			WithMessage(fmt.Sprintf("policy transaction must contain exactly one call, got %d", len(tx.Commands)))
	}

	return parseMoveCall(raw, &tx.Commands[0])
}

func parseMoveCall(raw []byte, cmd *models.PolicyCommand) (*models.ValidatedPolicyCall, error) {
	scope, err := models.ParseObjectID(cmd.Package)
	if err != nil {
		return nil, errors.ErrMalformedIdentifier.WithMessage("call package is malformed").WithCause(err)
	}
	if !isIdentifier(cmd.Module) {
		return nil, errors.ErrUnsupportedTransactionShape.WithMessage("call module name is invalid")
	}
	if !isIdentifier(cmd.Function) || !strings.HasPrefix(cmd.Function, constants.PolicyFunctionPrefix) {
		return nil, errors.ErrUnsupportedTransactionShape.
			WithMessage(fmt.Sprintf("called function must start with %s", constants.PolicyFunctionPrefix))
	}

	call := &models.ValidatedPolicyCall{
		Raw:         append([]byte(nil), raw...),
		PolicyScope: scope,
		Module:      cmd.Module,
		Function:    cmd.Function,
		Arguments:   make([]models.CallArgument, 0, len(cmd.Arguments)),
	}

	for i, arg := range cmd.Arguments {
		switch arg.Kind {
		case models.ArgumentPolicyID, models.ArgumentObject:
			id, err := models.ParseObjectID(arg.Value)
			if err != nil {
				return nil, errors.ErrMalformedIdentifier.
					WithMessage(fmt.Sprintf("argument %d is not a valid identifier", i)).
					WithCause(err)
			}
			call.Arguments = append(call.Arguments, models.CallArgument{Kind: arg.Kind, ObjectID: id})
			if arg.Kind == models.ArgumentPolicyID {
				call.PolicyIDs = append(call.PolicyIDs, id)
			} else {
				call.Objects = append(call.Objects, id)
			}
		case models.ArgumentPure:
			b, err := base64.StdEncoding.DecodeString(arg.Value)
			if err != nil {
				return nil, errors.ErrUnsupportedTransactionShape.
					WithMessage(fmt.Sprintf("argument %d is not valid base64", i)).
					WithCause(err)
			}
			call.Arguments = append(call.Arguments, models.CallArgument{Kind: arg.Kind, Pure: b})
		default:
			return nil, errors.ErrUnsupportedTransactionShape.
				WithMessage(fmt.Sprintf("argument %d has unsupported kind %q", i, arg.Kind))
		}
	}

	if len(call.PolicyIDs) == 0 {
		return nil, errors.ErrEmptyPolicySet
	}
	return call, nil
}

// isIdentifier reports whether s is a Move identifier: a letter followed by letters, digits or
// underscores.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r == '_' || (r >= '0' && r <= '9')):
		default:
			return false
		}
	}
	return true
}
