package sealclient

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Argument is one argument of a policy call.
type Argument struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// PolicyID names a policy identifier whose key share is requested.
func PolicyID(id string) Argument { return Argument{Kind: "policy_id", Value: id} }

// Object references an on-chain object the policy reads.
func Object(id string) Argument { return Argument{Kind: "object", Value: id} }

// Pure passes opaque bytes to the policy function.
func Pure(b []byte) Argument {
	return Argument{Kind: "pure", Value: base64.StdEncoding.EncodeToString(b)}
}

type moveCall struct {
	Kind      string     `json:"kind"`
	Package   string     `json:"package"`
	Module    string     `json:"module"`
	Function  string     `json:"function"`
	Arguments []Argument `json:"arguments"`
}

type policyTransaction struct {
	Version  int        `json:"version"`
	Commands []moveCall `json:"commands"`
}

// BuildPolicyTransaction encodes a single seal_approve* call on pkg.
func BuildPolicyTransaction(pkg, module, function string, args ...Argument) ([]byte, error) {
	if !strings.HasPrefix(function, "seal_approve") {
		return nil, fmt.Errorf("sealclient: function %q must start with seal_approve", function)
	}
	return json.Marshal(policyTransaction{
		Version: 1,
		Commands: []moveCall{{
			Kind:      "move_call",
			Package:   pkg,
			Module:    module,
			Function:  function,
			Arguments: args,
		}},
	})
}
