package models

// CommandKind tags the variant of a transaction command.
type CommandKind string

const (
	CommandMoveCall        CommandKind = "move_call"
	CommandTransferObjects CommandKind = "transfer_objects"
	CommandSplitCoins      CommandKind = "split_coins"
	CommandMergeCoins      CommandKind = "merge_coins"
	CommandMakeMoveVec     CommandKind = "make_move_vec"
	CommandPublish         CommandKind = "publish"
	CommandUpgrade         CommandKind = "upgrade"
)

// ArgumentKind tags the variant of a call argument.
type ArgumentKind string

const (
	// ArgumentPolicyID names a policy identifier whose key is requested.
	ArgumentPolicyID ArgumentKind = "policy_id"
	// ArgumentObject references an on-chain object the call reads.
	ArgumentObject ArgumentKind = "object"
	// ArgumentPure carries opaque base64 bytes passed through to the call.
	ArgumentPure ArgumentKind = "pure"
)

// PolicyTransaction is the wire form of the client-supplied authorization transaction.
// Only a narrow subset of shapes passes validation; see service.TransactionValidator.
type PolicyTransaction struct {
	Version  int             `json:"version"`
	Commands []PolicyCommand `json:"commands"`
}

// PolicyCommand is one command of a PolicyTransaction. Fields other than Kind are only
// meaningful for move_call; any other kind is rejected before they are read.
type PolicyCommand struct {
	Kind      CommandKind      `json:"kind"`
	Package   string           `json:"package,omitempty"`
	Module    string           `json:"module,omitempty"`
	Function  string           `json:"function,omitempty"`
	Arguments []PolicyArgument `json:"arguments,omitempty"`
}

// PolicyArgument is one argument of a move_call.
type PolicyArgument struct {
	Kind  ArgumentKind `json:"kind"`
	Value string       `json:"value"`
}

// CallArgument is a parsed, validated argument.
type CallArgument struct {
	Kind     ArgumentKind
	ObjectID ObjectID
	Pure     []byte
}

// ValidatedPolicyCall is the structural view of a policy transaction that passed validation.
type ValidatedPolicyCall struct {
	// Raw is the exact transaction bytes the client signed.
	Raw []byte
	// PolicyScope is the package the call targets.
	PolicyScope ObjectID
	Module      string
	Function    string
	// Arguments in call order.
	Arguments []CallArgument
	// PolicyIDs in argument order. Order determines the order of key shares in the response.
	PolicyIDs []ObjectID
	// Objects are the object arguments the call would touch, in argument order.
	Objects []ObjectID
}

// ExecutionOutcome is the result of a hypothetical execution of a policy call.
type ExecutionOutcome struct {
	Success bool
	// Reason is the evaluator's abort description when Success is false.
	Reason string
}
