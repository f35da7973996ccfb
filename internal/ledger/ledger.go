package ledger

import "context"

// OpKind names a contract call. Each kind has a fixed fee (see fees.go);
// the wire message key equals the kind.
type OpKind string

const (
	OpAddGuardian              OpKind = "add_guardian"
	OpRemoveGuardian           OpKind = "remove_guardian"
	OpAddGuardianConfirm       OpKind = "add_guardian_confirm"
	OpAddGuardianConfirmCancel OpKind = "add_guardian_confirm_cancel"
	OpAddFamilyMember          OpKind = "add_family_member"
	OpRemoveFamilyMember       OpKind = "remove_family_member"
	OpExecuteRecovery          OpKind = "execute_recovery"
	OpCancelRecovery           OpKind = "cancel_recovery"
	OpGuardianApproveRequest   OpKind = "guardian_approve_request"
	OpSendTokens               OpKind = "send_tokens"
	OpInstantiate              OpKind = "instantiate"
)

// Coin is a denom/amount pair. Amounts are micro-units (1 token = 1e6).
type Coin struct {
	Denom  string `json:"denom"`
	Amount int64  `json:"amount,string"`
}

// Fee is the fixed gas/fee attachment for one operation kind.
type Fee struct {
	Gas    uint64
	Amount []Coin
}

// Execute message bodies, one per contract call.
type AddGuardianMsg struct {
	Guardian string `json:"guardian"`
}

type AddFamilyMemberMsg struct {
	FamilyMember string `json:"family_member"`
}

type ExecuteRecoveryMsg struct {
	NewOwner string `json:"new_owner"`
	Guardian string `json:"guardian"`
}

type CancelRecoveryMsg struct {
	Guardian string `json:"guardian"`
}

type GuardianApproveRequestMsg struct {
	Guardian string `json:"guardian"`
}

type SendTokensMsg struct {
	ToAddress string `json:"to_address"`
	Amount    []Coin `json:"amount"`
}

// Tx is a prepared contract execution: sender key address, target contract,
// one message body keyed by operation kind, and the attached fee.
type Tx struct {
	Sender   string
	Contract string
	Kind     OpKind
	Msg      any
	Fee      Fee
}

// TxResult is the ledger's verdict on a broadcast transaction. A non-zero
// Code means the contract rejected it; RawLog carries the ledger's diagnostic
// string unmodified so callers can pattern-match known rejections.
type TxResult struct {
	Code            uint32 `json:"code"`
	Log             string `json:"log"`
	RawLog          string `json:"raw_log"`
	ContractAddress string `json:"contract_address,omitempty"`
}

// Ledger is the byzantine-fault-tolerant execution engine. It guarantees
// atomic execution of a single message; sequencing across messages and
// contracts is the workflows' problem.
type Ledger interface {
	Broadcast(ctx context.Context, tx Tx) (TxResult, error)
	// Instantiate creates a new wallet contract owned by sender and returns
	// its address in TxResult.ContractAddress.
	Instantiate(ctx context.Context, sender string, codeID uint64, fee Fee) (TxResult, error)
	// SmartQuery runs a read-only contract query, decoding into out.
	SmartQuery(ctx context.Context, contract string, query any, out any) error
	Balance(ctx context.Context, address string) ([]Coin, error)
}
