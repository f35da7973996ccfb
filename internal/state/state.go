package state

import "mochifi/internal/domain"

// State is the session's in-memory view. It only changes through Reduce.
//
// The pending request queues are FIFO, deduplicated by ward address: a repeat
// invite from the same ward is dropped, invites from distinct wards queue in
// arrival order. The "Should*" flags are one-shot triggers: set by the
// notification channel, consumed (reset) by exactly one workflow step, and
// never persisted.
type State struct {
	Identity         domain.Identity
	Guardians        []domain.User
	PendingGuardians []domain.User
	Wards            []domain.User
	IsRecovering     bool
	IsWalletFunded   bool
	GuardianRequests []domain.GuardianRequest
	RecoveryRequests []domain.RecoveryRequest

	ShouldReloadGuardians       bool
	ShouldCheckRecoveryProgress bool
	ShouldRefreshBalance        bool
}

type ActionKind string

const (
	ActionSetIdentity                    ActionKind = "setIdentity"
	ActionSetGuardians                   ActionKind = "setGuardians"
	ActionSetWards                       ActionKind = "setWards"
	ActionSetIsRecovering                ActionKind = "setIsRecovering"
	ActionSetIsWalletFunded              ActionKind = "setIsWalletFunded"
	ActionPushGuardianRequest            ActionKind = "pushGuardianRequest"
	ActionRemoveGuardianRequest          ActionKind = "removeGuardianRequest"
	ActionPushRecoveryRequest            ActionKind = "pushRecoveryRequest"
	ActionRemoveRecoveryRequest          ActionKind = "removeRecoveryRequest"
	ActionSetShouldReloadGuardians       ActionKind = "setShouldReloadGuardians"
	ActionSetShouldCheckRecoveryProgress ActionKind = "setShouldCheckRecoveryProgress"
	ActionSetShouldRefreshBalance        ActionKind = "setShouldRefreshBalance"
)

// Action carries one state transition. Only the fields relevant to Kind are
// read by the reducer.
type Action struct {
	Kind             ActionKind
	Identity         domain.Identity
	Guardians        []domain.User
	PendingGuardians []domain.User
	Wards            []domain.User
	Flag             bool
	GuardianRequest  domain.GuardianRequest
	RecoveryRequest  domain.RecoveryRequest
	WardAddress      string
}

func SetIdentity(identity domain.Identity) Action {
	return Action{Kind: ActionSetIdentity, Identity: identity}
}

func SetGuardians(confirmed, pending []domain.User) Action {
	return Action{Kind: ActionSetGuardians, Guardians: confirmed, PendingGuardians: pending}
}

func SetWards(wards []domain.User) Action {
	return Action{Kind: ActionSetWards, Wards: wards}
}

func SetIsRecovering(v bool) Action {
	return Action{Kind: ActionSetIsRecovering, Flag: v}
}

func SetIsWalletFunded(v bool) Action {
	return Action{Kind: ActionSetIsWalletFunded, Flag: v}
}

func PushGuardianRequest(req domain.GuardianRequest) Action {
	return Action{Kind: ActionPushGuardianRequest, GuardianRequest: req}
}

func RemoveGuardianRequest(wardAddress string) Action {
	return Action{Kind: ActionRemoveGuardianRequest, WardAddress: wardAddress}
}

func PushRecoveryRequest(req domain.RecoveryRequest) Action {
	return Action{Kind: ActionPushRecoveryRequest, RecoveryRequest: req}
}

func RemoveRecoveryRequest(wardAddress string) Action {
	return Action{Kind: ActionRemoveRecoveryRequest, WardAddress: wardAddress}
}

func SetShouldReloadGuardians(v bool) Action {
	return Action{Kind: ActionSetShouldReloadGuardians, Flag: v}
}

func SetShouldCheckRecoveryProgress(v bool) Action {
	return Action{Kind: ActionSetShouldCheckRecoveryProgress, Flag: v}
}

func SetShouldRefreshBalance(v bool) Action {
	return Action{Kind: ActionSetShouldRefreshBalance, Flag: v}
}
