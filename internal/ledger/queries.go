package ledger

import "context"

// One result type per query kind; the contract's JSON shapes are pinned here
// so mismatches fail at decode time instead of deep inside a workflow.
type OwnerResult struct {
	Owner string `json:"owner"`
}

type RecoveryStatusResult struct {
	IsRecovering bool `json:"is_recovering"`
}

type GuardiansResult struct {
	Guardians []string `json:"guardians"`
}

type SignersResult struct {
	Signers []string `json:"signers"`
}

type FamilyResult struct {
	FamilyMembers []string `json:"family_members"`
}

func (o *Orchestrator) Owner(ctx context.Context, contract string) (string, error) {
	var out OwnerResult
	if err := o.ledger.SmartQuery(ctx, contract, map[string]any{"get_owner": struct{}{}}, &out); err != nil {
		return "", err
	}
	return out.Owner, nil
}

func (o *Orchestrator) RecoveryStatus(ctx context.Context, contract string) (bool, error) {
	var out RecoveryStatusResult
	if err := o.ledger.SmartQuery(ctx, contract, map[string]any{"get_recovery_status": struct{}{}}, &out); err != nil {
		return false, err
	}
	return out.IsRecovering, nil
}

func (o *Orchestrator) Guardians(ctx context.Context, contract string) ([]string, error) {
	var out GuardiansResult
	if err := o.ledger.SmartQuery(ctx, contract, map[string]any{"get_guardians": struct{}{}}, &out); err != nil {
		return nil, err
	}
	return out.Guardians, nil
}

// PendingGuardians lists invited-but-unconfirmed guardians. The contract
// reuses the guardians response shape for this query.
func (o *Orchestrator) PendingGuardians(ctx context.Context, contract string) ([]string, error) {
	var out GuardiansResult
	if err := o.ledger.SmartQuery(ctx, contract, map[string]any{"get_pending_guardians": struct{}{}}, &out); err != nil {
		return nil, err
	}
	return out.Guardians, nil
}

func (o *Orchestrator) Signers(ctx context.Context, contract string) ([]string, error) {
	var out SignersResult
	if err := o.ledger.SmartQuery(ctx, contract, map[string]any{"get_signers": struct{}{}}, &out); err != nil {
		return nil, err
	}
	return out.Signers, nil
}

func (o *Orchestrator) FamilyMembers(ctx context.Context, contract string) ([]string, error) {
	var out FamilyResult
	if err := o.ledger.SmartQuery(ctx, contract, map[string]any{"get_family_members": struct{}{}}, &out); err != nil {
		return nil, err
	}
	return out.FamilyMembers, nil
}

func (o *Orchestrator) Balance(ctx context.Context, address string) ([]Coin, error) {
	return o.ledger.Balance(ctx, address)
}
