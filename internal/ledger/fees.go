package ledger

import "fmt"

// FeeDenom is the native fee denomination.
const FeeDenom = "uluna"

// Fees were measured per operation against the deployed contract.
// Under-provisioning gets the tx rejected, over-provisioning burns funds, so
// they are a fixed lookup, never computed.
var fees = map[OpKind]Fee{
	OpAddGuardian:              {Gas: 146400, Amount: []Coin{{Denom: FeeDenom, Amount: 21960}}},
	OpRemoveGuardian:           {Gas: 146400, Amount: []Coin{{Denom: FeeDenom, Amount: 21960}}},
	OpAddGuardianConfirm:       {Gas: 146400, Amount: []Coin{{Denom: FeeDenom, Amount: 21960}}},
	OpAddGuardianConfirmCancel: {Gas: 146400, Amount: []Coin{{Denom: FeeDenom, Amount: 21960}}},
	OpAddFamilyMember:          {Gas: 150509, Amount: []Coin{{Denom: FeeDenom, Amount: 22577}}},
	OpRemoveFamilyMember:       {Gas: 150509, Amount: []Coin{{Denom: FeeDenom, Amount: 22577}}},
	OpExecuteRecovery:          {Gas: 146400, Amount: []Coin{{Denom: FeeDenom, Amount: 21960}}},
	OpCancelRecovery:           {Gas: 146400, Amount: []Coin{{Denom: FeeDenom, Amount: 21960}}},
	OpGuardianApproveRequest:   {Gas: 146400, Amount: []Coin{{Denom: FeeDenom, Amount: 21960}}},
	OpSendTokens:               {Gas: 2657235, Amount: []Coin{{Denom: FeeDenom, Amount: 398586}}},
	OpInstantiate:              {Gas: 2657235, Amount: []Coin{{Denom: FeeDenom, Amount: 398586}}},
}

// FeeFor returns the fixed fee for an operation kind.
func FeeFor(kind OpKind) (Fee, error) {
	fee, ok := fees[kind]
	if !ok {
		return Fee{}, fmt.Errorf("no fee schedule for operation %q", kind)
	}
	return fee, nil
}
