package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
)

// FakeLedger executes the wallet contract's semantics in process. It backs
// unit and scenario tests and the daemon's dev mode, so the workflows run
// against the same accept/reject behavior the chain would produce.
type FakeLedger struct {
	mu        sync.Mutex
	contracts map[string]*contractState
	balances  map[string][]Coin
	failNext  map[OpKind]error
	seq       int
}

type contractState struct {
	owner           string
	pendingGuard    []string
	guardians       []string
	isRecovering    bool
	recoveryAddress string
	signers         []string
	family          []string
}

func NewFakeLedger() *FakeLedger {
	return &FakeLedger{
		contracts: make(map[string]*contractState),
		balances:  make(map[string][]Coin),
		failNext:  make(map[OpKind]error),
	}
}

// FailNext makes the next broadcast of kind fail at the transport level with
// err. Used to exercise network-failure and inconsistent-handshake paths.
func (f *FakeLedger) FailNext(kind OpKind, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext[kind] = err
}

// SetBalance fixes the balance of an account address.
func (f *FakeLedger) SetBalance(address string, coins ...Coin) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[address] = coins
}

func (f *FakeLedger) Instantiate(_ context.Context, sender string, _ uint64, _ Fee) (TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	addr := fmt.Sprintf("terra1wallet%06d", f.seq)
	f.contracts[addr] = &contractState{owner: sender, recoveryAddress: sender}
	return TxResult{ContractAddress: addr}, nil
}

func (f *FakeLedger) Broadcast(_ context.Context, tx Tx) (TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failNext[tx.Kind]; err != nil {
		delete(f.failNext, tx.Kind)
		return TxResult{}, err
	}
	c, ok := f.contracts[tx.Contract]
	if !ok {
		return TxResult{}, fmt.Errorf("unknown contract %s", tx.Contract)
	}

	reject := func(reason string) (TxResult, error) {
		return TxResult{
			Code:   4,
			RawLog: fmt.Sprintf("execute wasm contract failed: generic: %s: failed to execute message; message index: 0", reason),
		}, nil
	}
	unauthorized := func() (TxResult, error) {
		return TxResult{Code: 4, RawLog: "execute wasm contract failed: unauthorized"}, nil
	}

	switch tx.Kind {
	case OpAddGuardian:
		msg := tx.Msg.(AddGuardianMsg)
		if tx.Sender != c.owner {
			return unauthorized()
		}
		// The deployed contract swaps these two diagnostics; preserved as-is
		// because clients pattern-match the strings.
		if slices.Contains(c.guardians, msg.Guardian) {
			return reject(reasonGuardianConfirmed)
		}
		if slices.Contains(c.pendingGuard, msg.Guardian) {
			return reject(reasonGuardianAlreadyAdded)
		}
		c.pendingGuard = append(c.pendingGuard, msg.Guardian)

	case OpAddGuardianConfirm:
		msg := tx.Msg.(AddGuardianMsg)
		if !slices.Contains(c.pendingGuard, msg.Guardian) {
			return reject(reasonNotInPendingList)
		}
		c.pendingGuard = remove(c.pendingGuard, msg.Guardian)
		c.guardians = append(c.guardians, msg.Guardian)

	case OpAddGuardianConfirmCancel:
		msg := tx.Msg.(AddGuardianMsg)
		if tx.Sender != c.owner {
			return unauthorized()
		}
		if !slices.Contains(c.pendingGuard, msg.Guardian) {
			return reject(reasonNotInPendingList)
		}
		c.pendingGuard = remove(c.pendingGuard, msg.Guardian)

	case OpRemoveGuardian:
		msg := tx.Msg.(AddGuardianMsg)
		if tx.Sender != c.owner {
			return unauthorized()
		}
		c.guardians = remove(c.guardians, msg.Guardian)

	case OpAddFamilyMember:
		msg := tx.Msg.(AddFamilyMemberMsg)
		if tx.Sender != c.owner {
			return unauthorized()
		}
		if slices.Contains(c.family, msg.FamilyMember) {
			return reject(reasonFamilyAlreadyAdded)
		}
		c.family = append(c.family, msg.FamilyMember)

	case OpRemoveFamilyMember:
		msg := tx.Msg.(AddFamilyMemberMsg)
		if tx.Sender != c.owner {
			return unauthorized()
		}
		c.family = remove(c.family, msg.FamilyMember)

	case OpExecuteRecovery:
		msg := tx.Msg.(ExecuteRecoveryMsg)
		if !slices.Contains(c.guardians, msg.Guardian) {
			return unauthorized()
		}
		if c.isRecovering {
			return reject(reasonAlreadyRecovering)
		}
		if len(c.guardians) == 1 {
			c.owner = msg.NewOwner
		} else {
			c.signers = []string{msg.Guardian}
			c.isRecovering = true
			c.recoveryAddress = msg.NewOwner
		}

	case OpCancelRecovery:
		msg := tx.Msg.(CancelRecoveryMsg)
		if tx.Sender != c.owner && !slices.Contains(c.guardians, msg.Guardian) {
			return unauthorized()
		}
		c.isRecovering = false
		c.signers = nil

	case OpGuardianApproveRequest:
		msg := tx.Msg.(GuardianApproveRequestMsg)
		if !c.isRecovering {
			return reject(reasonNotRecovering)
		}
		if !slices.Contains(c.guardians, msg.Guardian) {
			return unauthorized()
		}
		c.signers = append(c.signers, msg.Guardian)
		if len(c.signers) > len(c.guardians)/2 {
			c.owner = c.recoveryAddress
			c.isRecovering = false
			c.signers = nil
		}

	case OpSendTokens:
		msg := tx.Msg.(SendTokensMsg)
		if tx.Sender != c.owner {
			return unauthorized()
		}
		if err := f.transferLocked(tx.Contract, msg.ToAddress, msg.Amount); err != nil {
			return reject(err.Error())
		}

	default:
		return TxResult{}, fmt.Errorf("unsupported operation %s", tx.Kind)
	}

	return TxResult{}, nil
}

func (f *FakeLedger) SmartQuery(_ context.Context, contract string, query any, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.contracts[contract]
	if !ok {
		return fmt.Errorf("unknown contract %s", contract)
	}

	raw, err := json.Marshal(query)
	if err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return err
	}

	var result any
	switch {
	case hasKey(keys, "get_owner"):
		result = OwnerResult{Owner: c.owner}
	case hasKey(keys, "get_recovery_status"):
		result = RecoveryStatusResult{IsRecovering: c.isRecovering}
	case hasKey(keys, "get_guardians"):
		result = GuardiansResult{Guardians: slices.Clone(c.guardians)}
	case hasKey(keys, "get_pending_guardians"):
		result = GuardiansResult{Guardians: slices.Clone(c.pendingGuard)}
	case hasKey(keys, "get_signers"):
		result = SignersResult{Signers: slices.Clone(c.signers)}
	case hasKey(keys, "get_family_members"):
		result = FamilyResult{FamilyMembers: slices.Clone(c.family)}
	default:
		return fmt.Errorf("unsupported query %s", raw)
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, out)
}

func (f *FakeLedger) Balance(_ context.Context, address string) ([]Coin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.balances[address]), nil
}

func (f *FakeLedger) transferLocked(from, to string, amount []Coin) error {
	for _, coin := range amount {
		available := int64(0)
		for _, held := range f.balances[from] {
			if held.Denom == coin.Denom {
				available = held.Amount
			}
		}
		if available < coin.Amount {
			return fmt.Errorf("insufficient funds")
		}
	}
	for _, coin := range amount {
		f.balances[from] = addCoin(f.balances[from], coin.Denom, -coin.Amount)
		f.balances[to] = addCoin(f.balances[to], coin.Denom, coin.Amount)
	}
	return nil
}

func addCoin(coins []Coin, denom string, delta int64) []Coin {
	for i := range coins {
		if coins[i].Denom == denom {
			coins[i].Amount += delta
			return coins
		}
	}
	return append(coins, Coin{Denom: denom, Amount: delta})
}

func remove(list []string, v string) []string {
	out := list[:0]
	for _, item := range list {
		if item != v {
			out = append(out, item)
		}
	}
	return out
}

func hasKey(keys map[string]json.RawMessage, key string) bool {
	_, ok := keys[key]
	return ok
}
