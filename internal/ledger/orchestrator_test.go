package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

type OrchestratorSuite struct {
	suite.Suite
	fake *FakeLedger
	orch *Orchestrator
	ctx  context.Context
}

func (s *OrchestratorSuite) SetupTest() {
	s.fake = NewFakeLedger()
	var err error
	s.orch, err = New(s.fake)
	s.Require().NoError(err)
	s.ctx = context.Background()
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) newWallet(owner string) string {
	contract, err := s.orch.Instantiate(s.ctx, owner)
	s.Require().NoError(err)
	return contract
}

// TestConstructor verifies the nil-ledger guard and option application.
func (s *OrchestratorSuite) TestConstructor() {
	_, err := New(nil)
	s.Error(err)

	o, err := New(s.fake, WithWalletCodeID(7))
	s.Require().NoError(err)
	s.Equal(uint64(7), o.codeID)
}

// TestErrorClassification verifies the transport/rejection split and the
// known-reason helpers.
func (s *OrchestratorSuite) TestErrorClassification() {
	contract := s.newWallet("terra1owner")

	s.Run("transport failures wrap ErrNetwork", func() {
		s.fake.FailNext(OpAddGuardian, errors.New("connection refused"))
		_, err := s.orch.Execute(s.ctx, "terra1owner", contract, OpAddGuardian, AddGuardianMsg{Guardian: "terra1g"})
		s.Require().ErrorIs(err, ErrNetwork)
		_, rejected := AsRejected(err)
		s.False(rejected)
	})

	s.Run("contract rejections carry the raw diagnostic", func() {
		_, err := s.orch.Execute(s.ctx, "terra1stranger", contract, OpAddGuardian, AddGuardianMsg{Guardian: "terra1g"})
		re, ok := AsRejected(err)
		s.Require().True(ok)
		s.Equal(OpAddGuardian, re.Op)
		s.Contains(re.Reason, "unauthorized")
		s.False(errors.Is(err, ErrNetwork))
	})

	s.Run("unknown op has no fee", func() {
		_, err := s.orch.Execute(s.ctx, "terra1owner", contract, OpKind("mint_money"), nil)
		s.Error(err)
	})
}

// TestGuardianLifecycle walks invite, confirm, and the duplicate diagnostics
// as the deployed contract actually emits them.
func (s *OrchestratorSuite) TestGuardianLifecycle() {
	contract := s.newWallet("terra1owner")

	_, err := s.orch.Execute(s.ctx, "terra1owner", contract, OpAddGuardian, AddGuardianMsg{Guardian: "terra1bob"})
	s.Require().NoError(err)

	s.Run("re-inviting a pending guardian is a duplicate", func() {
		_, err := s.orch.Execute(s.ctx, "terra1owner", contract, OpAddGuardian, AddGuardianMsg{Guardian: "terra1bob"})
		s.Require().Error(err)
		s.True(IsDuplicate(err))
		// The deployed contract reports the pending case with the
		// "already added" string.
		re, _ := AsRejected(err)
		s.Contains(re.Reason, "guardian already added")
	})

	s.Run("confirm moves pending to confirmed", func() {
		_, err := s.orch.Execute(s.ctx, "terra1bob", contract, OpAddGuardianConfirm, AddGuardianMsg{Guardian: "terra1bob"})
		s.Require().NoError(err)

		guardians, err := s.orch.Guardians(s.ctx, contract)
		s.Require().NoError(err)
		s.Equal([]string{"terra1bob"}, guardians)

		pending, err := s.orch.PendingGuardians(s.ctx, contract)
		s.Require().NoError(err)
		s.Empty(pending)
	})

	s.Run("re-inviting a confirmed guardian reports the swapped diagnostic", func() {
		_, err := s.orch.Execute(s.ctx, "terra1owner", contract, OpAddGuardian, AddGuardianMsg{Guardian: "terra1bob"})
		s.Require().Error(err)
		s.True(IsDuplicate(err))
		re, _ := AsRejected(err)
		s.Contains(re.Reason, "guardian addition pending")
	})

	s.Run("confirming without an invite is rejected", func() {
		_, err := s.orch.Execute(s.ctx, "terra1eve", contract, OpAddGuardianConfirm, AddGuardianMsg{Guardian: "terra1eve"})
		re, ok := AsRejected(err)
		s.Require().True(ok)
		s.Contains(re.Reason, "guardian not in the pending list")
		s.False(IsDuplicate(err))
	})
}

// TestRecoveryQuorum verifies the majority rule end to end on the fake.
func (s *OrchestratorSuite) TestRecoveryQuorum() {
	contract := s.newWallet("terra1owner")
	guardians := []string{"terra1g1", "terra1g2", "terra1g3"}
	for _, g := range guardians {
		_, err := s.orch.Execute(s.ctx, "terra1owner", contract, OpAddGuardian, AddGuardianMsg{Guardian: g})
		s.Require().NoError(err)
		_, err = s.orch.Execute(s.ctx, g, contract, OpAddGuardianConfirm, AddGuardianMsg{Guardian: g})
		s.Require().NoError(err)
	}

	s.Run("first responder opens the recovery", func() {
		_, err := s.orch.Execute(s.ctx, "terra1g1", contract, OpExecuteRecovery,
			ExecuteRecoveryMsg{NewOwner: "terra1new", Guardian: "terra1g1"})
		s.Require().NoError(err)

		recovering, err := s.orch.RecoveryStatus(s.ctx, contract)
		s.Require().NoError(err)
		s.True(recovering)

		signers, err := s.orch.Signers(s.ctx, contract)
		s.Require().NoError(err)
		s.Equal([]string{"terra1g1"}, signers)
	})

	s.Run("second execute_recovery is rejected as already recovering", func() {
		_, err := s.orch.Execute(s.ctx, "terra1g2", contract, OpExecuteRecovery,
			ExecuteRecoveryMsg{NewOwner: "terra1other", Guardian: "terra1g2"})
		s.Require().Error(err)
		s.True(IsAlreadyRecovering(err))
	})

	s.Run("majority approval flips the owner", func() {
		_, err := s.orch.Execute(s.ctx, "terra1g2", contract, OpGuardianApproveRequest,
			GuardianApproveRequestMsg{Guardian: "terra1g2"})
		s.Require().NoError(err)

		owner, err := s.orch.Owner(s.ctx, contract)
		s.Require().NoError(err)
		s.Equal("terra1new", owner)

		recovering, err := s.orch.RecoveryStatus(s.ctx, contract)
		s.Require().NoError(err)
		s.False(recovering)
	})

	s.Run("late approval sees not recovering", func() {
		_, err := s.orch.Execute(s.ctx, "terra1g3", contract, OpGuardianApproveRequest,
			GuardianApproveRequestMsg{Guardian: "terra1g3"})
		s.Require().Error(err)
		s.True(IsNotRecovering(err))
	})
}

// TestSingleGuardianRecovery verifies the immediate transfer with one guardian.
func (s *OrchestratorSuite) TestSingleGuardianRecovery() {
	contract := s.newWallet("terra1owner")
	_, err := s.orch.Execute(s.ctx, "terra1owner", contract, OpAddGuardian, AddGuardianMsg{Guardian: "terra1g1"})
	s.Require().NoError(err)
	_, err = s.orch.Execute(s.ctx, "terra1g1", contract, OpAddGuardianConfirm, AddGuardianMsg{Guardian: "terra1g1"})
	s.Require().NoError(err)

	_, err = s.orch.Execute(s.ctx, "terra1g1", contract, OpExecuteRecovery,
		ExecuteRecoveryMsg{NewOwner: "terra1new", Guardian: "terra1g1"})
	s.Require().NoError(err)

	owner, err := s.orch.Owner(s.ctx, contract)
	s.Require().NoError(err)
	s.Equal("terra1new", owner)
}

// TestCancelRecovery verifies cancellation clears the open recovery.
func (s *OrchestratorSuite) TestCancelRecovery() {
	contract := s.newWallet("terra1owner")
	for _, g := range []string{"terra1g1", "terra1g2", "terra1g3"} {
		_, err := s.orch.Execute(s.ctx, "terra1owner", contract, OpAddGuardian, AddGuardianMsg{Guardian: g})
		s.Require().NoError(err)
		_, err = s.orch.Execute(s.ctx, g, contract, OpAddGuardianConfirm, AddGuardianMsg{Guardian: g})
		s.Require().NoError(err)
	}
	_, err := s.orch.Execute(s.ctx, "terra1g1", contract, OpExecuteRecovery,
		ExecuteRecoveryMsg{NewOwner: "terra1new", Guardian: "terra1g1"})
	s.Require().NoError(err)

	_, err = s.orch.Execute(s.ctx, "terra1g2", contract, OpCancelRecovery, CancelRecoveryMsg{Guardian: "terra1g2"})
	s.Require().NoError(err)

	recovering, err := s.orch.RecoveryStatus(s.ctx, contract)
	s.Require().NoError(err)
	s.False(recovering)

	signers, err := s.orch.Signers(s.ctx, contract)
	s.Require().NoError(err)
	s.Empty(signers)
}

// TestSendTokens verifies balance movement and insufficient-funds rejection.
func (s *OrchestratorSuite) TestSendTokens() {
	contract := s.newWallet("terra1owner")
	s.fake.SetBalance(contract, Coin{Denom: "uluna", Amount: 5_000_000})

	_, err := s.orch.Execute(s.ctx, "terra1owner", contract, OpSendTokens,
		SendTokensMsg{ToAddress: "terra1bob", Amount: []Coin{{Denom: "uluna", Amount: 1_500_000}}})
	s.Require().NoError(err)

	coins, err := s.orch.Balance(s.ctx, "terra1bob")
	s.Require().NoError(err)
	s.Equal([]Coin{{Denom: "uluna", Amount: 1_500_000}}, coins)

	coins, err = s.orch.Balance(s.ctx, contract)
	s.Require().NoError(err)
	s.Equal([]Coin{{Denom: "uluna", Amount: 3_500_000}}, coins)

	_, err = s.orch.Execute(s.ctx, "terra1owner", contract, OpSendTokens,
		SendTokensMsg{ToAddress: "terra1bob", Amount: []Coin{{Denom: "uluna", Amount: 99_000_000}}})
	_, ok := AsRejected(err)
	s.True(ok)
}

// TestFriendlyMessages verifies user-facing translation of known rejections.
func (s *OrchestratorSuite) TestFriendlyMessages() {
	contract := s.newWallet("terra1owner")
	_, err := s.orch.Execute(s.ctx, "terra1owner", contract, OpAddGuardian, AddGuardianMsg{Guardian: "terra1bob"})
	s.Require().NoError(err)

	_, err = s.orch.Execute(s.ctx, "terra1owner", contract, OpAddGuardian, AddGuardianMsg{Guardian: "terra1bob"})
	msg, ok := Friendly(err)
	s.Require().True(ok)
	s.Equal("Guardian already added!", msg)

	msg, ok = Friendly(errors.New("plain error"))
	s.False(ok)
	s.Empty(msg)
}

// TestFees verifies the fixed fee schedule lookup.
func (s *OrchestratorSuite) TestFees() {
	fee, err := FeeFor(OpAddGuardian)
	s.Require().NoError(err)
	s.Equal(uint64(146400), fee.Gas)
	s.Equal([]Coin{{Denom: FeeDenom, Amount: 21960}}, fee.Amount)

	fee, err = FeeFor(OpSendTokens)
	s.Require().NoError(err)
	s.Equal(uint64(2657235), fee.Gas)

	_, err = FeeFor(OpKind("unknown"))
	s.Error(err)
}
