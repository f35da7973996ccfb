package guardian

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mochifi/internal/directory"
	"mochifi/internal/domain"
	"mochifi/internal/events"
	"mochifi/internal/keyring"
	"mochifi/internal/ledger"
	"mochifi/internal/localstore"
	"mochifi/internal/state"
	"mochifi/pkg/sentinel"
)

// user bundles one participant's session and service over the shared fakes.
type user struct {
	identity domain.Identity
	session  *state.Session
	svc      *Service
}

type GuardianServiceSuite struct {
	suite.Suite
	fake *ledger.FakeLedger
	orch *ledger.Orchestrator
	dir  *directory.Memory
	log  *events.Memory
	ctx  context.Context
}

func (s *GuardianServiceSuite) SetupTest() {
	s.fake = ledger.NewFakeLedger()
	var err error
	s.orch, err = ledger.New(s.fake)
	s.Require().NoError(err)
	s.dir = directory.NewMemory()
	s.log = events.NewMemory()
	s.ctx = context.Background()
}

func TestGuardianServiceSuite(t *testing.T) {
	suite.Run(t, new(GuardianServiceSuite))
}

// newUser creates a funded participant with an instantiated wallet, a
// directory entry, and a guardian service bound to their session.
func (s *GuardianServiceSuite) newUser(username string) *user {
	key, err := keyring.Deterministic{}.Generate()
	s.Require().NoError(err)
	contract, err := s.orch.Instantiate(s.ctx, key.Address)
	s.Require().NoError(err)
	s.Require().NoError(s.dir.Create(s.ctx, directory.Record{
		Username:      username,
		IDAddress:     key.Address,
		WalletAddress: contract,
	}))

	session, err := state.NewSession(localstore.NewMemory())
	s.Require().NoError(err)
	identity := domain.Identity{Key: key, ContractAddress: contract, Username: username}
	session.Dispatch(state.SetIdentity(identity))

	svc, err := New(session, s.orch, s.dir, s.log)
	s.Require().NoError(err)
	return &user{identity: identity, session: session, svc: svc}
}

// drainEvents reads n events published so far from the log.
func (s *GuardianServiceSuite) drainEvents(n int) []events.Event {
	ctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
	defer cancel()
	ch, err := s.log.Subscribe(ctx, time.Time{})
	s.Require().NoError(err)
	out := make([]events.Event, 0, n)
	for len(out) < n {
		select {
		case ev := <-ch:
			out = append(out, ev)
		case <-ctx.Done():
			s.FailNowf("timeout", "got %d of %d events", len(out), n)
		}
	}
	return out
}

// TestInviteValidation covers the local rejections before any ledger call.
func (s *GuardianServiceSuite) TestInviteValidation() {
	alice := s.newUser("alice")

	s.Run("empty username", func() {
		err := alice.svc.Invite(s.ctx, "  ")
		s.True(sentinel.IsValidation(err))
	})

	s.Run("self as guardian", func() {
		err := alice.svc.Invite(s.ctx, "alice")
		s.True(sentinel.IsValidation(err))
	})

	s.Run("unknown username", func() {
		err := alice.svc.Invite(s.ctx, "nobody")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("no wallet configured", func() {
		session, err := state.NewSession(localstore.NewMemory())
		s.Require().NoError(err)
		svc, err := New(session, s.orch, s.dir, s.log)
		s.Require().NoError(err)
		s.Require().ErrorIs(svc.Invite(s.ctx, "alice"), sentinel.ErrInvalidState)
	})
}

// TestInvite verifies the contract write precedes the notification and both
// carry the guardian's key address.
func (s *GuardianServiceSuite) TestInvite() {
	alice := s.newUser("alice")
	bob := s.newUser("bob")

	s.Require().NoError(alice.svc.Invite(s.ctx, "bob"))

	pending, err := s.orch.PendingGuardians(s.ctx, alice.identity.ContractAddress)
	s.Require().NoError(err)
	s.Equal([]string{bob.identity.Key.Address}, pending)

	evs := s.drainEvents(1)
	s.Equal(events.KindGuardianInvite, evs[0].Kind)
	s.Equal(alice.identity.Key.Address, evs[0].Sender)
	s.Equal(bob.identity.Key.Address, evs[0].Recipient)

	s.Run("repeated invite surfaces the contract rejection", func() {
		err := alice.svc.Invite(s.ctx, "bob")
		s.True(ledger.IsDuplicate(err))
	})
}

// TestAccept verifies the two-leg confirmation, the cache refresh, the
// acknowledgement, and the queue pop.
func (s *GuardianServiceSuite) TestAccept() {
	alice := s.newUser("alice")
	bob := s.newUser("bob")
	s.Require().NoError(alice.svc.Invite(s.ctx, "bob"))
	bob.session.Dispatch(state.PushGuardianRequest(domain.GuardianRequest{WardAddress: alice.identity.Key.Address}))

	s.Require().NoError(bob.svc.Accept(s.ctx, alice.identity.Key.Address))

	guardians, err := s.orch.Guardians(s.ctx, alice.identity.ContractAddress)
	s.Require().NoError(err)
	s.Equal([]string{bob.identity.Key.Address}, guardians)

	family, err := s.orch.FamilyMembers(s.ctx, bob.identity.ContractAddress)
	s.Require().NoError(err)
	s.Equal([]string{alice.identity.Key.Address}, family)

	snap := bob.session.Snapshot()
	s.Empty(snap.GuardianRequests)
	s.Require().Len(snap.Wards, 1)
	s.Equal("alice", snap.Wards[0].Username)

	evs := s.drainEvents(2)
	s.Equal(events.KindGuardianInviteAck, evs[1].Kind)
	s.Equal(alice.identity.Key.Address, evs[1].Recipient)
}

// TestAcceptWithoutRequest verifies Accept requires a queued request.
func (s *GuardianServiceSuite) TestAcceptWithoutRequest() {
	s.newUser("alice")
	bob := s.newUser("bob")
	err := bob.svc.Accept(s.ctx, "terra1unknown")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

// TestAcceptPartialFailure verifies the inconsistent-handshake path: leg one
// applied, leg two failed, then a retry completes without double-applying.
func (s *GuardianServiceSuite) TestAcceptPartialFailure() {
	alice := s.newUser("alice")
	bob := s.newUser("bob")
	s.Require().NoError(alice.svc.Invite(s.ctx, "bob"))
	bob.session.Dispatch(state.PushGuardianRequest(domain.GuardianRequest{WardAddress: alice.identity.Key.Address}))

	s.fake.FailNext(ledger.OpAddFamilyMember, errors.New("connection reset"))
	err := bob.svc.Accept(s.ctx, alice.identity.Key.Address)
	s.Require().ErrorIs(err, ErrInconsistentHandshake)

	// First leg landed, request stays queued, no acknowledgement sent.
	guardians, qerr := s.orch.Guardians(s.ctx, alice.identity.ContractAddress)
	s.Require().NoError(qerr)
	s.Equal([]string{bob.identity.Key.Address}, guardians)
	s.Len(bob.session.Snapshot().GuardianRequests, 1)
	evs := s.drainEvents(1)
	s.Equal(events.KindGuardianInvite, evs[0].Kind)

	// Retry: the already-confirmed first leg reads as success.
	s.Require().NoError(bob.svc.Accept(s.ctx, alice.identity.Key.Address))
	s.Empty(bob.session.Snapshot().GuardianRequests)

	family, err := s.orch.FamilyMembers(s.ctx, bob.identity.ContractAddress)
	s.Require().NoError(err)
	s.Equal([]string{alice.identity.Key.Address}, family)

	evs = s.drainEvents(2)
	s.Equal(events.KindGuardianInviteAck, evs[1].Kind)
}

// TestDecline verifies a local-only removal.
func (s *GuardianServiceSuite) TestDecline() {
	alice := s.newUser("alice")
	bob := s.newUser("bob")
	s.Require().NoError(alice.svc.Invite(s.ctx, "bob"))
	bob.session.Dispatch(state.PushGuardianRequest(domain.GuardianRequest{WardAddress: alice.identity.Key.Address}))

	s.Require().NoError(bob.svc.Decline(alice.identity.Key.Address))
	s.Empty(bob.session.Snapshot().GuardianRequests)

	// The ward's pending list is untouched.
	pending, err := s.orch.PendingGuardians(s.ctx, alice.identity.ContractAddress)
	s.Require().NoError(err)
	s.Len(pending, 1)

	s.Require().ErrorIs(bob.svc.Decline(alice.identity.Key.Address), sentinel.ErrNotFound)
}

// TestReload verifies the cache refresh resolves usernames and consumes the
// reload trigger.
func (s *GuardianServiceSuite) TestReload() {
	alice := s.newUser("alice")
	bob := s.newUser("bob")
	carol := s.newUser("carol")
	s.Require().NoError(alice.svc.Invite(s.ctx, "bob"))
	s.Require().NoError(alice.svc.Invite(s.ctx, "carol"))
	bob.session.Dispatch(state.PushGuardianRequest(domain.GuardianRequest{WardAddress: alice.identity.Key.Address}))
	s.Require().NoError(bob.svc.Accept(s.ctx, alice.identity.Key.Address))

	alice.session.Dispatch(state.SetShouldReloadGuardians(true))
	s.Require().NoError(alice.svc.Reload(s.ctx))

	snap := alice.session.Snapshot()
	s.False(snap.ShouldReloadGuardians)
	s.Require().Len(snap.Guardians, 1)
	s.Equal("bob", snap.Guardians[0].Username)
	s.Require().Len(snap.PendingGuardians, 1)
	s.Equal("carol", snap.PendingGuardians[0].Username)
	s.Equal(carol.identity.Key.Address, snap.PendingGuardians[0].Address)
}

// TestRemoveAndWithdraw verifies the ward-side list management operations.
func (s *GuardianServiceSuite) TestRemoveAndWithdraw() {
	alice := s.newUser("alice")
	bob := s.newUser("bob")
	carol := s.newUser("carol")
	s.Require().NoError(alice.svc.Invite(s.ctx, "bob"))
	s.Require().NoError(alice.svc.Invite(s.ctx, "carol"))
	bob.session.Dispatch(state.PushGuardianRequest(domain.GuardianRequest{WardAddress: alice.identity.Key.Address}))
	s.Require().NoError(bob.svc.Accept(s.ctx, alice.identity.Key.Address))

	s.Require().NoError(alice.svc.Remove(s.ctx, bob.identity.Key.Address))
	s.Require().NoError(alice.svc.WithdrawInvite(s.ctx, carol.identity.Key.Address))

	snap := alice.session.Snapshot()
	s.Empty(snap.Guardians)
	s.Empty(snap.PendingGuardians)
}

// TestStopGuarding verifies the guardian-side family removal.
func (s *GuardianServiceSuite) TestStopGuarding() {
	alice := s.newUser("alice")
	bob := s.newUser("bob")
	s.Require().NoError(alice.svc.Invite(s.ctx, "bob"))
	bob.session.Dispatch(state.PushGuardianRequest(domain.GuardianRequest{WardAddress: alice.identity.Key.Address}))
	s.Require().NoError(bob.svc.Accept(s.ctx, alice.identity.Key.Address))

	s.Require().NoError(bob.svc.StopGuarding(s.ctx, alice.identity.Key.Address))

	s.Empty(bob.session.Snapshot().Wards)
	family, err := s.orch.FamilyMembers(s.ctx, bob.identity.ContractAddress)
	s.Require().NoError(err)
	s.Empty(family)
}
