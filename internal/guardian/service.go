package guardian

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"mochifi/internal/directory"
	"mochifi/internal/events"
	"mochifi/internal/ledger"
	"mochifi/internal/platform/metrics"
	"mochifi/internal/state"
	"mochifi/pkg/sentinel"
)

// ErrInconsistentHandshake reports a confirmation that landed on the ward's
// wallet but failed to record the ward on the guardian's own wallet. The
// pending request is kept so the guardian can retry; the retry treats the
// already-applied first leg as success.
var ErrInconsistentHandshake = errors.New("guardian confirmation incomplete: confirmed on ward wallet but ward not recorded locally")

// Service runs the guardian-addition handshake from both sides: the ward's
// invite and removal operations against its own wallet, and the guardian's
// two-leg confirmation of an incoming invite.
type Service struct {
	session *state.Session
	orch    *ledger.Orchestrator
	dir     directory.Directory
	log     events.Log
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	accepting map[string]bool
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(session *state.Session, orch *ledger.Orchestrator, dir directory.Directory, log events.Log, opts ...Option) (*Service, error) {
	if session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if orch == nil {
		return nil, fmt.Errorf("ledger orchestrator is required")
	}
	if dir == nil {
		return nil, fmt.Errorf("directory is required")
	}
	if log == nil {
		return nil, fmt.Errorf("event log is required")
	}
	s := &Service{
		session:   session,
		orch:      orch,
		dir:       dir,
		log:       log,
		logger:    slog.Default(),
		accepting: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Invite adds the named account to this wallet's pending guardian list and
// notifies them. The contract write happens first: an invite notification is
// only ever sent for an invitation the ledger accepted.
func (s *Service) Invite(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return sentinel.NewValidation("username is required")
	}
	snap := s.session.Snapshot()
	if !snap.Identity.Exists() {
		return fmt.Errorf("no wallet configured: %w", sentinel.ErrInvalidState)
	}
	if username == snap.Identity.Username {
		return sentinel.NewValidation("you cannot be your own guardian")
	}
	rec, err := s.dir.Lookup(ctx, username)
	if err != nil {
		return fmt.Errorf("lookup %q: %w", username, err)
	}
	if rec.IDAddress == snap.Identity.Key.Address {
		return sentinel.NewValidation("you cannot be your own guardian")
	}

	_, err = s.orch.Execute(ctx, snap.Identity.Key.Address, snap.Identity.ContractAddress,
		ledger.OpAddGuardian, ledger.AddGuardianMsg{Guardian: rec.IDAddress})
	if err != nil {
		return err
	}

	ev := events.New(events.KindGuardianInvite, snap.Identity.Key.Address, rec.IDAddress, nil)
	if err := s.log.Publish(ctx, ev); err != nil {
		// The invitation is already on the ledger; the guardian's next
		// reconciliation will surface it even without the notification.
		s.logger.Warn("guardian invite recorded but notification failed",
			"guardian", username, "error", err)
	}
	s.logger.Info("guardian invited", "guardian", username)
	return nil
}

// Accept confirms an incoming guardian request: first on the ward's wallet,
// then on the guardian's own wallet so the ward becomes a recognized family
// member. The acknowledgement is sent only after both legs succeed, and the
// request leaves the queue only then; on a partial failure the caller gets
// ErrInconsistentHandshake and retries.
func (s *Service) Accept(ctx context.Context, wardAddress string) error {
	snap := s.session.Snapshot()
	if !snap.Identity.Exists() {
		return fmt.Errorf("no wallet configured: %w", sentinel.ErrInvalidState)
	}
	if !hasGuardianRequest(snap, wardAddress) {
		return fmt.Errorf("no pending request from %s: %w", wardAddress, sentinel.ErrNotFound)
	}

	s.mu.Lock()
	if s.accepting[wardAddress] {
		s.mu.Unlock()
		return fmt.Errorf("confirmation already in progress: %w", sentinel.ErrInvalidState)
	}
	s.accepting[wardAddress] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.accepting, wardAddress)
		s.mu.Unlock()
	}()

	ward, err := s.wardRecord(ctx, wardAddress)
	if err != nil {
		return err
	}
	self := snap.Identity.Key.Address

	_, err = s.orch.Execute(ctx, self, ward.WalletAddress,
		ledger.OpAddGuardianConfirm, ledger.AddGuardianMsg{Guardian: self})
	if err != nil && ledger.IsNotInPendingList(err) {
		// Either never invited, or already confirmed by an earlier attempt
		// whose second leg failed. Only the confirmed list tells them apart.
		confirmed, qerr := s.orch.Guardians(ctx, ward.WalletAddress)
		if qerr != nil {
			return fmt.Errorf("confirm on ward wallet: %w", err)
		}
		if slices.Contains(confirmed, self) {
			err = nil
		}
	}
	if err != nil && !ledger.IsDuplicate(err) {
		return fmt.Errorf("confirm on ward wallet: %w", err)
	}

	_, err = s.orch.Execute(ctx, self, snap.Identity.ContractAddress,
		ledger.OpAddFamilyMember, ledger.AddFamilyMemberMsg{FamilyMember: wardAddress})
	if err != nil && !ledger.IsDuplicate(err) {
		return fmt.Errorf("%w: %w", ErrInconsistentHandshake, err)
	}

	if err := s.ReloadFamily(ctx); err != nil {
		s.logger.Warn("family reload after confirmation failed", "error", err)
	}

	ev := events.New(events.KindGuardianInviteAck, self, wardAddress, nil)
	if err := s.log.Publish(ctx, ev); err != nil {
		s.logger.Warn("confirmation recorded but acknowledgement failed",
			"ward", wardAddress, "error", err)
	}

	s.session.Dispatch(state.RemoveGuardianRequest(wardAddress))
	s.metrics.HandshakeCompleted()
	s.logger.Info("guardian request accepted", "ward", wardAddress)
	return nil
}

// Decline drops an incoming guardian request locally. The ward's wallet keeps
// the invitation in its pending list; only the ward can withdraw it there.
func (s *Service) Decline(wardAddress string) error {
	snap := s.session.Snapshot()
	if !hasGuardianRequest(snap, wardAddress) {
		return fmt.Errorf("no pending request from %s: %w", wardAddress, sentinel.ErrNotFound)
	}
	s.session.Dispatch(state.RemoveGuardianRequest(wardAddress))
	s.logger.Info("guardian request declined", "ward", wardAddress)
	return nil
}

// Remove deletes a confirmed guardian from this wallet.
func (s *Service) Remove(ctx context.Context, guardianAddress string) error {
	snap := s.session.Snapshot()
	if !snap.Identity.Exists() {
		return fmt.Errorf("no wallet configured: %w", sentinel.ErrInvalidState)
	}
	_, err := s.orch.Execute(ctx, snap.Identity.Key.Address, snap.Identity.ContractAddress,
		ledger.OpRemoveGuardian, ledger.AddGuardianMsg{Guardian: guardianAddress})
	if err != nil {
		return err
	}
	return s.Reload(ctx)
}

// WithdrawInvite cancels a not-yet-confirmed invitation.
func (s *Service) WithdrawInvite(ctx context.Context, guardianAddress string) error {
	snap := s.session.Snapshot()
	if !snap.Identity.Exists() {
		return fmt.Errorf("no wallet configured: %w", sentinel.ErrInvalidState)
	}
	_, err := s.orch.Execute(ctx, snap.Identity.Key.Address, snap.Identity.ContractAddress,
		ledger.OpAddGuardianConfirmCancel, ledger.AddGuardianMsg{Guardian: guardianAddress})
	if err != nil {
		return err
	}
	return s.Reload(ctx)
}

// StopGuarding removes a ward from this wallet's family list.
func (s *Service) StopGuarding(ctx context.Context, wardAddress string) error {
	snap := s.session.Snapshot()
	if !snap.Identity.Exists() {
		return fmt.Errorf("no wallet configured: %w", sentinel.ErrInvalidState)
	}
	_, err := s.orch.Execute(ctx, snap.Identity.Key.Address, snap.Identity.ContractAddress,
		ledger.OpRemoveFamilyMember, ledger.AddFamilyMemberMsg{FamilyMember: wardAddress})
	if err != nil {
		return err
	}
	return s.ReloadFamily(ctx)
}

// Reload refreshes the cached guardian lists from the ledger, which is
// authoritative. Consumes the reload trigger set by an acknowledgement event.
func (s *Service) Reload(ctx context.Context) error {
	s.session.Dispatch(state.SetShouldReloadGuardians(false))
	snap := s.session.Snapshot()
	if !snap.Identity.Exists() || snap.Identity.ContractAddress == "" {
		return nil
	}
	confirmedAddrs, err := s.orch.Guardians(ctx, snap.Identity.ContractAddress)
	if err != nil {
		return fmt.Errorf("load guardians: %w", err)
	}
	pendingAddrs, err := s.orch.PendingGuardians(ctx, snap.Identity.ContractAddress)
	if err != nil {
		return fmt.Errorf("load pending guardians: %w", err)
	}
	confirmed, err := directory.UsersFromAddresses(ctx, s.dir, confirmedAddrs)
	if err != nil {
		return fmt.Errorf("resolve guardians: %w", err)
	}
	pending, err := directory.UsersFromAddresses(ctx, s.dir, pendingAddrs)
	if err != nil {
		return fmt.Errorf("resolve pending guardians: %w", err)
	}
	s.session.Dispatch(state.SetGuardians(confirmed, pending))
	return nil
}

// ReloadFamily refreshes the cached ward list from this wallet's family
// members. The cache gates which recovery broadcasts this session reacts to.
func (s *Service) ReloadFamily(ctx context.Context) error {
	snap := s.session.Snapshot()
	if !snap.Identity.Exists() || snap.Identity.ContractAddress == "" {
		return nil
	}
	addrs, err := s.orch.FamilyMembers(ctx, snap.Identity.ContractAddress)
	if err != nil {
		return fmt.Errorf("load family members: %w", err)
	}
	wards, err := directory.UsersFromAddresses(ctx, s.dir, addrs)
	if err != nil {
		return fmt.Errorf("resolve family members: %w", err)
	}
	s.session.Dispatch(state.SetWards(wards))
	return nil
}

func (s *Service) wardRecord(ctx context.Context, wardAddress string) (directory.Record, error) {
	username, err := s.dir.ReverseLookup(ctx, wardAddress)
	if err != nil {
		return directory.Record{}, fmt.Errorf("resolve ward %s: %w", wardAddress, err)
	}
	if username == directory.UnknownUsername {
		return directory.Record{}, fmt.Errorf("ward %s not in directory: %w", wardAddress, sentinel.ErrNotFound)
	}
	rec, err := s.dir.Lookup(ctx, username)
	if err != nil {
		return directory.Record{}, fmt.Errorf("resolve ward %s: %w", wardAddress, err)
	}
	return rec, nil
}

func hasGuardianRequest(snap state.State, wardAddress string) bool {
	for _, req := range snap.GuardianRequests {
		if req.WardAddress == wardAddress {
			return true
		}
	}
	return false
}
