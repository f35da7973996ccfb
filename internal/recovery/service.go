package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"mochifi/internal/directory"
	"mochifi/internal/domain"
	"mochifi/internal/events"
	"mochifi/internal/ledger"
	"mochifi/internal/platform/metrics"
	"mochifi/internal/state"
	"mochifi/pkg/sentinel"
)

// Service drives wallet recovery from both sides. The recovering owner runs
// Start, CheckFunding, and CheckProgress against a fresh key; guardians run
// Respond against incoming recovery requests. The ledger enforces the quorum;
// this service only sequences the calls and keeps local state coherent.
type Service struct {
	session *state.Session
	orch    *ledger.Orchestrator
	dir     directory.Directory
	log     events.Log
	keys    domain.KeySource
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu         sync.Mutex
	responding map[string]bool
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

func New(session *state.Session, orch *ledger.Orchestrator, dir directory.Directory, log events.Log, keys domain.KeySource, opts ...Option) (*Service, error) {
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
	if keys == nil {
		return nil, fmt.Errorf("key source is required")
	}
	s := &Service{
		session:    session,
		orch:       orch,
		dir:        dir,
		log:        log,
		keys:       keys,
		logger:     slog.Default(),
		responding: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start begins recovering the wallet registered under username with a fresh
// key. Nothing touches the ledger yet: the new account must be funded before
// it can pay fees, so the next step is CheckFunding. Returns the new key so
// the owner knows which address to fund.
func (s *Service) Start(ctx context.Context, username string) (domain.Key, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.Key{}, sentinel.NewValidation("username is required")
	}
	snap := s.session.Snapshot()
	if snap.IsRecovering {
		return domain.Key{}, fmt.Errorf("recovery already started: %w", sentinel.ErrInvalidState)
	}
	rec, err := s.dir.Lookup(ctx, username)
	if err != nil {
		return domain.Key{}, fmt.Errorf("lookup %q: %w", username, err)
	}
	key, err := s.keys.Generate()
	if err != nil {
		return domain.Key{}, fmt.Errorf("generate recovery key: %w", err)
	}

	s.session.Dispatch(state.SetIdentity(domain.Identity{
		Key:             key,
		ContractAddress: rec.WalletAddress,
		Username:        username,
	}))
	s.session.Dispatch(state.SetIsRecovering(true))
	s.session.Dispatch(state.SetIsWalletFunded(false))
	s.logger.Info("recovery started", "username", username, "new_address", key.Address)
	return key, nil
}

// CheckFunding queries the new account's balance and, once it holds anything,
// marks the session funded and broadcasts the recovery invite to guardians.
func (s *Service) CheckFunding(ctx context.Context) (bool, error) {
	snap := s.session.Snapshot()
	if !snap.IsRecovering {
		return false, fmt.Errorf("no recovery in progress: %w", sentinel.ErrInvalidState)
	}
	if snap.IsWalletFunded {
		return true, nil
	}
	coins, err := s.orch.Balance(ctx, snap.Identity.Key.Address)
	if err != nil {
		return false, fmt.Errorf("check funding: %w", err)
	}
	funded := false
	for _, coin := range coins {
		if coin.Amount > 0 {
			funded = true
			break
		}
	}
	if !funded {
		return false, nil
	}
	s.session.Dispatch(state.SetIsWalletFunded(true))
	if err := s.broadcastInvite(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// ResumeIfFunded re-broadcasts the recovery invite after a restart. The
// invite is idempotent on the guardian side: the request queue deduplicates
// by ward, and guardians who already responded will see their approval
// rejected as redundant and move on.
func (s *Service) ResumeIfFunded(ctx context.Context) error {
	snap := s.session.Snapshot()
	if !snap.IsRecovering {
		return nil
	}
	if !snap.IsWalletFunded {
		_, err := s.CheckFunding(ctx)
		return err
	}
	return s.broadcastInvite(ctx)
}

func (s *Service) broadcastInvite(ctx context.Context) error {
	snap := s.session.Snapshot()
	rec, err := s.dir.Lookup(ctx, snap.Identity.Username)
	if err != nil {
		return fmt.Errorf("lookup own record: %w", err)
	}
	ev := events.New(events.KindRecoveryInvite, snap.Identity.Key.Address, events.BroadcastGuardians,
		map[string]string{events.PayloadOwnerAddress: rec.IDAddress})
	if err := s.log.Publish(ctx, ev); err != nil {
		return fmt.Errorf("broadcast recovery invite: %w", err)
	}
	s.logger.Info("recovery invite broadcast", "owner", rec.IDAddress, "new_address", snap.Identity.Key.Address)
	return nil
}

// Respond handles an incoming recovery request as a guardian. The first
// responder opens the recovery on the ward's wallet with execute_recovery;
// everyone after approves the open recovery. Losing the first-responder race
// degrades into an approval, and approving a recovery that already reached
// quorum counts as done. The acknowledgement goes to the ward's new address
// only after this guardian's contribution is on the ledger.
func (s *Service) Respond(ctx context.Context, wardAddress string) error {
	snap := s.session.Snapshot()
	if !snap.Identity.Exists() {
		return fmt.Errorf("no wallet configured: %w", sentinel.ErrInvalidState)
	}
	req, ok := findRequest(snap, wardAddress)
	if !ok {
		return fmt.Errorf("no recovery request from %s: %w", wardAddress, sentinel.ErrNotFound)
	}

	s.mu.Lock()
	if s.responding[wardAddress] {
		s.mu.Unlock()
		return fmt.Errorf("response already in progress: %w", sentinel.ErrInvalidState)
	}
	s.responding[wardAddress] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.responding, wardAddress)
		s.mu.Unlock()
	}()

	contract, err := s.wardContract(ctx, wardAddress)
	if err != nil {
		return err
	}
	self := snap.Identity.Key.Address

	owner, err := s.orch.Owner(ctx, contract)
	if err != nil {
		return fmt.Errorf("check owner: %w", err)
	}
	if owner == req.NewOwner {
		// Quorum was reached without this guardian. Responding now would
		// open a fresh recovery, so just acknowledge and move on.
		s.finishResponse(ctx, wardAddress, req.NewOwner, self)
		return nil
	}

	recovering, err := s.orch.RecoveryStatus(ctx, contract)
	if err != nil {
		return fmt.Errorf("check recovery status: %w", err)
	}
	if !recovering {
		_, err = s.orch.Execute(ctx, self, contract,
			ledger.OpExecuteRecovery, ledger.ExecuteRecoveryMsg{NewOwner: req.NewOwner, Guardian: self})
		switch {
		case err == nil:
			// Open (or, with a single guardian, already complete).
		case ledger.IsAlreadyRecovering(err):
			recovering = true
		default:
			return fmt.Errorf("execute recovery: %w", err)
		}
	}
	if recovering {
		_, err = s.orch.Execute(ctx, self, contract,
			ledger.OpGuardianApproveRequest, ledger.GuardianApproveRequestMsg{Guardian: self})
		if err != nil && !ledger.IsNotRecovering(err) {
			return fmt.Errorf("approve recovery: %w", err)
		}
	}

	s.finishResponse(ctx, wardAddress, req.NewOwner, self)
	return nil
}

func (s *Service) finishResponse(ctx context.Context, wardAddress, newOwner, self string) {
	ev := events.New(events.KindRecoveryInviteAck, self, newOwner, nil)
	if err := s.log.Publish(ctx, ev); err != nil {
		s.logger.Warn("approval recorded but acknowledgement failed",
			"ward", wardAddress, "error", err)
	}
	s.session.Dispatch(state.RemoveRecoveryRequest(wardAddress))
	s.logger.Info("recovery request answered", "ward", wardAddress)
}

// DeclineRequest drops an incoming recovery request locally without touching
// the ledger. Other guardians can still reach quorum without this one.
func (s *Service) DeclineRequest(wardAddress string) error {
	snap := s.session.Snapshot()
	if _, ok := findRequest(snap, wardAddress); !ok {
		return fmt.Errorf("no recovery request from %s: %w", wardAddress, sentinel.ErrNotFound)
	}
	s.session.Dispatch(state.RemoveRecoveryRequest(wardAddress))
	s.logger.Info("recovery request declined", "ward", wardAddress)
	return nil
}

// CancelRequest votes to cancel a ward's open recovery on the ledger and
// drops the local request.
func (s *Service) CancelRequest(ctx context.Context, wardAddress string) error {
	snap := s.session.Snapshot()
	if !snap.Identity.Exists() {
		return fmt.Errorf("no wallet configured: %w", sentinel.ErrInvalidState)
	}
	if _, ok := findRequest(snap, wardAddress); !ok {
		return fmt.Errorf("no recovery request from %s: %w", wardAddress, sentinel.ErrNotFound)
	}
	contract, err := s.wardContract(ctx, wardAddress)
	if err != nil {
		return err
	}
	_, err = s.orch.Execute(ctx, snap.Identity.Key.Address, contract,
		ledger.OpCancelRecovery, ledger.CancelRecoveryMsg{Guardian: snap.Identity.Key.Address})
	if err != nil && !ledger.IsNotRecovering(err) {
		return err
	}
	s.session.Dispatch(state.RemoveRecoveryRequest(wardAddress))
	return nil
}

// Progress is a point-in-time view of an in-flight recovery.
type Progress struct {
	Recovered bool `json:"recovered"`
	Approvals int  `json:"approvals"`
	Required  int  `json:"required"`
}

// CheckProgress consumes the progress trigger and compares the wallet's
// current owner against the session's new key. Ownership transfer on the
// ledger is the completion fact; approval counts are informational.
func (s *Service) CheckProgress(ctx context.Context) (Progress, error) {
	s.session.Dispatch(state.SetShouldCheckRecoveryProgress(false))
	snap := s.session.Snapshot()
	if !snap.IsRecovering {
		// A late acknowledgement after completion still lands here.
		return Progress{Recovered: snap.Identity.Exists()}, nil
	}
	contract := snap.Identity.ContractAddress

	owner, err := s.orch.Owner(ctx, contract)
	if err != nil {
		return Progress{}, fmt.Errorf("check owner: %w", err)
	}
	if owner == snap.Identity.Key.Address {
		s.session.Dispatch(state.SetIsRecovering(false))
		if err := s.dir.UpdateAddress(ctx, snap.Identity.Username, owner); err != nil {
			s.logger.Warn("recovered but directory rebind failed",
				"username", snap.Identity.Username, "error", err)
		}
		s.metrics.RecoveryCompleted()
		s.logger.Info("wallet recovered", "username", snap.Identity.Username, "owner", owner)
		return Progress{Recovered: true}, nil
	}

	signers, err := s.orch.Signers(ctx, contract)
	if err != nil {
		return Progress{}, fmt.Errorf("check signers: %w", err)
	}
	guardians, err := s.orch.Guardians(ctx, contract)
	if err != nil {
		return Progress{}, fmt.Errorf("check guardians: %w", err)
	}
	return Progress{
		Approvals: len(signers),
		Required:  len(guardians)/2 + 1,
	}, nil
}

func (s *Service) wardContract(ctx context.Context, wardAddress string) (string, error) {
	username, err := s.dir.ReverseLookup(ctx, wardAddress)
	if err != nil {
		return "", fmt.Errorf("resolve ward %s: %w", wardAddress, err)
	}
	if username == directory.UnknownUsername {
		return "", fmt.Errorf("ward %s not in directory: %w", wardAddress, sentinel.ErrNotFound)
	}
	rec, err := s.dir.Lookup(ctx, username)
	if err != nil {
		return "", fmt.Errorf("resolve ward %s: %w", wardAddress, err)
	}
	return rec.WalletAddress, nil
}

func findRequest(snap state.State, wardAddress string) (domain.RecoveryRequest, bool) {
	for _, req := range snap.RecoveryRequests {
		if req.WardAddress == wardAddress {
			return req, true
		}
	}
	return domain.RecoveryRequest{}, false
}
