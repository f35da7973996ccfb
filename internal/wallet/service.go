package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"mochifi/internal/directory"
	"mochifi/internal/domain"
	"mochifi/internal/events"
	"mochifi/internal/ledger"
	"mochifi/internal/state"
	"mochifi/pkg/sentinel"
)

// Service covers wallet lifecycle and transfers: key generation, contract
// instantiation, directory registration, token sends, and balance reads.
type Service struct {
	session *state.Session
	orch    *ledger.Orchestrator
	dir     directory.Directory
	log     events.Log
	keys    domain.KeySource
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
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
		session: session,
		orch:    orch,
		dir:     dir,
		log:     log,
		keys:    keys,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create reserves a username (best effort; the directory's unique constraint
// is the real guarantee) and generates the wallet's key. The key's address
// must be funded before Activate can pay the instantiation fee, so the key is
// returned to the caller.
func (s *Service) Create(ctx context.Context, username string) (domain.Key, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.Key{}, sentinel.NewValidation("username is required")
	}
	snap := s.session.Snapshot()
	if snap.Identity.Exists() {
		return domain.Key{}, fmt.Errorf("wallet already configured: %w", sentinel.ErrInvalidState)
	}
	_, err := s.dir.Lookup(ctx, username)
	if err == nil {
		return domain.Key{}, fmt.Errorf("username %q: %w", username, sentinel.ErrConflict)
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return domain.Key{}, fmt.Errorf("check username: %w", err)
	}
	key, err := s.keys.Generate()
	if err != nil {
		return domain.Key{}, fmt.Errorf("generate key: %w", err)
	}
	s.session.Dispatch(state.SetIdentity(domain.Identity{Key: key, Username: username}))
	s.logger.Info("wallet key created", "username", username, "address", key.Address)
	return key, nil
}

// Activate instantiates the wallet contract and registers the account in the
// directory. Requires the account to be funded. Returns the contract address.
func (s *Service) Activate(ctx context.Context) (string, error) {
	snap := s.session.Snapshot()
	if !snap.Identity.Exists() {
		return "", fmt.Errorf("no wallet key: %w", sentinel.ErrInvalidState)
	}
	if snap.Identity.ContractAddress != "" {
		return snap.Identity.ContractAddress, nil
	}
	coins, err := s.orch.Balance(ctx, snap.Identity.Key.Address)
	if err != nil {
		return "", fmt.Errorf("check funding: %w", err)
	}
	funded := false
	for _, coin := range coins {
		if coin.Amount > 0 {
			funded = true
			break
		}
	}
	if !funded {
		return "", sentinel.NewValidation("account is not funded yet")
	}

	contract, err := s.orch.Instantiate(ctx, snap.Identity.Key.Address)
	if err != nil {
		return "", err
	}
	err = s.dir.Create(ctx, directory.Record{
		Username:      snap.Identity.Username,
		IDAddress:     snap.Identity.Key.Address,
		WalletAddress: contract,
	})
	if err != nil {
		// The contract exists either way; a name conflict here lost the
		// registration race after the earlier best-effort check.
		return "", fmt.Errorf("register %q: %w", snap.Identity.Username, err)
	}

	identity := snap.Identity
	identity.ContractAddress = contract
	s.session.Dispatch(state.SetIdentity(identity))
	s.session.Dispatch(state.SetIsWalletFunded(true))
	s.logger.Info("wallet activated", "username", identity.Username, "contract", contract)
	return contract, nil
}

// Send transfers tokens from the wallet contract to another account and
// notifies the recipient. Amount is a decimal token string, e.g. "1.5".
func (s *Service) Send(ctx context.Context, toUsername, amount, denom string) error {
	snap := s.session.Snapshot()
	if !snap.Identity.Exists() || snap.Identity.ContractAddress == "" {
		return fmt.Errorf("no active wallet: %w", sentinel.ErrInvalidState)
	}
	if denom == "" {
		denom = ledger.FeeDenom
	}
	micro, err := ParseAmount(amount)
	if err != nil {
		return err
	}
	rec, err := s.dir.Lookup(ctx, strings.TrimSpace(toUsername))
	if err != nil {
		return fmt.Errorf("lookup %q: %w", toUsername, err)
	}
	if rec.IDAddress == snap.Identity.Key.Address {
		return sentinel.NewValidation("cannot send tokens to yourself")
	}

	coins := []ledger.Coin{{Denom: denom, Amount: micro}}
	_, err = s.orch.Execute(ctx, snap.Identity.Key.Address, snap.Identity.ContractAddress,
		ledger.OpSendTokens, ledger.SendTokensMsg{ToAddress: rec.IDAddress, Amount: coins})
	if err != nil {
		return err
	}

	ev := events.New(events.KindFundsReceived, snap.Identity.Key.Address, rec.IDAddress, nil)
	if err := s.log.Publish(ctx, ev); err != nil {
		s.logger.Warn("transfer recorded but notification failed", "to", toUsername, "error", err)
	}
	s.logger.Info("tokens sent", "to", toUsername, "amount", FormatCoin(coins[0]))
	return nil
}

// Balance reads the wallet contract's holdings from the ledger.
func (s *Service) Balance(ctx context.Context) ([]ledger.Coin, error) {
	snap := s.session.Snapshot()
	if !snap.Identity.Exists() || snap.Identity.ContractAddress == "" {
		return nil, fmt.Errorf("no active wallet: %w", sentinel.ErrInvalidState)
	}
	return s.orch.Balance(ctx, snap.Identity.ContractAddress)
}

// RefreshBalance consumes the refresh trigger set by a funds-received event
// and returns the current balance.
func (s *Service) RefreshBalance(ctx context.Context) ([]ledger.Coin, error) {
	s.session.Dispatch(state.SetShouldRefreshBalance(false))
	return s.Balance(ctx)
}
