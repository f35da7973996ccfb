package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"mochifi/internal/domain"
	"mochifi/internal/localstore"
)

// Session owns the live State for one running daemon. All mutation goes
// through Dispatch, which serializes reduce-then-persist under one lock, so
// concurrent dispatchers (the notification channel, HTTP handlers, workflow
// goroutines) can never interleave partial updates.
//
// Persistence is best-effort: a store write failure is logged and the
// in-memory state stays authoritative for the rest of the process lifetime.
type Session struct {
	mu       sync.Mutex
	state    State
	store    localstore.Store
	logger   *slog.Logger
	watchers []func(State)
}

type SessionOption func(*Session)

func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewSession(store localstore.Store, opts ...SessionOption) (*Session, error) {
	if store == nil {
		return nil, fmt.Errorf("localstore is required")
	}
	s := &Session{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Restore rebuilds the durable part of the state from the local store. The
// address is re-derived from the stored mnemonic rather than persisted, so a
// tampered store cannot split key and address. One-shot flags and pending
// request queues are deliberately not restored; reconciliation against the
// ledger regenerates anything that still matters.
func (s *Session) Restore(keys domain.KeySource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mnemonic, ok, err := s.store.Get(localstore.KeyMnemonic)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if !ok {
		return nil
	}
	key, err := keys.Derive(mnemonic)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	identity := domain.Identity{Key: key}
	if v, ok, err := s.store.Get(localstore.KeyContractAddress); err != nil {
		return fmt.Errorf("restore session: %w", err)
	} else if ok {
		identity.ContractAddress = v
	}
	if v, ok, err := s.store.Get(localstore.KeyUsername); err != nil {
		return fmt.Errorf("restore session: %w", err)
	} else if ok {
		identity.Username = v
	}
	s.state.Identity = identity

	if v, ok, err := s.store.Get(localstore.KeyWards); err != nil {
		return fmt.Errorf("restore session: %w", err)
	} else if ok {
		var wards []domain.User
		if err := json.Unmarshal([]byte(v), &wards); err != nil {
			return fmt.Errorf("restore session: decode wards: %w", err)
		}
		s.state.Wards = wards
	}
	if v, ok, err := s.store.Get(localstore.KeyIsRecovering); err != nil {
		return fmt.Errorf("restore session: %w", err)
	} else if ok {
		s.state.IsRecovering = v == "true"
	}
	if v, ok, err := s.store.Get(localstore.KeyIsWalletFunded); err != nil {
		return fmt.Errorf("restore session: %w", err)
	} else if ok {
		s.state.IsWalletFunded = v == "true"
	}
	return nil
}

// Dispatch applies the action and persists any changed durable fields.
// Watchers run after the lock is released, with the post-action snapshot.
func (s *Session) Dispatch(action Action) {
	s.mu.Lock()
	prev := s.state
	s.state = Reduce(s.state, action)
	s.persistLocked(prev, s.state)
	next := snapshot(s.state)
	watchers := s.watchers
	s.mu.Unlock()

	for _, watch := range watchers {
		watch(next)
	}
}

// Snapshot returns a copy safe to read without holding the session lock.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.state)
}

// Watch registers a callback invoked after every dispatch. Callbacks may
// dispatch further actions; they must not block for long, since every
// dispatcher waits on them.
func (s *Session) Watch(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

func (s *Session) persistLocked(prev, next State) {
	if prev.Identity != next.Identity {
		s.put(localstore.KeyMnemonic, next.Identity.Key.Mnemonic)
		s.put(localstore.KeyContractAddress, next.Identity.ContractAddress)
		s.put(localstore.KeyUsername, next.Identity.Username)
	}
	if fmt.Sprint(prev.Wards) != fmt.Sprint(next.Wards) {
		raw, err := json.Marshal(next.Wards)
		if err != nil {
			s.logger.Error("encode wards for persistence", "error", err)
		} else {
			s.put(localstore.KeyWards, string(raw))
		}
	}
	if prev.IsRecovering != next.IsRecovering {
		s.put(localstore.KeyIsRecovering, strconv.FormatBool(next.IsRecovering))
	}
	if prev.IsWalletFunded != next.IsWalletFunded {
		s.put(localstore.KeyIsWalletFunded, strconv.FormatBool(next.IsWalletFunded))
	}
}

func (s *Session) put(key, value string) {
	var err error
	if value == "" {
		err = s.store.Remove(key)
	} else {
		err = s.store.Set(key, value)
	}
	if err != nil {
		s.logger.Error("persist session state", "key", key, "error", err)
	}
}

func snapshot(s State) State {
	out := s
	out.Guardians = append([]domain.User(nil), s.Guardians...)
	out.PendingGuardians = append([]domain.User(nil), s.PendingGuardians...)
	out.Wards = append([]domain.User(nil), s.Wards...)
	out.GuardianRequests = append([]domain.GuardianRequest(nil), s.GuardianRequests...)
	out.RecoveryRequests = append([]domain.RecoveryRequest(nil), s.RecoveryRequests...)
	return out
}
