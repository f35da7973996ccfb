package directory

import (
	"context"

	"mochifi/internal/domain"
)

// Record is a directory entry binding a username to its key address and
// wallet contract address.
type Record struct {
	Username      string
	IDAddress     string
	WalletAddress string
}

// Directory resolves usernames to addresses and back. Uniqueness is enforced
// by the directory itself; the create path is check-then-act and therefore
// racy under concurrent registration, which is an accepted risk.
type Directory interface {
	// Create registers a username. Returns sentinel.ErrConflict if taken.
	Create(ctx context.Context, rec Record) error
	// Lookup returns the record for a username, sentinel.ErrNotFound if absent.
	Lookup(ctx context.Context, username string) (Record, error)
	// ReverseLookup returns the username owning a key address, or "Unknown".
	ReverseLookup(ctx context.Context, idAddress string) (string, error)
	// UpdateAddress rebinds a username to a new key address after recovery.
	UpdateAddress(ctx context.Context, username, idAddress string) error
}

// UnknownUsername is the reverse-lookup fallback for unregistered addresses.
const UnknownUsername = "Unknown"

// UsersFromAddresses resolves a list of key addresses into display users,
// preserving input order. Unresolvable addresses come back as "Unknown".
func UsersFromAddresses(ctx context.Context, dir Directory, addresses []string) ([]domain.User, error) {
	users := make([]domain.User, 0, len(addresses))
	for _, addr := range addresses {
		username, err := dir.ReverseLookup(ctx, addr)
		if err != nil {
			return nil, err
		}
		users = append(users, domain.User{Username: username, Address: addr})
	}
	return users, nil
}
