package domain

// Key is an account keypair reference. The actual cryptography lives in an
// external keyring; the coordination core only carries the mnemonic reference
// and the derived account address.
type Key struct {
	Mnemonic string
	Address  string
}

// KeySource abstracts wallet key generation and derivation. Implementations
// wrap the chain SDK's keyring; tests use a deterministic source.
type KeySource interface {
	Generate() (Key, error)
	Derive(mnemonic string) (Key, error)
}

// Identity is the local session's account: the signing key, the on-chain
// wallet contract, and the registered username. Created once at wallet
// creation; replaced atomically when a recovery completes.
type Identity struct {
	Key             Key
	ContractAddress string
	Username        string
}

// Exists reports whether an identity has been configured for this session.
func (i Identity) Exists() bool { return i.Key.Address != "" }
