package localstore

// Store is the durable client-side key-value view. All operations are
// synchronous and idempotent; an absent key means "never configured", not an
// error. There is a single writer (the session dispatch path), so later
// writes for the same key always supersede earlier ones.
type Store interface {
	// Get returns the stored value and whether the key is present.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// Keys the session persists. The "should*" triggers from the reducer are
// intentionally transient and never appear here.
const (
	KeyMnemonic        = "mnemonicPhrase"
	KeyContractAddress = "contractAddress"
	KeyUsername        = "username"
	KeyWards           = "wards"
	KeyIsRecovering    = "isRecovering"
	KeyIsWalletFunded  = "isWalletFunded"
)
