package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNetwork marks transport-level broadcast failures. Surfaced as retryable;
// the retry itself is always a caller decision because ledger operations are
// not guaranteed idempotent.
var ErrNetwork = errors.New("ledger network failure")

// RejectedError reports that the ledger executed the transaction and the
// contract declined it. Reason is the raw diagnostic string, unmodified.
type RejectedError struct {
	Op     OpKind
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("ledger rejected %s: %s", e.Op, e.Reason)
}

// AsRejected unwraps a RejectedError if err carries one.
func AsRejected(err error) (*RejectedError, bool) {
	var re *RejectedError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// Raw diagnostic fragments the contract is known to emit. The full raw log
// wraps these as "execute wasm contract failed: generic: <reason>: failed to
// execute message; message index: 0".
const (
	reasonGuardianAlreadyAdded = "guardian already added"
	reasonGuardianConfirmed    = "guardian addition pending"
	reasonFamilyAlreadyAdded   = "family member already added"
	reasonNotInPendingList     = "guardian not in the pending list"
	reasonNotRecovering        = "wallet is not recovering"
	reasonAlreadyRecovering    = "recovery already in progress"
)

var friendlyReasons = map[string]string{
	reasonGuardianAlreadyAdded: "Guardian already added!",
	reasonGuardianConfirmed:    "Guardian already added!",
	reasonFamilyAlreadyAdded:   "Already guarding this wallet!",
	reasonNotRecovering:        "This wallet is not recovering!",
	reasonAlreadyRecovering:    "Recovery already in progress!",
}

// Friendly maps a known rejection to its user-facing message. The second
// return is false for rejections without a known mapping.
func Friendly(err error) (string, bool) {
	re, ok := AsRejected(err)
	if !ok {
		return "", false
	}
	for fragment, msg := range friendlyReasons {
		if strings.Contains(re.Reason, fragment) {
			return msg, true
		}
	}
	return "", false
}

// IsNotInPendingList reports a rejection of add_guardian_confirm for a
// guardian absent from the pending list: either never invited, or already
// confirmed by an earlier attempt. Callers disambiguate by querying the
// confirmed guardians.
func IsNotInPendingList(err error) bool {
	re, ok := AsRejected(err)
	return ok && strings.Contains(re.Reason, reasonNotInPendingList)
}

// IsAlreadyRecovering reports a rejection of execute_recovery because another
// guardian started the recovery first. The loser of that race approves the
// open recovery instead.
func IsAlreadyRecovering(err error) bool {
	re, ok := AsRejected(err)
	return ok && strings.Contains(re.Reason, reasonAlreadyRecovering)
}

// IsNotRecovering reports a rejection of an approval because the wallet is
// not (or no longer) recovering, typically because quorum was already reached.
func IsNotRecovering(err error) bool {
	re, ok := AsRejected(err)
	return ok && strings.Contains(re.Reason, reasonNotRecovering)
}

// IsDuplicate reports whether err is a rejection caused by resubmitting an
// already-applied state change. Callers retrying a multi-step handshake treat
// these as success-equivalent.
func IsDuplicate(err error) bool {
	re, ok := AsRejected(err)
	if !ok {
		return false
	}
	return strings.Contains(re.Reason, reasonGuardianAlreadyAdded) ||
		strings.Contains(re.Reason, reasonGuardianConfirmed) ||
		strings.Contains(re.Reason, reasonFamilyAlreadyAdded)
}
