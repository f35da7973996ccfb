package domain

// GuardianRequest is an incoming, not-yet-accepted invitation to become the
// guardian of another wallet. Held in memory only; it does not survive a
// restart (the session reconciles pending state from the ledger on start).
type GuardianRequest struct {
	WardAddress string
}

// RecoveryRequest is an incoming invitation to approve the recovery of a
// ward's wallet. Only created when the ward is a recognized family member.
type RecoveryRequest struct {
	WardAddress string
	NewOwner    string
}
