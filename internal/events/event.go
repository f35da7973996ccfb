package events

import (
	"time"

	"github.com/google/uuid"
)

// Kind names a notification event on the shared log.
type Kind string

const (
	// KindGuardianInvite is sent by a ward to one prospective guardian after
	// the on-contract invitation succeeded.
	KindGuardianInvite Kind = "guardian-invite"
	// KindGuardianInviteAck is sent by a guardian to the ward after both
	// confirmation legs succeeded.
	KindGuardianInviteAck Kind = "guardian-invite-ack"
	// KindRecoveryInvite is broadcast by a recovering ward (from the new key)
	// to all guardians once the replacement account is funded.
	KindRecoveryInvite Kind = "recovery-invite"
	// KindRecoveryInviteAck is sent by a guardian to the recovering ward's
	// new address after its approval transaction succeeded.
	KindRecoveryInviteAck Kind = "recovery-invite-ack"
	// KindFundsReceived is sent to the receiver of a token transfer.
	KindFundsReceived Kind = "funds-received"
)

// BroadcastGuardians is the recipient value for events addressed to every
// guardian rather than a single account. Receivers decide relevance from the
// payload's owner address and their own ward list.
const BroadcastGuardians = "_GUARDIANS_"

// PayloadOwnerAddress keys the original (pre-recovery) wallet owner address
// in a recovery-invite payload.
const PayloadOwnerAddress = "ownerAddress"

// Event is one record on the append-only notification log. The log is
// at-least-once: consumers must tolerate redelivery, which the channel does
// with a per-session timestamp watermark.
type Event struct {
	ID        uuid.UUID         `json:"id"`
	Kind      Kind              `json:"name"`
	Sender    string            `json:"sender"`
	Recipient string            `json:"recipient"`
	Payload   map[string]string `json:"payload,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// New stamps a fresh event with an ID and the current time.
func New(kind Kind, sender, recipient string, payload map[string]string) Event {
	return Event{
		ID:        uuid.New(),
		Kind:      kind,
		Sender:    sender,
		Recipient: recipient,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}
