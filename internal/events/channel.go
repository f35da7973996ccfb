package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mochifi/internal/domain"
	"mochifi/internal/platform/metrics"
	"mochifi/internal/state"
)

// Session is the slice of the state session the channel needs: dispatching
// reducer actions and reading the current snapshot for routing decisions.
type Session interface {
	Dispatch(action state.Action)
	Snapshot() state.State
}

// Channel consumes the notification log and turns relevant events into state
// actions. The log is at-least-once, so the channel keeps a per-session
// watermark of the last delivered timestamp: anything at or below it is a
// redelivery and is dropped. The watermark lives in memory only; after a
// restart, ledger reconciliation regenerates whatever a missed event would
// have triggered.
type Channel struct {
	log     Log
	session Session
	logger  *slog.Logger
	metrics *metrics.Metrics

	// Touched only by the Run goroutine.
	lastDelivered time.Time
}

type ChannelOption func(*Channel)

func WithChannelLogger(logger *slog.Logger) ChannelOption {
	return func(c *Channel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithChannelMetrics(m *metrics.Metrics) ChannelOption {
	return func(c *Channel) {
		c.metrics = m
	}
}

func NewChannel(log Log, session Session, opts ...ChannelOption) (*Channel, error) {
	if log == nil {
		return nil, fmt.Errorf("event log is required")
	}
	if session == nil {
		return nil, fmt.Errorf("session is required")
	}
	c := &Channel{
		log:     log,
		session: session,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run subscribes from now and processes events until ctx is cancelled.
func (c *Channel) Run(ctx context.Context) error {
	since := time.Now().UTC()
	c.lastDelivered = since
	stream, err := c.log.Subscribe(ctx, since)
	if err != nil {
		return fmt.Errorf("subscribe to event log: %w", err)
	}
	c.logger.Info("notification channel started")
	for ev := range stream {
		c.handle(ev)
	}
	return ctx.Err()
}

func (c *Channel) handle(ev Event) {
	if !ev.Timestamp.After(c.lastDelivered) {
		c.metrics.EventDiscarded("stale")
		c.logger.Debug("discarding redelivered event", "event_id", ev.ID, "kind", ev.Kind)
		return
	}
	// The log is totally ordered, so advancing over ignored events is safe:
	// only a redelivered prefix can carry an older timestamp.
	c.lastDelivered = ev.Timestamp

	snap := c.session.Snapshot()
	self := snap.Identity.Key.Address

	if ev.Sender == self {
		c.metrics.EventDiscarded("own")
		return
	}

	switch ev.Kind {
	case KindGuardianInvite:
		if ev.Recipient != self {
			c.discard(ev, "misaddressed")
			return
		}
		c.session.Dispatch(state.PushGuardianRequest(domain.GuardianRequest{WardAddress: ev.Sender}))

	case KindGuardianInviteAck:
		if ev.Recipient != self {
			c.discard(ev, "misaddressed")
			return
		}
		c.session.Dispatch(state.SetShouldReloadGuardians(true))

	case KindRecoveryInvite:
		if ev.Recipient != BroadcastGuardians {
			c.discard(ev, "misaddressed")
			return
		}
		owner := ev.Payload[PayloadOwnerAddress]
		if !isWard(snap, owner) {
			c.discard(ev, "not_a_ward")
			return
		}
		c.session.Dispatch(state.PushRecoveryRequest(domain.RecoveryRequest{WardAddress: owner, NewOwner: ev.Sender}))

	case KindRecoveryInviteAck:
		if ev.Recipient != self {
			c.discard(ev, "misaddressed")
			return
		}
		if !snap.IsRecovering {
			c.discard(ev, "not_recovering")
			return
		}
		c.session.Dispatch(state.SetShouldCheckRecoveryProgress(true))

	case KindFundsReceived:
		if ev.Recipient != self {
			c.discard(ev, "misaddressed")
			return
		}
		c.session.Dispatch(state.SetShouldRefreshBalance(true))

	default:
		c.discard(ev, "unknown_kind")
		return
	}

	c.metrics.EventProcessed(string(ev.Kind))
	c.logger.Info("event processed", "event_id", ev.ID, "kind", ev.Kind, "sender", ev.Sender)
}

func (c *Channel) discard(ev Event, reason string) {
	c.metrics.EventDiscarded(reason)
	c.logger.Debug("discarding event", "event_id", ev.ID, "kind", ev.Kind, "reason", reason)
}

func isWard(snap state.State, address string) bool {
	if address == "" {
		return false
	}
	for _, ward := range snap.Wards {
		if ward.Address == address {
			return true
		}
	}
	return false
}
