package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type MemoryLogSuite struct {
	suite.Suite
	log *Memory
	ctx context.Context
}

func (s *MemoryLogSuite) SetupTest() {
	s.log = NewMemory()
	s.ctx = context.Background()
}

func TestMemoryLogSuite(t *testing.T) {
	suite.Run(t, new(MemoryLogSuite))
}

func (s *MemoryLogSuite) collect(ch <-chan Event, n int) []Event {
	out := make([]Event, 0, n)
	deadline := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case ev := <-ch:
			out = append(out, ev)
		case <-deadline:
			s.FailNowf("timeout", "got %d of %d events", len(out), n)
		}
	}
	return out
}

// TestLiveDelivery verifies events published after subscribing arrive in
// order.
func (s *MemoryLogSuite) TestLiveDelivery() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	ch, err := s.log.Subscribe(ctx, time.Now().Add(-time.Minute))
	s.Require().NoError(err)

	first := New(KindGuardianInvite, "terra1a", "terra1b", nil)
	second := New(KindFundsReceived, "terra1a", "terra1b", nil)
	s.Require().NoError(s.log.Publish(s.ctx, first))
	s.Require().NoError(s.log.Publish(s.ctx, second))

	got := s.collect(ch, 2)
	s.Equal(first.ID, got[0].ID)
	s.Equal(second.ID, got[1].ID)
}

// TestReplayWithSinceFilter verifies late subscribers replay only events
// after their cursor.
func (s *MemoryLogSuite) TestReplayWithSinceFilter() {
	old := New(KindGuardianInvite, "terra1a", "terra1b", nil)
	old.Timestamp = time.Now().Add(-time.Hour)
	recent := New(KindFundsReceived, "terra1a", "terra1b", nil)
	s.Require().NoError(s.log.Publish(s.ctx, old))
	s.Require().NoError(s.log.Publish(s.ctx, recent))

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	ch, err := s.log.Subscribe(ctx, time.Now().Add(-time.Minute))
	s.Require().NoError(err)

	got := s.collect(ch, 1)
	s.Equal(recent.ID, got[0].ID)
}

// TestCancelClosesStream verifies the subscription channel closes on cancel.
func (s *MemoryLogSuite) TestCancelClosesStream() {
	ctx, cancel := context.WithCancel(s.ctx)
	ch, err := s.log.Subscribe(ctx, time.Now())
	s.Require().NoError(err)

	cancel()

	select {
	case _, open := <-ch:
		s.False(open)
	case <-time.After(2 * time.Second):
		s.FailNow("stream did not close after cancel")
	}
}
