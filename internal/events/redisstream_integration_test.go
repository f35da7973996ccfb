//go:build integration

package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mochifi/internal/events"
	"mochifi/pkg/testutil/containers"
)

type RedisLogSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	log   *events.RedisLog
	ctx   context.Context
}

func TestRedisLogSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLogSuite))
}

func (s *RedisLogSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redis = containers.NewRedisContainer(s.T())
	var err error
	s.log, err = events.NewRedisLog(s.redis.Client)
	s.Require().NoError(err)
}

func (s *RedisLogSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *RedisLogSuite) receive(ch <-chan events.Event) events.Event {
	select {
	case ev := <-ch:
		return ev
	case <-time.After(10 * time.Second):
		s.FailNow("timed out waiting for event")
		return events.Event{}
	}
}

// TestPublishSubscribe verifies events survive the stream round trip intact.
func (s *RedisLogSuite) TestPublishSubscribe() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	ch, err := s.log.Subscribe(ctx, time.Now().Add(-time.Minute))
	s.Require().NoError(err)

	sent := events.New(events.KindGuardianInvite, "terra1alice", "terra1bob",
		map[string]string{"note": "hello"})
	s.Require().NoError(s.log.Publish(s.ctx, sent))

	got := s.receive(ch)
	s.Equal(sent.ID, got.ID)
	s.Equal(sent.Kind, got.Kind)
	s.Equal(sent.Sender, got.Sender)
	s.Equal(sent.Recipient, got.Recipient)
	s.Equal(sent.Payload, got.Payload)
	s.WithinDuration(sent.Timestamp, got.Timestamp, time.Second)
}

// TestReplay verifies a subscriber starting from an earlier cursor sees
// events published before it attached.
func (s *RedisLogSuite) TestReplay() {
	before := time.Now().Add(-time.Minute)
	first := events.New(events.KindGuardianInvite, "terra1alice", "terra1bob", nil)
	second := events.New(events.KindGuardianInviteAck, "terra1bob", "terra1alice", nil)
	s.Require().NoError(s.log.Publish(s.ctx, first))
	s.Require().NoError(s.log.Publish(s.ctx, second))

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	ch, err := s.log.Subscribe(ctx, before)
	s.Require().NoError(err)

	s.Equal(first.ID, s.receive(ch).ID)
	s.Equal(second.ID, s.receive(ch).ID)
}

// TestSinceCursor verifies a subscriber starting from now skips the backlog.
func (s *RedisLogSuite) TestSinceCursor() {
	old := events.New(events.KindGuardianInvite, "terra1alice", "terra1bob", nil)
	s.Require().NoError(s.log.Publish(s.ctx, old))

	// Stream IDs are millisecond-resolution; step past the backlog entry.
	time.Sleep(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	ch, err := s.log.Subscribe(ctx, time.Now())
	s.Require().NoError(err)

	fresh := events.New(events.KindFundsReceived, "terra1carol", "terra1bob", nil)
	s.Require().NoError(s.log.Publish(s.ctx, fresh))

	s.Equal(fresh.ID, s.receive(ch).ID)
}
