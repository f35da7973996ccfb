package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"mochifi/pkg/sentinel"
)

type MemoryDirectorySuite struct {
	suite.Suite
	dir *Memory
	ctx context.Context
}

func (s *MemoryDirectorySuite) SetupTest() {
	s.dir = NewMemory()
	s.ctx = context.Background()
}

func TestMemoryDirectorySuite(t *testing.T) {
	suite.Run(t, new(MemoryDirectorySuite))
}

func (s *MemoryDirectorySuite) record(username string) Record {
	return Record{
		Username:      username,
		IDAddress:     "terra1id" + username,
		WalletAddress: "terra1wallet" + username,
	}
}

// TestCreateAndLookup verifies registration and username resolution.
func (s *MemoryDirectorySuite) TestCreateAndLookup() {
	s.Run("creates and finds a record", func() {
		rec := s.record("alice")
		s.Require().NoError(s.dir.Create(s.ctx, rec))

		found, err := s.dir.Lookup(s.ctx, "alice")
		s.Require().NoError(err)
		s.Equal(rec, found)
	})

	s.Run("returns ErrNotFound for unknown username", func() {
		_, err := s.dir.Lookup(s.ctx, "nobody")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects duplicate username", func() {
		s.Require().NoError(s.dir.Create(s.ctx, s.record("bob")))
		err := s.dir.Create(s.ctx, s.record("bob"))
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})
}

// TestReverseLookup verifies address-to-username resolution and the Unknown
// fallback.
func (s *MemoryDirectorySuite) TestReverseLookup() {
	s.Require().NoError(s.dir.Create(s.ctx, s.record("alice")))

	username, err := s.dir.ReverseLookup(s.ctx, "terra1idalice")
	s.Require().NoError(err)
	s.Equal("alice", username)

	username, err = s.dir.ReverseLookup(s.ctx, "terra1unregistered")
	s.Require().NoError(err)
	s.Equal(UnknownUsername, username)
}

// TestUpdateAddress verifies post-recovery rebinding of a username.
func (s *MemoryDirectorySuite) TestUpdateAddress() {
	s.Require().NoError(s.dir.Create(s.ctx, s.record("alice")))
	s.Require().NoError(s.dir.UpdateAddress(s.ctx, "alice", "terra1newkey"))

	rec, err := s.dir.Lookup(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("terra1newkey", rec.IDAddress)

	username, err := s.dir.ReverseLookup(s.ctx, "terra1idalice")
	s.Require().NoError(err)
	s.Equal(UnknownUsername, username, "old address must no longer resolve")

	s.Require().ErrorIs(s.dir.UpdateAddress(s.ctx, "nobody", "terra1x"), sentinel.ErrNotFound)
}

// TestUsersFromAddresses verifies order-preserving resolution with fallback.
func (s *MemoryDirectorySuite) TestUsersFromAddresses() {
	s.Require().NoError(s.dir.Create(s.ctx, s.record("alice")))
	s.Require().NoError(s.dir.Create(s.ctx, s.record("bob")))

	users, err := UsersFromAddresses(s.ctx, s.dir, []string{"terra1idbob", "terra1mystery", "terra1idalice"})
	s.Require().NoError(err)
	s.Require().Len(users, 3)
	s.Equal("bob", users[0].Username)
	s.Equal(UnknownUsername, users[1].Username)
	s.Equal("terra1mystery", users[1].Address)
	s.Equal("alice", users[2].Username)
}
