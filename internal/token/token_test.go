package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"
)

type TokenSuite struct {
	suite.Suite
	svc *Service
}

func (s *TokenSuite) SetupTest() {
	s.svc = NewService("test-signing-key", time.Hour)
}

func TestTokenSuite(t *testing.T) {
	suite.Run(t, new(TokenSuite))
}

// TestRoundTrip verifies a generated token validates and carries the expected
// claims.
func (s *TokenSuite) TestRoundTrip() {
	raw, err := s.svc.Generate()
	s.Require().NoError(err)

	claims, err := s.svc.Validate(raw)
	s.Require().NoError(err)
	s.Equal("operator", claims.Subject)
	s.Equal("mochifi", claims.Issuer)
	s.NotEmpty(claims.ID)
}

// TestUniqueIDs verifies each token gets its own identifier.
func (s *TokenSuite) TestUniqueIDs() {
	a, err := s.svc.Generate()
	s.Require().NoError(err)
	b, err := s.svc.Generate()
	s.Require().NoError(err)

	ca, err := s.svc.Validate(a)
	s.Require().NoError(err)
	cb, err := s.svc.Validate(b)
	s.Require().NoError(err)
	s.NotEqual(ca.ID, cb.ID)
}

// TestExpired verifies expiry surfaces as ErrExpiredToken.
func (s *TokenSuite) TestExpired() {
	expired := NewService("test-signing-key", -time.Minute)
	raw, err := expired.Generate()
	s.Require().NoError(err)

	_, err = expired.Validate(raw)
	s.Require().ErrorIs(err, ErrExpiredToken)
}

// TestInvalid covers garbage input, a wrong key, a wrong issuer, and an
// unexpected signing algorithm.
func (s *TokenSuite) TestInvalid() {
	s.Run("garbage", func() {
		_, err := s.svc.Validate("not-a-token")
		s.Require().ErrorIs(err, ErrInvalidToken)
	})

	s.Run("wrong key", func() {
		other := NewService("other-key", time.Hour)
		raw, err := other.Generate()
		s.Require().NoError(err)
		_, err = s.svc.Validate(raw)
		s.Require().ErrorIs(err, ErrInvalidToken)
	})

	s.Run("wrong issuer", func() {
		t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "operator",
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		raw, err := t.SignedString([]byte("test-signing-key"))
		s.Require().NoError(err)
		_, err = s.svc.Validate(raw)
		s.Require().ErrorIs(err, ErrInvalidToken)
	})

	s.Run("unsigned algorithm", func() {
		t := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Subject: "operator",
			Issuer:  "mochifi",
		})
		raw, err := t.SignedString(jwt.UnsafeAllowNoneSignatureType)
		s.Require().NoError(err)
		_, err = s.svc.Validate(raw)
		s.Require().ErrorIs(err, ErrInvalidToken)
	})
}
