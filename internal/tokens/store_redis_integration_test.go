//go:build integration

package tokens

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"idhub/pkg/platform/sentinel"
	"idhub/pkg/requestcontext"
	"idhub/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	ctx   context.Context
	redis *containers.RedisContainer
	store *RedisStore
}

func (s *RedisStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redis = containers.NewRedisContainer(s.T())
	s.store = NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *RedisStoreSuite) TearDownSuite() {
	_ = s.redis.Client.Close()
	_ = s.redis.Container.Terminate(context.Background())
}

func (s *RedisStoreSuite) token(key string) Token {
	now := time.Now().UTC()
	token, err := NewConfirmationToken(key, Payload{
		Owner:    "req-1",
		Facility: FacilityRequestIdentity,
		Type:     "userName",
		Value:    "alice",
	}, now, now.Add(time.Hour))
	s.Require().NoError(err)
	return token
}

func (s *RedisStoreSuite) TestAddGetRemove() {
	s.Require().NoError(s.store.AddToken(s.ctx, s.token("t1")))
	s.Require().NoError(s.store.AddToken(s.ctx, s.token("t2")))

	all, err := s.store.GetAllTokens(s.ctx, KindConfirmation)
	s.Require().NoError(err)
	s.Len(all, 2)

	s.Require().NoError(s.store.RemoveToken(s.ctx, KindConfirmation, "t1"))
	all, err = s.store.GetAllTokens(s.ctx, KindConfirmation)
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.Equal("t2", all[0].Key)
}

func (s *RedisStoreSuite) TestAddDuplicateConflicts() {
	s.Require().NoError(s.store.AddToken(s.ctx, s.token("t1")))
	err := s.store.AddToken(s.ctx, s.token("t1"))
	s.True(errors.Is(err, sentinel.ErrConflict))
}

func (s *RedisStoreSuite) TestReplaceOverwrites() {
	s.Require().NoError(s.store.AddToken(s.ctx, s.token("t1")))

	replacement := s.token("t1")
	replacement.Payload = []byte(`{"owner":"entity-1","facility":"entityIdentity","type":"userName","value":"alice"}`)
	s.Require().NoError(s.store.ReplaceToken(s.ctx, replacement))

	all, err := s.store.GetAllTokens(s.ctx, KindConfirmation)
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	payload, err := all[0].ParsePayload()
	s.Require().NoError(err)
	s.Equal("entity-1", payload.Owner)
}

func (s *RedisStoreSuite) TestRemoveMissing() {
	err := s.store.RemoveToken(s.ctx, KindConfirmation, "nope")
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *RedisStoreSuite) TestExpiredTokenRejected() {
	past := time.Now().UTC().Add(-time.Hour)
	token, err := NewConfirmationToken("old", Payload{Owner: "req-1", Facility: FacilityRequestIdentity}, past.Add(-time.Hour), past)
	s.Require().NoError(err)
	err = s.store.AddToken(requestcontext.WithTime(s.ctx, time.Now().UTC()), token)
	s.True(errors.Is(err, sentinel.ErrInvalidState))
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}
