package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"idhub/internal/domain"
	"idhub/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *Memory
}

func (s *MemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	classes := NewClassRegistry(AttributeClass{Name: "staffClass", Allowed: []string{"email"}, Mandatory: []string{"userName"}})
	s.store = NewMemory(classes)
	s.store.RegisterGroup("/A")
	s.store.RegisterGroup("/A/B")
}

func (s *MemoryStoreSuite) createEntity() domain.EntityID {
	id, err := s.store.CreateEntity(s.ctx,
		domain.IdentityParam{TypeID: "userName", Value: "alice"},
		"sys:password", domain.EntityStateValid,
		[]domain.Attribute{{Name: "email", GroupPath: domain.RootGroup, Values: []string{"a@x.org"}}})
	s.Require().NoError(err)
	return id
}

func (s *MemoryStoreSuite) TestCreateEntityStoresIdentityAndAttributes() {
	id := s.createEntity()
	rec, ok := s.store.Entity(id)
	s.Require().True(ok)
	s.Equal(domain.EntityStateValid, rec.State)
	s.Equal("sys:password", rec.CredentialRequirement)
	s.Require().Len(rec.Identities, 1)
	s.Equal("alice", rec.Identities[0].Value)
	s.Require().Len(rec.Attributes, 1)
	s.Equal("email", rec.Attributes[0].Name)
}

func (s *MemoryStoreSuite) TestCreateEntityRejectsDuplicateIdentity() {
	s.createEntity()
	_, err := s.store.CreateEntity(s.ctx,
		domain.IdentityParam{TypeID: "userName", Value: "alice"},
		"", domain.EntityStateValid, nil)
	s.Require().Error(err)
	s.True(errors.Is(err, sentinel.ErrConflict))
}

func (s *MemoryStoreSuite) TestAddGroupMemberUnknownGroup() {
	id := s.createEntity()
	err := s.store.AddGroupMember(s.ctx, "/nope", id)
	s.Require().Error(err)
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *MemoryStoreSuite) TestAddGroupMemberTwiceConflicts() {
	id := s.createEntity()
	s.Require().NoError(s.store.AddGroupMember(s.ctx, "/A", id))
	err := s.store.AddGroupMember(s.ctx, "/A", id)
	s.True(errors.Is(err, sentinel.ErrConflict))
}

func (s *MemoryStoreSuite) TestSetAttributesReplacesByNameAndGroup() {
	id := s.createEntity()
	err := s.store.SetAttributes(s.ctx, id, []domain.Attribute{
		{Name: "email", GroupPath: domain.RootGroup, Values: []string{"new@x.org"}},
		{Name: "nickname", GroupPath: "/A", Values: []string{"al"}},
	})
	s.Require().NoError(err)
	rec, _ := s.store.Entity(id)
	s.Require().Len(rec.Attributes, 2)
	s.Equal([]string{"new@x.org"}, rec.Attributes[0].Values)
}

func (s *MemoryStoreSuite) TestClassConsistency() {
	attrs := []domain.Attribute{
		{Name: "email", GroupPath: "/A", Values: []string{"a@x.org"}},
		{Name: "userName", GroupPath: "/A", Values: []string{"alice"}},
	}
	s.NoError(s.store.CheckAttributeClassConsistency(s.ctx, attrs, "/A", []string{"staffClass"}))

	missingMandatory := attrs[:1]
	err := s.store.CheckAttributeClassConsistency(s.ctx, missingMandatory, "/A", []string{"staffClass"})
	s.True(errors.Is(err, sentinel.ErrInvalidState))

	err = s.store.CheckAttributeClassConsistency(s.ctx, attrs, "/A", []string{"unknown"})
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *MemoryStoreSuite) TestSetCredentialHashes() {
	id := s.createEntity()
	s.Require().NoError(s.store.SetCredential(s.ctx, id, "sys:password", "s3cret"))
	rec, _ := s.store.Entity(id)
	s.NotEqual("s3cret", rec.Credentials["sys:password"])
	s.True(s.store.VerifyCredential(id, "sys:password", "s3cret"))
	s.False(s.store.VerifyCredential(id, "sys:password", "wrong"))
}

func (s *MemoryStoreSuite) TestUpdateStatusCheckAndSet() {
	req := &domain.RegistrationRequest{ID: domain.NewRequestID(), Status: domain.RequestPending}
	s.Require().NoError(s.store.Create(s.ctx, req))

	s.Require().NoError(s.store.UpdateStatus(s.ctx, req.ID, domain.RequestPending, domain.RequestAccepted))

	err := s.store.UpdateStatus(s.ctx, req.ID, domain.RequestPending, domain.RequestAccepted)
	s.True(errors.Is(err, sentinel.ErrInvalidState))
}

func (s *MemoryStoreSuite) TestUpdateStatusRejectsIllegalTransition() {
	req := &domain.RegistrationRequest{ID: domain.NewRequestID(), Status: domain.RequestAccepted}
	s.Require().NoError(s.store.Create(s.ctx, req))
	err := s.store.UpdateStatus(s.ctx, req.ID, domain.RequestAccepted, domain.RequestRejected)
	s.True(errors.Is(err, sentinel.ErrInvalidState))
}

func (s *MemoryStoreSuite) TestAppendCommentsPersists() {
	req := &domain.RegistrationRequest{ID: domain.NewRequestID(), Status: domain.RequestPending}
	s.Require().NoError(s.store.Create(s.ctx, req))

	s.Require().NoError(s.store.AppendComments(s.ctx, req.ID, []domain.Comment{{Text: "looks fine", Public: true}}))

	got, err := s.store.Get(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Require().Len(got.Comments, 1)
	s.Equal("looks fine", got.Comments[0].Text)

	err = s.store.AppendComments(s.ctx, domain.NewRequestID(), []domain.Comment{{Text: "x"}})
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *MemoryStoreSuite) TestRunInTxRollsBackOnError() {
	boom := errors.New("boom")
	err := s.store.RunInTx(s.ctx, func(txCtx context.Context) error {
		_, err := s.store.CreateEntity(txCtx,
			domain.IdentityParam{TypeID: "userName", Value: "bob"},
			"", domain.EntityStateValid, nil)
		s.Require().NoError(err)
		s.Equal(1, s.store.EntityCount())
		return boom
	})
	s.Require().ErrorIs(err, boom)
	s.Equal(0, s.store.EntityCount())
}

func (s *MemoryStoreSuite) TestRunInTxCommitsOnSuccess() {
	err := s.store.RunInTx(s.ctx, func(txCtx context.Context) error {
		_, err := s.store.CreateEntity(txCtx,
			domain.IdentityParam{TypeID: "userName", Value: "bob"},
			"", domain.EntityStateValid, nil)
		return err
	})
	s.Require().NoError(err)
	s.Equal(1, s.store.EntityCount())
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}
