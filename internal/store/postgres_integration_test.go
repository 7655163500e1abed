//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"idhub/internal/domain"
	"idhub/pkg/platform/sentinel"
	"idhub/pkg/platform/tx"
	"idhub/pkg/requestcontext"
	"idhub/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	ctx    context.Context
	pg     *containers.PostgresContainer
	store  *Postgres
	runner *tx.SQLRunner
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Now().UTC().Truncate(time.Second))
	s.pg = containers.NewPostgresContainer(s.T())
	s.Require().NoError(s.pg.Apply(s.ctx, Schema))
	classes := NewClassRegistry(AttributeClass{Name: "staffClass", Mandatory: []string{"userName"}})
	s.store = NewPostgres(s.pg.DB, classes)
	s.runner = tx.NewSQLRunner(s.pg.DB)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	_ = s.pg.DB.Close()
	_ = s.pg.Container.Terminate(context.Background())
}

func (s *PostgresStoreSuite) entity(user string) domain.EntityID {
	id, err := s.store.CreateEntity(s.ctx,
		domain.IdentityParam{TypeID: "userName", Value: user},
		"sys:password", domain.EntityStateValid,
		[]domain.Attribute{{Name: "email", GroupPath: domain.RootGroup, Values: []string{user + "@x.org"}}})
	s.Require().NoError(err)
	return id
}

func (s *PostgresStoreSuite) TestEntityLifecycle() {
	id := s.entity("alice")

	s.Require().NoError(s.store.RegisterGroup(s.ctx, "/staff"))
	s.Require().NoError(s.store.AddGroupMember(s.ctx, "/staff", id))

	err := s.store.AddGroupMember(s.ctx, "/nope", id)
	s.True(errors.Is(err, sentinel.ErrNotFound))

	err = s.store.AddGroupMember(s.ctx, "/staff", id)
	s.True(errors.Is(err, sentinel.ErrConflict))

	s.Require().NoError(s.store.SetAttributes(s.ctx, id, []domain.Attribute{
		{Name: "nickname", GroupPath: "/staff", Values: []string{"al"}},
	}))
	s.Require().NoError(s.store.SetAttributeClasses(s.ctx, id, "/staff", []string{"staffClass"}))
	s.Require().NoError(s.store.SetCredential(s.ctx, id, "sys:password", "s3cret"))
	s.Require().NoError(s.store.ScheduleEntityChange(s.ctx, id, domain.ScheduledChange{
		Operation:     domain.ScheduledOpDisable,
		ScheduledTime: requestcontext.Now(s.ctx).Add(24 * time.Hour),
	}))
}

func (s *PostgresStoreSuite) TestDuplicateIdentityConflicts() {
	s.entity("bob")
	_, err := s.store.CreateEntity(s.ctx,
		domain.IdentityParam{TypeID: "userName", Value: "bob"},
		"", domain.EntityStateValid, nil)
	s.True(errors.Is(err, sentinel.ErrConflict))
}

func (s *PostgresStoreSuite) TestRequestStatusCheckAndSet() {
	now := requestcontext.Now(s.ctx)
	req := &domain.RegistrationRequest{
		ID:        domain.NewRequestID(),
		FormName:  "signup",
		Status:    domain.RequestPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Require().NoError(s.store.Create(s.ctx, req))

	got, err := s.store.Get(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(domain.RequestPending, got.Status)

	s.Require().NoError(s.store.UpdateStatus(s.ctx, req.ID, domain.RequestPending, domain.RequestAccepted))
	err = s.store.UpdateStatus(s.ctx, req.ID, domain.RequestPending, domain.RequestAccepted)
	s.True(errors.Is(err, sentinel.ErrInvalidState))
}

func (s *PostgresStoreSuite) TestAppendCommentsSurvivesReload() {
	now := requestcontext.Now(s.ctx)
	req := &domain.RegistrationRequest{
		ID:        domain.NewRequestID(),
		FormName:  "signup",
		Status:    domain.RequestPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Require().NoError(s.store.Create(s.ctx, req))

	s.Require().NoError(s.store.AppendComments(s.ctx, req.ID, []domain.Comment{
		{Text: "checked the paperwork", AuthorID: "reviewer-1", Date: now, Public: true},
	}))
	s.Require().NoError(s.store.AppendComments(s.ctx, req.ID, []domain.Comment{
		{Text: "approved", AuthorID: "reviewer-2", Date: now, Public: false},
	}))

	got, err := s.store.Get(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Require().Len(got.Comments, 2)
	s.Equal("checked the paperwork", got.Comments[0].Text)
	s.Equal("approved", got.Comments[1].Text)
	s.False(got.Comments[1].Public)

	err = s.store.AppendComments(s.ctx, domain.NewRequestID(), []domain.Comment{{Text: "x"}})
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *PostgresStoreSuite) TestRunInTxRollsBack() {
	boom := errors.New("boom")
	var created domain.EntityID
	err := s.runner.RunInTx(s.ctx, func(txCtx context.Context) error {
		id, err := s.store.CreateEntity(txCtx,
			domain.IdentityParam{TypeID: "userName", Value: "carol"},
			"", domain.EntityStateValid, nil)
		if err != nil {
			return err
		}
		created = id
		return boom
	})
	s.Require().ErrorIs(err, boom)

	var exists bool
	s.Require().NoError(s.pg.DB.QueryRowContext(s.ctx,
		`SELECT EXISTS(SELECT 1 FROM entities WHERE id = $1)`, created.String()).Scan(&exists))
	s.False(exists)
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}
