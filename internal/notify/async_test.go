package notify

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type AsyncDispatcherSuite struct {
	suite.Suite
}

func TestAsyncDispatcherSuite(t *testing.T) {
	suite.Run(t, new(AsyncDispatcherSuite))
}

func (s *AsyncDispatcherSuite) TestDeliversQueuedNotifications() {
	sink := NewMemoryDispatcher()
	async := NewAsyncDispatcher(sink, 8, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = async.Run(ctx)
	}()

	s.Require().NoError(async.SendNotification(ctx, "a@x.org", TemplateRequestAccepted, map[string]string{"k": "v"}))
	s.Require().NoError(async.SendNotificationToGroup(ctx, "/admins", TemplateNewRequestAdmin, nil))

	s.Eventually(func() bool {
		return len(sink.Sent()) == 2
	}, time.Second, 10*time.Millisecond)

	sent := sink.Sent()
	s.Equal("a@x.org", sent[0].Address)
	s.Equal(TemplateRequestAccepted, sent[0].TemplateID)
	s.Equal("/admins", sent[1].GroupPath)

	cancel()
	<-done
}

func (s *AsyncDispatcherSuite) TestFullInboxDropsInsteadOfBlocking() {
	sink := NewMemoryDispatcher()
	async := NewAsyncDispatcher(sink, 1, slog.Default())

	// No worker running: second enqueue must not block.
	s.Require().NoError(async.SendNotification(context.Background(), "a@x.org", TemplateRequestAccepted, nil))
	s.Require().NoError(async.SendNotification(context.Background(), "b@x.org", TemplateRequestAccepted, nil))
}
