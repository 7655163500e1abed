package notify

import (
	"context"
	"log/slog"
)

type asyncJob struct {
	address   string
	groupPath string
	toGroup   bool
	template  string
	params    map[string]string
}

// AsyncDispatcher decouples notification delivery from the acceptance
// transaction: Send* enqueue and return immediately, a worker delivers.
// When the inbox is full the notification is dropped with a warning rather
// than stalling finalization.
type AsyncDispatcher struct {
	next  Dispatcher
	inbox chan asyncJob
	log   *slog.Logger
}

func NewAsyncDispatcher(next Dispatcher, buffer int, log *slog.Logger) *AsyncDispatcher {
	if buffer <= 0 {
		buffer = 128
	}
	return &AsyncDispatcher{
		next:  next,
		inbox: make(chan asyncJob, buffer),
		log:   log,
	}
}

// Run delivers queued notifications until ctx is cancelled. Delivery errors
// are logged, not returned: one broken notification must not stop the worker.
func (d *AsyncDispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job := <-d.inbox:
			var err error
			if job.toGroup {
				err = d.next.SendNotificationToGroup(ctx, job.groupPath, job.template, job.params)
			} else {
				err = d.next.SendNotification(ctx, job.address, job.template, job.params)
			}
			if err != nil {
				d.log.Warn("notification delivery failed", "template", job.template, "error", err)
			}
		}
	}
}

func (d *AsyncDispatcher) SendNotification(_ context.Context, address, templateID string, params map[string]string) error {
	d.enqueue(asyncJob{address: address, template: templateID, params: params})
	return nil
}

func (d *AsyncDispatcher) SendNotificationToGroup(_ context.Context, groupPath, templateID string, params map[string]string) error {
	d.enqueue(asyncJob{groupPath: groupPath, toGroup: true, template: templateID, params: params})
	return nil
}

func (d *AsyncDispatcher) enqueue(job asyncJob) {
	select {
	case d.inbox <- job:
	default:
		d.log.Warn("notification inbox full, dropping", "template", job.template)
	}
}
