package notify

import (
	"context"
	"sync"
)

// Recorded is one captured notification.
type Recorded struct {
	Address    string
	GroupPath  string
	TemplateID string
	Params     map[string]string
}

// MemoryDispatcher records notifications for assertions in tests.
type MemoryDispatcher struct {
	mu   sync.Mutex
	sent []Recorded
}

func NewMemoryDispatcher() *MemoryDispatcher {
	return &MemoryDispatcher{}
}

func (d *MemoryDispatcher) SendNotification(_ context.Context, address, templateID string, params map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, Recorded{Address: address, TemplateID: templateID, Params: params})
	return nil
}

func (d *MemoryDispatcher) SendNotificationToGroup(_ context.Context, groupPath, templateID string, params map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, Recorded{GroupPath: groupPath, TemplateID: templateID, Params: params})
	return nil
}

// Sent returns a copy of everything recorded so far.
func (d *MemoryDispatcher) Sent() []Recorded {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Recorded(nil), d.sent...)
}
