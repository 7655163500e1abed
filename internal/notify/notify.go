// Package notify delivers registration lifecycle notifications to the
// requester and to form administrators.
package notify

//go:generate mockgen -source=notify.go -destination=mocks/mocks.go -package=mocks Dispatcher

import "context"

// Template identifiers for the registration flows.
const (
	TemplateRequestSubmitted = "registrationRequestSubmitted"
	TemplateRequestAccepted  = "registrationRequestAccepted"
	TemplateRequestRejected  = "registrationRequestRejected"
	TemplateNewRequestAdmin  = "newRegistrationRequestForAdmins"
)

// Dispatcher sends templated notifications. Implementations must tolerate
// being called after the originating transaction committed; delivery is
// best-effort and never rolls back an acceptance.
type Dispatcher interface {
	// SendNotification delivers one message to a single address.
	SendNotification(ctx context.Context, address, templateID string, params map[string]string) error
	// SendNotificationToGroup delivers to every member of an admin group.
	SendNotificationToGroup(ctx context.Context, groupPath, templateID string, params map[string]string) error
}

// NopDispatcher swallows notifications; used when no broker is configured.
type NopDispatcher struct{}

func (NopDispatcher) SendNotification(context.Context, string, string, map[string]string) error {
	return nil
}

func (NopDispatcher) SendNotificationToGroup(context.Context, string, string, map[string]string) error {
	return nil
}
