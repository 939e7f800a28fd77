package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers corrections and overrides an event organiser
	// must be able to account for later. Persisted fail-closed.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers state the operator must act on, such as sync
	// conflicts.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity: binds, queueing, replays.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        uuid.UUID
	Category  EventCategory
	Timestamp time.Time
	Action    string
	// Subject is the token code the event is about; history is listed by it.
	Subject      string
	RegistrantID string
	TerminalID   string
	OperationID  string
	// ActorID is the administrator for overrides and corrections.
	ActorID   string
	Issues    []string
	Reason    string
	Decision  string
	RequestID string
}

type AuditEvent string

const (
	EventBindingCreated           AuditEvent = "binding_created"
	EventBindingForced            AuditEvent = "binding_forced"
	EventBindingReset             AuditEvent = "binding_reset"
	EventTokenDamaged             AuditEvent = "token_damaged"
	EventOperationQueued          AuditEvent = "operation_queued"
	EventOperationReplayed        AuditEvent = "operation_replayed"
	EventSyncConflictDetected     AuditEvent = "sync_conflict_detected"
	EventSyncConflictAcknowledged AuditEvent = "sync_conflict_acknowledged"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventBindingForced:            CategoryCompliance,
	EventBindingReset:             CategoryCompliance,
	EventTokenDamaged:             CategoryCompliance,
	EventSyncConflictAcknowledged: CategoryCompliance,

	EventSyncConflictDetected: CategorySecurity,

	EventBindingCreated:    CategoryOperations,
	EventOperationQueued:   CategoryOperations,
	EventOperationReplayed: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Reader lists persisted events for one subject, oldest first.
type Reader interface {
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}

// Normalize fills the id, timestamp and category of an event about to be
// persisted. The category always follows the action.
func Normalize(event Event, now time.Time) Event {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now
	}
	event.Category = AuditEvent(event.Action).Category()
	if event.Issues != nil {
		event.Issues = append([]string(nil), event.Issues...)
	}
	return event
}
