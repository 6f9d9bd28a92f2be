package verifactu

import (
	"time"

	"github.com/google/uuid"
)

// EventKind classifies audit trail events
type EventKind string

const (
	EventKindRetry                 EventKind = "RETRY"
	EventKindRequirementActivation EventKind = "REQUIREMENT_ACTIVATION"
	EventKindSubmissionAttempt     EventKind = "SUBMISSION_ATTEMPT"
	EventKindStatusChange          EventKind = "STATUS_CHANGE"
	EventKindCertificateBlocked    EventKind = "CERTIFICATE_BLOCKED"
)

// SystemActor marks audit events produced by the engine itself rather than
// an operator.
const SystemActor = "system"

// TransmissionEvent is one immutable audit trail row referencing a registry
// entry. Created, never mutated or deleted.
type TransmissionEvent struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	EntryID   uuid.UUID
	Kind      EventKind
	Details   string
	Actor     string
	CreatedAt time.Time
}

// NewTransmissionEvent creates an audit event for a registry entry.
func NewTransmissionEvent(tenantID, entryID uuid.UUID, kind EventKind, details, actor string) *TransmissionEvent {
	if actor == "" {
		actor = SystemActor
	}
	return &TransmissionEvent{
		ID:        uuid.New(),
		TenantID:  tenantID,
		EntryID:   entryID,
		Kind:      kind,
		Details:   details,
		Actor:     actor,
		CreatedAt: time.Now(),
	}
}
