package verifactu

import (
	"time"

	"github.com/factuhub/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RegistryEntry is the ledger row of the compliance subsystem: one per
// invoice event, created exactly once, never deleted. The status field and
// the retry bookkeeping are its only mutable surface; everything feeding the
// hash chain is frozen at append time.
type RegistryEntry struct {
	shared.TenantEntity

	InvoiceID     uuid.UUID
	InvoiceNumber string
	Series        string
	Direction     InvoiceDirection
	IssueDate     time.Time
	Total         decimal.Decimal

	SequenceNumber int64
	PreviousHash   []byte
	CurrentHash    []byte

	SignedXMLRef string
	QRPayload    string
	QRURL        string
	Unsignable   bool

	Status           EntryStatus
	ConfirmationCode string
	ErrorMessage     string
	RetryCount       int
	NextRetryAt      *time.Time
	ActivatedAt      *time.Time
	SubmittedAt      *time.Time
}

// NewRegistryEntry creates the ledger row for an invoice event. The initial
// status depends on the tenant's compliance mode: requirement-mode entries
// start dormant and wait for explicit activation.
func NewRegistryEntry(event InvoiceEvent, seq int64, prevHash, hash []byte, initial EntryStatus) *RegistryEntry {
	return &RegistryEntry{
		TenantEntity:   shared.NewTenantEntity(event.TenantID),
		InvoiceID:      event.InvoiceID,
		InvoiceNumber:  event.InvoiceNumber,
		Series:         event.Series,
		Direction:      event.Direction,
		IssueDate:      event.IssueDate,
		Total:          event.Totals.Total,
		SequenceNumber: seq,
		PreviousHash:   prevHash,
		CurrentHash:    hash,
		Status:         initial,
	}
}

// ChainFields returns the canonical field set of this entry for hash
// verification and chain replay.
func (e *RegistryEntry) ChainFields() ChainFields {
	return ChainFields{
		TenantID:      e.TenantID,
		InvoiceID:     e.InvoiceID,
		InvoiceNumber: e.InvoiceNumber,
		Direction:     e.Direction,
		Sequence:      e.SequenceNumber,
		IssueDate:     e.IssueDate,
		Total:         e.Total,
	}
}

// ChainLink returns the audit view of this entry.
func (e *RegistryEntry) ChainLink() ChainLink {
	return ChainLink{
		Fields:       e.ChainFields(),
		PreviousHash: e.PreviousHash,
		CurrentHash:  e.CurrentHash,
	}
}

// transition enforces the state machine edge set. It is the only place that
// mutates Status.
func (e *RegistryEntry) transition(target EntryStatus) error {
	if !e.Status.CanTransitionTo(target) {
		return ErrInvalidStateTransition
	}
	e.Status = target
	e.UpdatedAt = time.Now()
	return nil
}

// Activate transitions a dormant (requirement mode) entry into the pending
// pool. Only valid from DORMANT.
func (e *RegistryEntry) Activate(now time.Time) error {
	if e.Status != EntryStatusDormant {
		return ErrInvalidStateTransition
	}
	if err := e.transition(EntryStatusPending); err != nil {
		return err
	}
	e.ActivatedAt = &now
	return nil
}

// MarkForRetry resets an errored entry back into the pending pool and clears
// its backoff window. Only valid from ERROR; in particular a REJECTED entry
// cannot be forced back to pending.
func (e *RegistryEntry) MarkForRetry() error {
	if e.Status != EntryStatusError {
		return ErrInvalidStateTransition
	}
	if err := e.transition(EntryStatusPending); err != nil {
		return err
	}
	e.NextRetryAt = nil
	e.ErrorMessage = ""
	return nil
}

// BeginSubmission marks the entry as owned by an in-flight submission attempt.
func (e *RegistryEntry) BeginSubmission(now time.Time) error {
	if err := e.transition(EntryStatusSending); err != nil {
		return err
	}
	e.SubmittedAt = &now
	return nil
}

// CompleteSubmission records the authority's confirmation.
func (e *RegistryEntry) CompleteSubmission(confirmationCode, qrURL string) error {
	if err := e.transition(EntryStatusSent); err != nil {
		return err
	}
	e.ConfirmationCode = confirmationCode
	if qrURL != "" {
		e.QRURL = qrURL
	}
	e.ErrorMessage = ""
	e.NextRetryAt = nil
	return nil
}

// Reject records an authority-level rejection. Terminal: no automatic retry,
// and no manual retry either until the operator resolves the reason out of
// band.
func (e *RegistryEntry) Reject(reason string) error {
	if err := e.transition(EntryStatusRejected); err != nil {
		return err
	}
	e.ErrorMessage = reason
	e.NextRetryAt = nil
	return nil
}

// FailTransient records a transient submission failure and schedules the
// next attempt. Valid from SENDING (network failure mid-attempt) and from
// PENDING (diverted before any attempt, e.g. expired certificate).
func (e *RegistryEntry) FailTransient(message string, nextRetry time.Time) error {
	if err := e.transition(EntryStatusError); err != nil {
		return err
	}
	e.ErrorMessage = message
	e.RetryCount++
	e.NextRetryAt = &nextRetry
	return nil
}

// MarkUnsignable degrades a freshly appended entry whose tenant certificate
// is missing, invalid or expired. The append itself still succeeds; the
// entry is recorded but never eligible for submission until retried after a
// certificate replacement.
func (e *RegistryEntry) MarkUnsignable(message string) {
	e.Unsignable = true
	e.Status = EntryStatusError
	e.ErrorMessage = message
	e.UpdatedAt = time.Now()
}

// EligibleAt reports whether the entry may be selected for submission at the
// given instant. Pending entries qualify immediately; errored entries
// qualify once their scheduled retry time has elapsed, except unsignable
// ones, which wait for a manual retry after a certificate replacement.
func (e *RegistryEntry) EligibleAt(now time.Time) bool {
	switch e.Status {
	case EntryStatusPending:
		return e.NextRetryAt == nil || !e.NextRetryAt.After(now)
	case EntryStatusError:
		return !e.Unsignable && e.NextRetryAt != nil && !e.NextRetryAt.After(now)
	default:
		return false
	}
}
