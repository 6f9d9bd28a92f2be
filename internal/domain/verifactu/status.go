package verifactu

// EntryStatus represents the transmission status of a registry entry
type EntryStatus string

const (
	// EntryStatusDormant is the initial status in requirement mode: the entry
	// is recorded locally and only transmitted after explicit activation.
	EntryStatusDormant EntryStatus = "DORMANT"
	// EntryStatusPending means the entry is waiting to be submitted.
	EntryStatusPending EntryStatus = "PENDING"
	// EntryStatusSending is the transient, worker-owned status while a
	// submission attempt is in flight.
	EntryStatusSending EntryStatus = "SENDING"
	// EntryStatusSent is terminal: the authority confirmed the record.
	EntryStatusSent EntryStatus = "SENT"
	// EntryStatusError means the last attempt failed transiently; the entry
	// re-enters the eligible pool once its backoff window elapses.
	EntryStatusError EntryStatus = "ERROR"
	// EntryStatusRejected is terminal: the authority explicitly rejected the
	// record. Rejected entries are never retried automatically.
	EntryStatusRejected EntryStatus = "REJECTED"
)

// IsValid checks if the status is a valid EntryStatus
func (s EntryStatus) IsValid() bool {
	switch s {
	case EntryStatusDormant, EntryStatusPending, EntryStatusSending,
		EntryStatusSent, EntryStatusError, EntryStatusRejected:
		return true
	}
	return false
}

// String returns the string representation of EntryStatus
func (s EntryStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further transitions are allowed
func (s EntryStatus) IsTerminal() bool {
	return s == EntryStatusSent || s == EntryStatusRejected
}

// allowedTransitions is the single authoritative edge set of the entry state
// machine. Anything not listed here is an invalid transition.
var allowedTransitions = map[EntryStatus][]EntryStatus{
	EntryStatusDormant: {EntryStatusPending},
	EntryStatusPending: {EntryStatusSending, EntryStatusError},
	EntryStatusSending: {EntryStatusSent, EntryStatusError, EntryStatusRejected},
	EntryStatusError:   {EntryStatusPending},
}

// CanTransitionTo reports whether the edge s -> target is allowed
func (s EntryStatus) CanTransitionTo(target EntryStatus) bool {
	for _, t := range allowedTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// InvoiceDirection indicates whether the invoice was issued or received
type InvoiceDirection string

const (
	DirectionIssued   InvoiceDirection = "ISSUED"
	DirectionReceived InvoiceDirection = "RECEIVED"
)

// IsValid checks if the direction is valid
func (d InvoiceDirection) IsValid() bool {
	return d == DirectionIssued || d == DirectionReceived
}

// ComplianceMode selects between continuous live transmission and
// requirement mode, where records stay dormant until the authority asks.
type ComplianceMode string

const (
	ModeLive        ComplianceMode = "LIVE"
	ModeRequirement ComplianceMode = "REQUIREMENT"
)

// IsValid checks if the compliance mode is valid
func (m ComplianceMode) IsValid() bool {
	return m == ModeLive || m == ModeRequirement
}

// Environment selects the authority endpoint environment
type Environment string

const (
	EnvironmentProduction Environment = "PRODUCTION"
	EnvironmentTesting    Environment = "TESTING"
)

// IsValid checks if the environment is valid
func (e Environment) IsValid() bool {
	return e == EnvironmentProduction || e == EnvironmentTesting
}
