// Package verifactu contains the application services of the compliance
// engine: the registry service around the ledger, the submission worker, the
// certificate monitor and the tenant configuration service.
package verifactu

import "time"

// Clock abstracts wall-clock time so the worker's eligibility predicate and
// flow-control spacing are testable without real timers.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock
type SystemClock struct{}

// Now returns the current time
func (SystemClock) Now() time.Time {
	return time.Now()
}
