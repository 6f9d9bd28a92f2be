package verifactu

import "time"

// BackoffPolicy computes the delay before an errored entry becomes eligible
// again: Base doubled per retry (Factor), capped at Cap. The exact curve is
// configuration, not a hard-coded contract.
type BackoffPolicy struct {
	Base   time.Duration
	Factor float64
	Cap    time.Duration
}

// DefaultBackoffPolicy returns the default curve: 60s base, factor 2, 1h cap.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		Base:   60 * time.Second,
		Factor: 2,
		Cap:    time.Hour,
	}
}

// Delay returns the backoff delay for the given retry count. retryCount is
// the attempt number just recorded, so the first failure (retryCount 1)
// waits exactly Base.
func (p BackoffPolicy) Delay(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	delay := float64(p.Base)
	for i := 1; i < retryCount; i++ {
		delay *= p.Factor
		if time.Duration(delay) >= p.Cap {
			return p.Cap
		}
	}
	d := time.Duration(delay)
	if d > p.Cap {
		return p.Cap
	}
	return d
}
