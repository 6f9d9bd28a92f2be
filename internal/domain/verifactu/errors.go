package verifactu

import "errors"

var (
	// Certificate errors
	ErrInvalidCertificate = errors.New("certificate: container is corrupt or the password is wrong")
	ErrCertificateExpired = errors.New("certificate: certificate has expired")
	ErrCertificateMissing = errors.New("certificate: no certificate uploaded for tenant")

	// Registry errors
	ErrInvalidStateTransition = errors.New("registry: transition not allowed from current status")
	ErrSequenceConflict       = errors.New("registry: sequence allocation conflict, retry required")
	ErrChainBroken            = errors.New("registry: hash chain verification failed")

	// Transmission errors
	ErrTransientTransmission = errors.New("transmission: transient failure, will retry with backoff")
	ErrAuthorityRejection    = errors.New("transmission: record rejected by the authority")

	// Configuration errors
	ErrTenantNotConfigured = errors.New("config: tenant has no compliance configuration")
	ErrInvalidConfig       = errors.New("config: invalid tenant configuration")
)
