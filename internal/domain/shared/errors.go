package shared

// Domain error codes shared across aggregates. The HTTP layer maps them
// onto wire error codes and status.
const (
	CodeNotFound            = "NOT_FOUND"
	CodeAlreadyExists       = "ALREADY_EXISTS"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeInvalidState        = "INVALID_STATE"
	CodeTenantDisabled      = "TENANT_DISABLED"
)

// DomainError is a business rule violation with a stable code.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError carrying the same code, so copies with
// amended messages still compare equal to the sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// NewDomainError builds a DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

var (
	ErrNotFound            = NewDomainError(CodeNotFound, "resource not found")
	ErrAlreadyExists       = NewDomainError(CodeAlreadyExists, "resource already exists")
	ErrInvalidInput        = NewDomainError(CodeInvalidInput, "invalid input provided")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "resource was modified by another process")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "operation not allowed in the current state")
	ErrTenantDisabled      = NewDomainError(CodeTenantDisabled, "compliance processing is disabled for this tenant")
)
