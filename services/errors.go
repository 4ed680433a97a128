package services

// ErrorKind classifies failures of marketplace operations
type ErrorKind string

const (
	KindInvalidInput ErrorKind = "INVALID_INPUT"
	KindUnauthorized ErrorKind = "UNAUTHORIZED"
	KindNotFound     ErrorKind = "NOT_FOUND"
	KindInvalidState ErrorKind = "INVALID_STATE"
)

// StoreError is a caller-facing failure of a store or marketplace operation.
// Code is a stable machine-readable identifier, Message is safe to show.
type StoreError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *StoreError) Error() string {
	return e.Message
}

// Is matches any StoreError of the same kind, so errors.Is(err, ErrNotFound)
// holds for every not-found failure regardless of its code.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrInvalidInput = &StoreError{Kind: KindInvalidInput, Code: "VALIDATION_ERROR", Message: "invalid input"}
	ErrUnauthorized = &StoreError{Kind: KindUnauthorized, Code: "FORBIDDEN", Message: "not authorized"}
	ErrNotFound     = &StoreError{Kind: KindNotFound, Code: "NOT_FOUND", Message: "not found"}
	ErrInvalidState = &StoreError{Kind: KindInvalidState, Code: "INVALID_STATE", Message: "invalid state"}
)

func invalidInput(code, message string) error {
	return &StoreError{Kind: KindInvalidInput, Code: code, Message: message}
}

func unauthorized(code, message string) error {
	return &StoreError{Kind: KindUnauthorized, Code: code, Message: message}
}

func notFound(code, message string) error {
	return &StoreError{Kind: KindNotFound, Code: code, Message: message}
}

func invalidState(code, message string) error {
	return &StoreError{Kind: KindInvalidState, Code: code, Message: message}
}
