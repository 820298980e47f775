package store

import "fmt"

// NotFoundError indicates the resource was not found.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ValidationError indicates a client-side validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

// ForbiddenError indicates the caller holds none of the permitted roles.
type ForbiddenError struct{}

func (e *ForbiddenError) Error() string {
	return "forbidden"
}

// ConflictError indicates a uniqueness violation.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// DeleteStepError reports which step of the contact purge cascade failed.
// Steps before it have already committed; there is no enclosing transaction
// to roll them back, so callers need the step name to know how much was
// actually deleted.
type DeleteStepError struct {
	Step string
	Err  error
}

func (e *DeleteStepError) Error() string {
	return fmt.Sprintf("delete step %s failed: %v", e.Step, e.Err)
}

func (e *DeleteStepError) Unwrap() error {
	return e.Err
}
