package core

// FieldError describes why one input field was rejected.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is a client error: its message and fields are safe to return as is.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

// NewValidationError wraps err as a client error. With no fields, err's message is shown instead.
func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

// NewFieldValidationError reports err against a single field, using err's message as the field's.
func NewFieldValidationError(field string, err error) error {
	return NewValidationError(err, FieldError{Field: field, Error: err.Error()})
}

func (verr *ValidationError) Error() string {
	if verr.Err == nil {
		return "invalid input"
	}
	return verr.Err.Error()
}

// Unwrap lets errors.Is match the reason, e.g. user.ErrEmailExists.
func (verr *ValidationError) Unwrap() error { return verr.Err }

// FieldMap returns the field errors keyed by field name, or nil when there are none.
func (verr *ValidationError) FieldMap() map[string]string {
	if len(verr.Fields) == 0 {
		return nil
	}
	m := make(map[string]string, len(verr.Fields))
	for _, fe := range verr.Fields {
		m[fe.Field] = fe.Error
	}
	return m
}
