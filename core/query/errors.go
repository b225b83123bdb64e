package query

import "errors"

var (
	// ErrUnknownOperator is returned for a $-prefixed key that is neither a
	// built-in operator nor a registered filter function.
	ErrUnknownOperator = errors.New("unknown filter operator")
	// ErrTypeMismatch is returned when an operand or a field value has a type
	// the operator cannot work with.
	ErrTypeMismatch = errors.New("filter type mismatch")
	// ErrInvalidFilter is returned for structurally malformed filters.
	ErrInvalidFilter = errors.New("invalid filter")
)
