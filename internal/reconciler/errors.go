package reconciler

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyStatement    = errors.New("settlement statement has no rows")
	ErrInvalidHeaderDate = errors.New("invalid settlement period date")
	ErrInvalidRow        = errors.New("invalid settlement row")
	ErrInvalidOrderType  = errors.New("order type must be COD_ or Electronic_")
)

// ParseError wraps one of the sentinel errors above with the offending cell.
type ParseError struct {
	Err    error
	Field  string
	Line   int
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s: %s %q on line %d", e.Err.Error(), e.Field, e.Value, e.Line)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
