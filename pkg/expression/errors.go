package expression

import (
	"errors"
	"fmt"
)

// EvaluationErrorKind classifies evaluation failures.
type EvaluationErrorKind string

const (
	KindUndefinedReference EvaluationErrorKind = "undefined_reference"
	KindUnknownSyntax      EvaluationErrorKind = "unknown_syntax"
	KindTypeMismatch       EvaluationErrorKind = "type_mismatch"
	KindInvalid            EvaluationErrorKind = "invalid"
)

// Sentinel errors matched by EvaluationError.Is.
var (
	ErrUndefinedReference = errors.New("undefined reference")
	ErrUnknownSyntax      = errors.New("unknown expression syntax")
	ErrTypeMismatch       = errors.New("expression result type mismatch")
	ErrInvalidExpression  = errors.New("invalid expression")
)

// EvaluationError carries the syntax and, when known, the reference that failed.
type EvaluationError struct {
	Kind      EvaluationErrorKind
	Syntax    string
	Reference string
	Err       error
}

func (e *EvaluationError) Error() string {
	msg := fmt.Sprintf("%s expression: %s", e.Syntax, e.sentinel().Error())
	if e.Reference != "" {
		msg += " " + e.Reference
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

func (e *EvaluationError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *EvaluationError) sentinel() error {
	switch e.Kind {
	case KindUndefinedReference:
		return ErrUndefinedReference
	case KindUnknownSyntax:
		return ErrUnknownSyntax
	case KindTypeMismatch:
		return ErrTypeMismatch
	default:
		return ErrInvalidExpression
	}
}

func undefinedReference(syntax, reference string, err error) *EvaluationError {
	return &EvaluationError{Kind: KindUndefinedReference, Syntax: syntax, Reference: reference, Err: err}
}

func invalid(syntax string, err error) *EvaluationError {
	return &EvaluationError{Kind: KindInvalid, Syntax: syntax, Err: err}
}

// IsUndefinedReference checks if an error is an undefined reference error.
func IsUndefinedReference(err error) bool {
	return errors.Is(err, ErrUndefinedReference)
}

// IsUnknownSyntax checks if an error is an unknown syntax error.
func IsUnknownSyntax(err error) bool {
	return errors.Is(err, ErrUnknownSyntax)
}
