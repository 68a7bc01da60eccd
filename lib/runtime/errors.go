package runtime

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind is the closed set of domain error kinds from spec §7.
type ErrorKind uint8

const (
	KindNotFound ErrorKind = iota
	KindWrongArity
	KindInvalidCast
	KindInvalidOperation
	KindInvalidAssignment
	KindModuleNotFound
	KindInvalidNumberLiteral
	KindUnexpectedClosure
	KindExpectedClosure
	KindRuntimeError
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindWrongArity:
		return "wrong number of arguments"
	case KindInvalidCast:
		return "invalid cast"
	case KindInvalidOperation:
		return "invalid operation"
	case KindInvalidAssignment:
		return "invalid assignment"
	case KindModuleNotFound:
		return "module not found"
	case KindInvalidNumberLiteral:
		return "invalid number literal"
	case KindUnexpectedClosure:
		return "unexpected closure"
	case KindExpectedClosure:
		return "expected closure"
	default:
		return "runtime error"
	}
}

// Position mirrors spec §3's per-expression source location.
type Position struct {
	Line, Column int
}

// LangError is the single error type every domain failure is wrapped in.
// Pos is attached once the error unwinds to the analyser/executor
// boundary (spec §7); it is zero until then.
type LangError struct {
	Kind ErrorKind
	Msg  string
	Pos  Position
	// structured payloads for the kinds that carry extra data (§7/§8)
	Expected, Actual int
	Variadic         bool
}

func (e *LangError) Error() string {
	if e.Pos.Line != 0 {
		return fmt.Sprintf("%s: %s (line %d, col %d)", e.Kind, e.Msg, e.Pos.Line, e.Pos.Column)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// WithPosition attaches the position of the last-visited expression,
// matching spec §4.3/§4.5's "raise ... with the position of the last
// visited expression" rule. It is a no-op on non-LangError causes and on
// LangErrors that already carry a position.
func WithPosition(err error, pos Position) error {
	if err == nil {
		return nil
	}
	var le *LangError
	cause := errors.Cause(err)
	if l, ok := cause.(*LangError); ok {
		le = l
	}
	if le == nil {
		return err
	}
	if le.Pos.Line == 0 {
		le.Pos = pos
	}
	return err
}

func NewNotFoundError(what string) error {
	return errors.WithStack(&LangError{Kind: KindNotFound, Msg: what + " not found"})
}

func NewWrongArityError(expected, actual int, variadic bool) error {
	return errors.WithStack(&LangError{
		Kind: KindWrongArity,
		Msg:  fmt.Sprintf("expected %d argument(s), got %d", expected, actual),
		Expected: expected, Actual: actual, Variadic: variadic,
	})
}

func NewInvalidCastError(from, to string) error {
	return errors.WithStack(&LangError{Kind: KindInvalidCast, Msg: fmt.Sprintf("cannot cast %s to %s", from, to)})
}

func NewInvalidOperationError(op OperatorKind, a, b Tag) error {
	return errors.WithStack(&LangError{Kind: KindInvalidOperation, Msg: fmt.Sprintf("operator undefined for %s and %s", a, b)})
}

func NewInvalidOperationErrorSimple(op string, t Tag) error {
	return errors.WithStack(&LangError{Kind: KindInvalidOperation, Msg: fmt.Sprintf("cannot %s a %s", op, t)})
}

func NewInvalidAssignmentError(msg string) error {
	return errors.WithStack(&LangError{Kind: KindInvalidAssignment, Msg: msg})
}

func NewModuleNotFoundError(path []string) error {
	return errors.WithStack(&LangError{Kind: KindModuleNotFound, Msg: fmt.Sprintf("module %v not found", path)})
}

func NewInvalidNumberLiteralError(lit string) error {
	return errors.WithStack(&LangError{Kind: KindInvalidNumberLiteral, Msg: fmt.Sprintf("invalid number literal %q", lit)})
}

func NewUnexpectedClosureError() error {
	return errors.WithStack(&LangError{Kind: KindUnexpectedClosure, Msg: "closures are not permitted here"})
}

func NewExpectedClosureError(name string) error {
	return errors.WithStack(&LangError{Kind: KindExpectedClosure, Msg: fmt.Sprintf("%s requires a closure argument", name)})
}

func NewRuntimeError(msg string) error {
	return errors.WithStack(&LangError{Kind: KindRuntimeError, Msg: msg})
}

func NewRuntimeErrorf(format string, args ...any) error {
	return errors.WithStack(&LangError{Kind: KindRuntimeError, Msg: fmt.Sprintf(format, args...)})
}

// AsLangError extracts the *LangError from a wrapped error, if any.
func AsLangError(err error) (*LangError, bool) {
	if err == nil {
		return nil, false
	}
	if le, ok := errors.Cause(err).(*LangError); ok {
		return le, true
	}
	return nil, false
}
