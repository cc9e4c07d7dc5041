package evdump

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNilValue is returned when asked to print a value that carries no type.
var ErrNilValue = errors.New("nil value")

// ShapeError reports a container whose begin and end iterators have
// different types. It aborts the whole print call.
type ShapeError struct {
	Container string
	Begin     string
	End       string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: begin (%s) and end (%s) are not the same type", e.Container, e.Begin, e.End)
}

// MemberError reports a value that could not be reached through the
// introspection layer: a member read that failed, an unresolvable dynamic
// type, a failed base cast or a panicking operation.
type MemberError struct {
	Type   string
	Member string
	Msg    string
	Err    error
}

func memberErrf(typ Type, member string, err error, format string, args ...any) error {
	var name string
	if typ != nil {
		name = typ.Name()
	}
	return &MemberError{name, member, fmt.Sprintf(format, args...), err}
}

func (e *MemberError) Unwrap() error {
	return e.Err
}

func (e *MemberError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Type)
	if e.Member != "" {
		buf.WriteByte('.')
		buf.WriteString(e.Member)
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

func isFatal(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}
