// Package fserr defines the target dialect's error taxonomy: the fixed set
// of (errno, sqlstate) pairs the cursor reports to callers, and the mapping
// from host-engine errors onto that set.
package fserr

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/pingcap/errors"
)

// Kind identifies one taxonomy entry from spec.md §7.
type Kind string

const (
	SQLCompilation    Kind = "SQL_COMPILATION"
	MissingDatabase   Kind = "MISSING_DATABASE"
	MissingSchema     Kind = "MISSING_SCHEMA"
	ObjectNotExist    Kind = "OBJECT_DOES_NOT_EXIST"
	AlreadyExists     Kind = "ALREADY_EXISTS"
	BindError         Kind = "BIND_ERROR"
	IOError           Kind = "IO_ERROR"
	ConversionError   Kind = "CONVERSION_ERROR"
	DatabaseError     Kind = "DATABASE_ERROR"
	NotImplementedErr Kind = "NOT_IMPLEMENTED"
)

// taxonomy maps each Kind to its fixed errno/sqlstate pair.
var taxonomy = map[Kind]struct {
	Errno    int
	SQLState string
}{
	SQLCompilation:    {1003, "42000"},
	MissingDatabase:   {90105, "22000"},
	MissingSchema:     {90106, "22000"},
	ObjectNotExist:    {2003, "42S02"},
	AlreadyExists:     {2002, "42710"},
	BindError:         {2043, "02000"},
	IOError:           {91016, "22000"},
	ConversionError:   {100038, "22018"},
	DatabaseError:     {250002, "08003"},
	NotImplementedErr: {0, "HY000"},
}

// Error is the error type surfaced by the session engine. It carries the
// fixed errno/sqlstate for its Kind plus a human-readable message.
type Error struct {
	Kind     Kind
	Errno    int
	SQLState string
	Message  string
	cause    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%06d (%s): %s", e.Errno, e.SQLState, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a tagged Error of the given Kind.
func New(kind Kind, format string, args ...any) *Error {
	t := taxonomy[kind]
	return &Error{
		Kind:     kind,
		Errno:    t.Errno,
		SQLState: t.SQLState,
		Message:  fmt.Sprintf(format, args...),
		cause:    errors.Errorf(format, args...),
	}
}

// Wrap attaches a Kind and message to an underlying cause, preserving it
// for errors.Is/As and logging.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	t := taxonomy[kind]
	return &Error{
		Kind:     kind,
		Errno:    t.Errno,
		SQLState: t.SQLState,
		Message:  fmt.Sprintf(format, args...),
		cause:    errors.Wrapf(cause, format, args...),
	}
}

// MissingDatabaseFor builds the 90105 error naming the offending command.
func MissingDatabaseFor(command string) *Error {
	return New(MissingDatabase, "%s: no database selected", command)
}

// MissingSchemaFor builds the 90106 error naming the offending command.
func MissingSchemaFor(command string) *Error {
	return New(MissingSchema, "%s: no schema selected", command)
}

// As reports whether err is (or wraps) an *Error, writing it into target.
func As(err error, target **Error) bool {
	return stderrors.As(err, target)
}

// FromHost classifies an error returned by the host engine into the target
// taxonomy. tinySQL does not carry structured error codes, so classification
// is done on message shape — the same string-sniffing approach the teacher
// uses when it reports driver errors back to callers (see internal/apply).
func FromHost(err error) *Error {
	if err == nil {
		return nil
	}
	if fe, ok := err.(*Error); ok {
		return fe
	}
	msg := err.Error()
	switch {
	case containsAny(msg, "no such table", "table not found", "does not exist", "unknown table"):
		return Wrap(ObjectNotExist, err, "%s", msg)
	case containsAny(msg, "already exists", "duplicate"):
		return Wrap(AlreadyExists, err, "%s", msg)
	case containsAny(msg, "parse error", "syntax error", "unsupported"):
		return Wrap(SQLCompilation, err, "%s", msg)
	case containsAny(msg, "convert", "conversion", "invalid value for"):
		return Wrap(ConversionError, err, "%s", msg)
	case containsAny(msg, "bind", "parameter count"):
		return Wrap(BindError, err, "%s", msg)
	default:
		return Wrap(DatabaseError, err, "%s", msg)
	}
}

func containsAny(s string, subs ...string) bool {
	low := strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(low, sub) {
			return true
		}
	}
	return false
}
