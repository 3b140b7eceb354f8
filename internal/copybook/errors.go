// File path: internal/copybook/errors.go
package copybook

import (
	"errors"
	"fmt"
)

// Code identifies a failure class in the definition, layout or decode stages.
type Code string

const (
	CodeUnsupportedUsage       Code = "UnsupportedUsage"
	CodeInvalidCharCount       Code = "InvalidCharCount"
	CodeDigitCountTooLarge     Code = "DigitCountTooLarge"
	CodeDuplicateConditionName Code = "DuplicateConditionName"
	CodeMultipleRoots          Code = "MultipleRoots"
	CodeEmptyCopybook          Code = "EmptyCopybook"
	CodeLevelOutOfOrder        Code = "LevelOutOfOrder"

	CodeUnknownRedefinesTarget Code = "UnknownRedefinesTarget"
	CodeRecordTooLarge         Code = "RecordTooLarge"

	CodeRecordLengthMismatch Code = "RecordLengthMismatch"
	CodeInvalidDigit         Code = "InvalidDigit"
	CodeInvalidNibble        Code = "InvalidNibble"
)

// Sentinels for errors.Is matching against any error carrying the same code.
var (
	ErrUnsupportedUsage       = codeError(CodeUnsupportedUsage)
	ErrInvalidCharCount       = codeError(CodeInvalidCharCount)
	ErrDigitCountTooLarge     = codeError(CodeDigitCountTooLarge)
	ErrDuplicateConditionName = codeError(CodeDuplicateConditionName)
	ErrMultipleRoots          = codeError(CodeMultipleRoots)
	ErrEmptyCopybook          = codeError(CodeEmptyCopybook)
	ErrLevelOutOfOrder        = codeError(CodeLevelOutOfOrder)

	ErrUnknownRedefinesTarget = codeError(CodeUnknownRedefinesTarget)
	ErrRecordTooLarge         = codeError(CodeRecordTooLarge)

	ErrRecordLengthMismatch = codeError(CodeRecordLengthMismatch)
	ErrInvalidDigit         = codeError(CodeInvalidDigit)
	ErrInvalidNibble        = codeError(CodeInvalidNibble)
)

type codeError Code

func (c codeError) Error() string { return "copybook: " + string(c) }

// DefinitionError reports a structurally invalid copybook. No partial tree is
// returned alongside it.
type DefinitionError struct {
	Code  Code
	Label string
	Level int
	Msg   string
}

func (e *DefinitionError) Error() string {
	return formatError("definition", e.Code, e.Label, e.Msg)
}

func (e *DefinitionError) Is(target error) bool {
	c, ok := target.(codeError)
	return ok && Code(c) == e.Code
}

// LayoutError reports a tree whose storage cannot be resolved.
type LayoutError struct {
	Code  Code
	Label string
	Msg   string
}

func (e *LayoutError) Error() string {
	return formatError("layout", e.Code, e.Label, e.Msg)
}

func (e *LayoutError) Is(target error) bool {
	c, ok := target.(codeError)
	return ok && Code(c) == e.Code
}

// DecodeError is scoped to a single record. Offset is the absolute byte offset
// of the offending field, or -1 for record-level failures.
type DecodeError struct {
	Code   Code
	Path   string
	Offset int
	Msg    string
}

func (e *DecodeError) Error() string {
	msg := e.Msg
	if e.Offset >= 0 {
		msg = fmt.Sprintf("%s (offset %d)", e.Msg, e.Offset)
	}
	return formatError("decode", e.Code, e.Path, msg)
}

func (e *DecodeError) Is(target error) bool {
	c, ok := target.(codeError)
	return ok && Code(c) == e.Code
}

// CodeOf extracts the failure code from any error produced by this package.
func CodeOf(err error) (Code, bool) {
	var def *DefinitionError
	if errors.As(err, &def) {
		return def.Code, true
	}
	var lay *LayoutError
	if errors.As(err, &lay) {
		return lay.Code, true
	}
	var dec *DecodeError
	if errors.As(err, &dec) {
		return dec.Code, true
	}
	return "", false
}

func formatError(stage string, code Code, subject, msg string) string {
	if subject == "" {
		return fmt.Sprintf("copybook %s: %s: %s", stage, code, msg)
	}
	return fmt.Sprintf("copybook %s: %s: %s: %s", stage, code, subject, msg)
}

func definitionErr(code Code, label string, level int, format string, args ...interface{}) error {
	return &DefinitionError{Code: code, Label: label, Level: level, Msg: fmt.Sprintf(format, args...)}
}

func layoutErr(code Code, label string, format string, args ...interface{}) error {
	return &LayoutError{Code: code, Label: label, Msg: fmt.Sprintf(format, args...)}
}

func decodeErr(code Code, path string, offset int, format string, args ...interface{}) error {
	return &DecodeError{Code: code, Path: path, Offset: offset, Msg: fmt.Sprintf(format, args...)}
}
