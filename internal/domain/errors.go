package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// ParseError reports a line that is not a single valid JSON value.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string { return "parse json: " + e.Msg }

// SchemaViolation reports a document that broke one or more schema rules.
type SchemaViolation struct {
	Messages []string
}

func (e *SchemaViolation) Error() string {
	return fmt.Sprintf("schema violation: %d rule(s) failed", len(e.Messages))
}

// FieldProblem distinguishes the two field extraction failures.
type FieldProblem int

const (
	FieldMissing FieldProblem = iota + 1
	FieldWrongType
)

// FieldError reports a field that could not be mapped even though the
// document passed validation. It points at a schema/mapping mismatch.
type FieldError struct {
	Field   string
	Problem FieldProblem
	Want    string
	Got     string
}

func (e *FieldError) Error() string {
	if e.Problem == FieldMissing {
		return fmt.Sprintf("missing field '%s'", e.Field)
	}
	return fmt.Sprintf("field '%s': cannot convert %s to %s", e.Field, e.Got, e.Want)
}

// UnexpectedError wraps any other fault raised while processing one record.
type UnexpectedError struct {
	Cause error
}

func (e *UnexpectedError) Error() string { return "unexpected failure: " + e.Cause.Error() }

func (e *UnexpectedError) Unwrap() error { return e.Cause }

// Trace renders the cause with its stack, one entry per line.
func (e *UnexpectedError) Trace() []string {
	rendered := fmt.Sprintf("%+v", e.Cause)
	var lines []string
	for _, l := range strings.Split(rendered, "\n") {
		l = strings.TrimRight(l, " \t\r")
		if l == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

// Recovered turns a recovered panic value into an UnexpectedError with the
// stack of the recovering frame attached.
func Recovered(r any) *UnexpectedError {
	if err, ok := r.(error); ok {
		return &UnexpectedError{Cause: errors.WithStackDepth(errors.Wrap(err, "panic"), 1)}
	}
	return &UnexpectedError{Cause: errors.NewWithDepthf(1, "panic: %v", r)}
}

// Classify maps a per-record error onto its failed Outcome.
func Classify(err error) Outcome {
	var (
		pe *ParseError
		sv *SchemaViolation
		fe *FieldError
		ue *UnexpectedError
	)
	switch {
	case errors.As(err, &pe):
		return Failure(KindParseError, pe.Msg)
	case errors.As(err, &sv):
		return Failure(KindSchemaViolation, sv.Messages...)
	case errors.As(err, &fe):
		return Failure(KindFieldExtraction, fe.Error())
	case errors.As(err, &ue):
		return Failure(KindUnexpected, append([]string{ue.Error()}, ue.Trace()...)...)
	default:
		ue = &UnexpectedError{Cause: err}
		return Failure(KindUnexpected, append([]string{ue.Error()}, ue.Trace()...)...)
	}
}

// jsonType names the JSON type of a parsed value for diagnostics.
func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
