package domain

import "strings"

// Kind classifies how a record left the worker.
type Kind int

const (
	KindSuccess Kind = iota
	KindParseError
	KindSchemaViolation
	KindFieldExtraction
	KindUnexpected
)

var kindNames = [...]string{
	KindSuccess:         "success",
	KindParseError:      "parse_error",
	KindSchemaViolation: "schema_violation",
	KindFieldExtraction: "field_extraction",
	KindUnexpected:      "unexpected",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// MarshalText renders the kind by name so it can key JSON objects.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Outcome is the tagged result of processing one record. Record is only
// meaningful for KindSuccess; Diagnostics only for the failure kinds.
type Outcome struct {
	Kind        Kind
	Record      OutputRecord
	Diagnostics []string
}

// Success wraps a fully built record.
func Success(rec OutputRecord) Outcome {
	return Outcome{Kind: KindSuccess, Record: rec}
}

// Failure builds a failed outcome of the given kind.
func Failure(kind Kind, diagnostics ...string) Outcome {
	return Outcome{Kind: kind, Diagnostics: diagnostics}
}

// OK reports whether the outcome belongs on the primary channel.
func (o Outcome) OK() bool { return o.Kind == KindSuccess }

// ErrorEntryFor pairs a failed outcome with its source record. Diagnostics
// are sanitized so each occupies exactly one line.
func (o Outcome) ErrorEntryFor(raw RawRecord) ErrorEntry {
	diags := make([]string, len(o.Diagnostics))
	for i, d := range o.Diagnostics {
		diags[i] = SanitizeDiagnostic(d)
	}
	return ErrorEntry{Position: raw.Position, Line: raw.Line, Diagnostics: diags}
}

var lineBreaks = strings.NewReplacer("\r", "", "\n", "")

// SanitizeDiagnostic strips embedded carriage returns and newlines.
func SanitizeDiagnostic(s string) string {
	return lineBreaks.Replace(s)
}
