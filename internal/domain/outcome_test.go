package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Run("parse error", func(t *testing.T) {
		out := Classify(&ParseError{Msg: "invalid character 'n' looking for beginning of object key string"})
		assert.Equal(t, KindParseError, out.Kind)
		assert.Equal(t, []string{"invalid character 'n' looking for beginning of object key string"}, out.Diagnostics)
	})

	t.Run("schema violation keeps every message", func(t *testing.T) {
		out := Classify(&SchemaViolation{Messages: []string{"a", "b", "c"}})
		assert.Equal(t, KindSchemaViolation, out.Kind)
		assert.Equal(t, []string{"a", "b", "c"}, out.Diagnostics)
	})

	t.Run("field error", func(t *testing.T) {
		out := Classify(fmt.Errorf("transform: %w", &FieldError{Field: "name", Problem: FieldMissing}))
		assert.Equal(t, KindFieldExtraction, out.Kind)
		assert.Equal(t, []string{"missing field 'name'"}, out.Diagnostics)
	})

	t.Run("recovered panic carries a trace", func(t *testing.T) {
		out := Classify(Recovered("boom"))
		assert.Equal(t, KindUnexpected, out.Kind)
		require.NotEmpty(t, out.Diagnostics)
		assert.Equal(t, "unexpected failure: panic: boom", out.Diagnostics[0])
		assert.Greater(t, len(out.Diagnostics), 1, "expected stack lines after the message")
	})

	t.Run("unknown error is unexpected", func(t *testing.T) {
		out := Classify(errors.New("disk on fire"))
		assert.Equal(t, KindUnexpected, out.Kind)
		assert.Equal(t, "unexpected failure: disk on fire", out.Diagnostics[0])
	})
}

func TestOutcome_ErrorEntryFor(t *testing.T) {
	raw := RawRecord{Position: "120", Line: []byte(`{"id":"X"}`)}
	out := Failure(KindSchemaViolation, "line one\nline two", "carriage\r\nreturn")

	entry := out.ErrorEntryFor(raw)

	assert.Equal(t, "120", entry.Position)
	assert.Equal(t, raw.Line, entry.Line)
	assert.Equal(t, []string{"line oneline two", "carriagereturn"}, entry.Diagnostics)
	// The outcome itself is left untouched.
	assert.Equal(t, "line one\nline two", out.Diagnostics[0])
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "success", KindSuccess.String())
	assert.Equal(t, "schema_violation", KindSchemaViolation.String())
	assert.Equal(t, "unknown", Kind(99).String())
	assert.True(t, Success(OutputRecord{}).OK())
	assert.False(t, Failure(KindParseError).OK())
}
