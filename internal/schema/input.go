package schema

import (
	"github.com/cockroachdb/errors"
	"github.com/xeipuuv/gojsonschema"

	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/domain"
)

// ValidationOutcome is Valid, or Invalid with one message per violated rule.
// Message order is whatever the schema engine reports.
type ValidationOutcome struct {
	Valid    bool
	Messages []string
}

// Validator checks a parsed document against a loaded schema.
type Validator interface {
	Validate(doc domain.Document) (ValidationOutcome, error)
}

// InputSchema is a compiled JSON Schema. It is immutable once loaded and safe
// to share read-only.
type InputSchema struct {
	schema *gojsonschema.Schema
}

// LoadInputSchema compiles a JSON Schema document. The schema itself is
// checked against its meta-schema: the draft named by $schema, or draft-07
// when none is given.
func LoadInputSchema(text []byte) (*InputSchema, error) {
	sl := gojsonschema.NewSchemaLoader()
	sl.Validate = true
	sl.Draft = gojsonschema.Draft7

	compiled, err := sl.Compile(gojsonschema.NewBytesLoader(text))
	if err != nil {
		return nil, errors.Wrap(err, "compile input schema")
	}
	return &InputSchema{schema: compiled}, nil
}

// Validate implements Validator. An error is returned only when the engine
// cannot evaluate the document at all; rule violations are an Invalid
// outcome.
func (s *InputSchema) Validate(doc domain.Document) (ValidationOutcome, error) {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return ValidationOutcome{}, errors.Wrap(err, "evaluate document")
	}
	if result.Valid() {
		return ValidationOutcome{Valid: true}, nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.Field()+": "+desc.Description())
	}
	return ValidationOutcome{Messages: msgs}, nil
}
