package schema

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/linkedin/goavro/v2"

	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/domain"
)

// outputFields is the column layout every output schema must declare, in
// order. It mirrors domain.OutputRecord.
var outputFields = []Field{
	{Name: "id", Type: "string"},
	{Name: "latitude", Type: "float"},
	{Name: "longitude", Type: "float"},
	{Name: "elevation", Type: "float"},
	{Name: "name", Type: "string"},
}

// Field is one column of the output schema.
type Field struct {
	Name string
	Type string
}

// OutputSchema is a parsed Avro record schema describing the primary output.
type OutputSchema struct {
	Name   string
	Fields []Field
	codec  *goavro.Codec
}

type avroRecord struct {
	Type      string      `json:"type"`
	Name      string      `json:"name"`
	Namespace string      `json:"namespace"`
	Fields    []avroField `json:"fields"`
}

type avroField struct {
	Name string          `json:"name"`
	Type json.RawMessage `json:"type"`
}

// LoadOutputSchema parses an Avro schema and checks that it declares exactly
// the five station columns with their expected primitive types and order.
func LoadOutputSchema(text []byte) (*OutputSchema, error) {
	codec, err := goavro.NewCodec(string(text))
	if err != nil {
		return nil, errors.Wrap(err, "parse output schema")
	}

	var rec avroRecord
	if err := json.Unmarshal(text, &rec); err != nil {
		return nil, errors.Wrap(err, "decode output schema")
	}
	if rec.Type != "record" {
		return nil, errors.Newf("output schema must be a record, got %q", rec.Type)
	}

	fields := make([]Field, 0, len(rec.Fields))
	for _, f := range rec.Fields {
		var typ string
		if err := json.Unmarshal(f.Type, &typ); err != nil {
			return nil, errors.Newf("output field %q: type must be a primitive name, got %s", f.Name, f.Type)
		}
		fields = append(fields, Field{Name: f.Name, Type: typ})
	}

	if len(fields) != len(outputFields) {
		return nil, errors.Newf("output schema declares %d fields, want %d", len(fields), len(outputFields))
	}
	for i, want := range outputFields {
		if fields[i] != want {
			return nil, errors.Newf("output field %d: got %s:%s, want %s:%s",
				i, fields[i].Name, fields[i].Type, want.Name, want.Type)
		}
	}

	name := rec.Name
	if rec.Namespace != "" {
		name = rec.Namespace + "." + rec.Name
	}
	return &OutputSchema{Name: name, Fields: fields, codec: codec}, nil
}

// Codec returns the goavro codec for the schema.
func (s *OutputSchema) Codec() *goavro.Codec { return s.codec }

// Native converts a record into the map form goavro encodes.
func (s *OutputSchema) Native(rec domain.OutputRecord) map[string]any {
	return map[string]any{
		"id":        rec.ID,
		"latitude":  rec.Latitude,
		"longitude": rec.Longitude,
		"elevation": rec.Elevation,
		"name":      rec.Name,
	}
}

// Encode serializes one record to Avro binary. It is used to size records
// against the block target.
func (s *OutputSchema) Encode(buf []byte, rec domain.OutputRecord) ([]byte, error) {
	out, err := s.codec.BinaryFromNative(buf, s.Native(rec))
	if err != nil {
		return nil, errors.Wrapf(err, "encode record %s", rec.ID)
	}
	return out, nil
}
