package schema

import (
	"bytes"
	"encoding/json"
	"io"
	"unicode/utf8"

	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/domain"
)

// Parser turns a raw line into a document.
type Parser interface {
	Parse(line []byte) (domain.Document, error)
}

// JSONParser parses exactly one JSON value per line. Numbers are kept as
// json.Number so integer checks and float conversion both see the literal.
type JSONParser struct{}

// Parse implements Parser. Failures are always *domain.ParseError.
func (JSONParser) Parse(line []byte) (domain.Document, error) {
	return ParseDocument(line)
}

// ParseDocument decodes line into a Document. Trailing data after the first
// value is rejected, and so is invalid UTF-8, which the decoder would
// otherwise replace with U+FFFD and break verbatim string fields.
func ParseDocument(line []byte) (domain.Document, error) {
	if !utf8.Valid(line) {
		return nil, &domain.ParseError{Msg: "invalid UTF-8 in line"}
	}
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var doc domain.Document
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, &domain.ParseError{Msg: "empty line"}
		}
		return nil, &domain.ParseError{Msg: err.Error()}
	}

	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		return nil, &domain.ParseError{Msg: "unexpected data after top-level value"}
	}
	return doc, nil
}
