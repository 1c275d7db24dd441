package domain

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/cockroachdb/errors"
)

// float32 overflow threshold under round-to-nearest: MaxFloat32 plus half an
// ulp at the top of the range (2^103).
var float32Overflow = math.MaxFloat32 + math.Ldexp(1, 103)

// Transform maps a validated document onto a fresh OutputRecord.
//
//	id        -> string, verbatim
//	latitude  -> float64 narrowed to float32
//	longitude -> float64 narrowed to float32
//	elevation -> float64 narrowed to float32
//	name      -> string, verbatim
//
// Every field is read before the record is built, so a failure never leaves
// a partially populated record behind.
func Transform(doc Document) (OutputRecord, error) {
	obj, ok := doc.(map[string]any)
	if !ok {
		return OutputRecord{}, &FieldError{Field: "(root)", Problem: FieldWrongType, Want: "object", Got: jsonType(doc)}
	}

	id, err := stringField(obj, "id")
	if err != nil {
		return OutputRecord{}, err
	}
	lat, err := float32Field(obj, "latitude")
	if err != nil {
		return OutputRecord{}, err
	}
	lon, err := float32Field(obj, "longitude")
	if err != nil {
		return OutputRecord{}, err
	}
	elev, err := float32Field(obj, "elevation")
	if err != nil {
		return OutputRecord{}, err
	}
	name, err := stringField(obj, "name")
	if err != nil {
		return OutputRecord{}, err
	}

	return OutputRecord{
		ID:        id,
		Latitude:  lat,
		Longitude: lon,
		Elevation: elev,
		Name:      name,
	}, nil
}

func stringField(obj map[string]any, field string) (string, error) {
	v, ok := obj[field]
	if !ok {
		return "", &FieldError{Field: field, Problem: FieldMissing}
	}
	s, ok := v.(string)
	if !ok {
		return "", &FieldError{Field: field, Problem: FieldWrongType, Want: "string", Got: jsonType(v)}
	}
	return s, nil
}

func float32Field(obj map[string]any, field string) (float32, error) {
	v, ok := obj[field]
	if !ok {
		return 0, &FieldError{Field: field, Problem: FieldMissing}
	}

	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := strconv.ParseFloat(n.String(), 64)
		// Out-of-range literals come back as ±Inf with ErrRange; keep them.
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, &FieldError{Field: field, Problem: FieldWrongType, Want: "float", Got: "number " + n.String()}
		}
		f = parsed
	case float64:
		f = n
	default:
		return 0, &FieldError{Field: field, Problem: FieldWrongType, Want: "float", Got: jsonType(v)}
	}
	return Narrow(f), nil
}

// Narrow converts a double to single precision with IEEE-754
// round-to-nearest. Magnitudes past the float32 range become infinities.
func Narrow(f float64) float32 {
	switch {
	case math.IsNaN(f), math.IsInf(f, 0):
		return float32(f)
	case f >= float32Overflow:
		return float32(math.Inf(1))
	case f <= -float32Overflow:
		return float32(math.Inf(-1))
	}
	return float32(f)
}
