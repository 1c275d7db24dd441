package domain

// Document is a parsed JSON value: map[string]any for objects, []any for
// arrays, json.Number for numbers, string, bool or nil.
type Document = any

// RawRecord is one unprocessed input line. Position correlates error output
// with its source line; it is the byte offset within the partition for file
// input and "topic/partition@offset" for Kafka input.
type RawRecord struct {
	Position string
	Line     []byte
}

// OutputRecord is the typed structured form of a station row. Field order
// matches the output schema: id, latitude, longitude, elevation, name.
type OutputRecord struct {
	ID        string  `parquet:"id" json:"id"`
	Latitude  float32 `parquet:"latitude" json:"latitude"`
	Longitude float32 `parquet:"longitude" json:"longitude"`
	Elevation float32 `parquet:"elevation" json:"elevation"`
	Name      string  `parquet:"name" json:"name"`
}

// ErrorEntry is written once per failed record to the error channel.
type ErrorEntry struct {
	Position    string
	Line        []byte
	Diagnostics []string
}
