package avro

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/linkedin/goavro/v2"

	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/domain"
)

// ReadRecords loads every record of an OCF primary output file.
func ReadRecords(path string) ([]domain.OutputRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open avro file")
	}
	defer f.Close()

	r, err := goavro.NewOCFReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read ocf header of %s", path)
	}
	var out []domain.OutputRecord
	for r.Scan() {
		datum, err := r.Read()
		if err != nil {
			return nil, errors.Wrapf(err, "read ocf record %d", len(out))
		}
		rec, err := fromNative(datum)
		if err != nil {
			return nil, errors.Wrapf(err, "record %d", len(out))
		}
		out = append(out, rec)
	}
	return out, errors.Wrap(r.Err(), "scan ocf blocks")
}

func fromNative(datum any) (domain.OutputRecord, error) {
	m, ok := datum.(map[string]any)
	if !ok {
		return domain.OutputRecord{}, errors.Newf("datum is %T, want record", datum)
	}
	var rec domain.OutputRecord
	var okID, okLat, okLon, okElev, okName bool
	rec.ID, okID = m["id"].(string)
	rec.Latitude, okLat = m["latitude"].(float32)
	rec.Longitude, okLon = m["longitude"].(float32)
	rec.Elevation, okElev = m["elevation"].(float32)
	rec.Name, okName = m["name"].(string)
	if !okID || !okLat || !okLon || !okElev || !okName {
		return domain.OutputRecord{}, errors.New("record does not match the station schema")
	}
	return rec, nil
}
