// Package ghcnd reads the fixed-width NOAA GHCN-Daily station inventory
// (ghcnd-stations.txt).
package ghcnd

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Station is one inventory row in the JSON shape the ETL consumes.
type Station struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation"`
	State     string  `json:"state,omitempty"`
	Name      string  `json:"name"`
}

// column is a 1-based inclusive character range from the inventory readme.
type column struct{ from, to int }

var (
	colID        = column{1, 11}
	colLatitude  = column{13, 20}
	colLongitude = column{22, 30}
	colElevation = column{32, 37}
	colState     = column{39, 40}
	colName      = column{42, 71}
)

func (c column) slice(line string) string {
	if len(line) < c.from {
		return ""
	}
	end := min(c.to, len(line))
	return strings.TrimSpace(line[c.from-1 : end])
}

// ParseStationLine decodes one inventory row.
func ParseStationLine(line string) (Station, error) {
	line = strings.TrimRight(line, "\r")
	if len(line) < colName.from {
		return Station{}, errors.Newf("station row too short: %d characters", len(line))
	}
	s := Station{
		ID:    colID.slice(line),
		State: colState.slice(line),
		Name:  colName.slice(line),
	}
	if s.ID == "" {
		return Station{}, errors.New("station row has no id")
	}

	var err error
	if s.Latitude, err = parseCoord(colLatitude.slice(line), "latitude"); err != nil {
		return Station{}, errors.Wrapf(err, "station %s", s.ID)
	}
	if s.Longitude, err = parseCoord(colLongitude.slice(line), "longitude"); err != nil {
		return Station{}, errors.Wrapf(err, "station %s", s.ID)
	}
	if s.Elevation, err = parseCoord(colElevation.slice(line), "elevation"); err != nil {
		return Station{}, errors.Wrapf(err, "station %s", s.ID)
	}
	return s, nil
}

func parseCoord(s, field string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse %s %q", field, s)
	}
	return v, nil
}

// ReadStations decodes every non-blank row of r. Rows that fail to decode
// are reported through skip and left out.
func ReadStations(r io.Reader, skip func(lineNo int, err error)) ([]Station, error) {
	var out []Station
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		s, err := ParseStationLine(line)
		if err != nil {
			if skip != nil {
				skip(n, err)
			}
			continue
		}
		out = append(out, s)
	}
	return out, errors.Wrap(sc.Err(), "read station inventory")
}
