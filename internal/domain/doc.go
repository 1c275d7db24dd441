// Package domain models NOAA GHCND station metadata records and the result
// of pushing one of them through the ETL.
//
// # Data Source
//
// Station metadata comes from the Global Historical Climatology Network Daily
// (GHCND) station inventory, ghcnd-stations.txt, published at
// https://www.ncei.noaa.gov/pub/data/ghcn/daily/. The fixed-width file is
// converted upstream (see cmd/genmock) into one JSON object per line:
//
//	{"id":"USW00094846","latitude":41.9786,"longitude":-87.9048,"elevation":201.8,"name":"CHICAGO OHARE INTL AP"}
//
// # Conventions
//
// Station IDs are 11 characters: a two letter FIPS country code, a network
// code, and a network-specific station number. Latitude and longitude are
// decimal degrees, elevation is metres; -999.9 is the NOAA sentinel for a
// missing elevation and is passed through unchanged.
//
// # Output
//
// [OutputRecord] is the five-column row written to the primary channel. The
// three numeric columns are single precision; [Narrow] performs the
// double-to-single conversion with IEEE-754 round-to-nearest and no other
// range policy, so validation owns range checks.
//
// # Failure classes
//
// Every record ends in exactly one [Outcome]:
//
//	success           fully built OutputRecord, primary channel
//	parse_error       line is not valid JSON ([ParseError])
//	schema_violation  JSON broke one or more schema rules ([SchemaViolation])
//	field_extraction  valid per schema but unmappable ([FieldError])
//	unexpected        any other fault, rendered with a stack ([UnexpectedError])
//
// Failed outcomes are written to the error channel as an [ErrorEntry]: the raw
// line first, then one line per diagnostic.
package domain
