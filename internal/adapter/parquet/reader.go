package parquet

import (
	"github.com/cockroachdb/errors"
	"github.com/parquet-go/parquet-go"

	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/domain"
)

// ReadRecords loads every row of a primary output file.
func ReadRecords(path string) ([]domain.OutputRecord, error) {
	rows, err := parquet.ReadFile[domain.OutputRecord](path)
	if err != nil {
		return nil, errors.Wrapf(err, "read parquet file %s", path)
	}
	return rows, nil
}
