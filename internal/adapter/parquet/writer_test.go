package parquet

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/domain"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/schema"
)

func loadOutputSchema(t *testing.T) *schema.OutputSchema {
	t.Helper()
	text, err := os.ReadFile(filepath.Join("..", "..", "..", "schemas", "station.avsc"))
	require.NoError(t, err)
	out, err := schema.LoadOutputSchema(text)
	require.NoError(t, err)
	return out
}

func stations() []domain.OutputRecord {
	return []domain.OutputRecord{
		{ID: "USW00094846", Latitude: 41.9786, Longitude: -87.9047, Elevation: 201.8, Name: "CHICAGO OHARE INTL AP"},
		{ID: "ACW00011604", Latitude: 17.1167, Longitude: -61.7833, Elevation: 10.1, Name: "ST JOHNS COOLIDGE FLD"},
		{ID: "AQC00914000", Latitude: -14.3167, Longitude: -170.7667, Elevation: float32(math.Inf(1)), Name: "AASUFOU"},
	}
}

func writeAll(t *testing.T, path string, blockSize int64, recs []domain.OutputRecord) *Writer {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	w := NewWriter(f, loadOutputSchema(t), blockSize)
	for _, rec := range recs {
		require.NoError(t, w.WriteRecord(context.Background(), rec))
	}
	require.NoError(t, w.Close())
	return w
}

func TestWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part-m-00000.snappy.parquet")
	writeAll(t, path, 1<<20, stations())

	got, err := ReadRecords(path)
	require.NoError(t, err)
	if diff := cmp.Diff(stations(), got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestWriterFooterCarriesAvroSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part-m-00000.snappy.parquet")
	writeAll(t, path, 1<<20, stations())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	info, err := f.Stat()
	require.NoError(t, err)

	pf, err := parquet.OpenFile(f, info.Size())
	require.NoError(t, err)
	text, ok := pf.Lookup(avroSchemaKey)
	require.True(t, ok)
	assert.Contains(t, text, "Station")
}

func TestWriterCutsRowGroupsAtBlockSize(t *testing.T) {
	var recs []domain.OutputRecord
	for range 10 {
		recs = append(recs, stations()...)
	}
	smallest := rowSize(recs[0])
	for _, rec := range recs {
		smallest = min(smallest, rowSize(rec))
	}
	// A block smaller than any row makes every row close its own group.
	path := filepath.Join(t.TempDir(), "part-m-00000.snappy.parquet")
	w := writeAll(t, path, smallest-1, recs)
	assert.Equal(t, len(recs), w.RowGroups())

	got, err := parquet.ReadFile[domain.OutputRecord](path)
	require.NoError(t, err)
	assert.Len(t, got, len(recs))
}

func TestWriterGroupsRowsUpToBlockSize(t *testing.T) {
	recs := stations()
	// The first two rows fit under the block; the third row starts a second group.
	block := rowSize(recs[0]) + rowSize(recs[1])
	path := filepath.Join(t.TempDir(), "part-m-00000.snappy.parquet")
	w := writeAll(t, path, block, recs)

	assert.Equal(t, 2, w.RowGroups())
}

func TestWriterEmptyFileIsReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part-m-00000.snappy.parquet")
	w := writeAll(t, path, 1<<20, nil)
	assert.Zero(t, w.RowGroups())

	got, err := parquet.ReadFile[domain.OutputRecord](path)
	require.NoError(t, err)
	assert.Empty(t, got)
}
