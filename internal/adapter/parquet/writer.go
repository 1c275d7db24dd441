// Package parquet writes station records as Snappy-compressed Parquet files.
package parquet

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/parquet-go/parquet-go"

	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/domain"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/schema"
)

// avroSchemaKey matches the footer key parquet-avro writers use, so readers
// of that ecosystem recover the declared record schema.
const avroSchemaKey = "parquet.avro.schema"

const batchSize = 1024

// Writer is a primary sink that buffers rows and cuts a row group every time
// the buffered data reaches blockSize bytes.
type Writer struct {
	out       io.WriteCloser
	pw        *parquet.GenericWriter[domain.OutputRecord]
	batch     []domain.OutputRecord
	blockSize int64
	buffered  int64
	rowGroups int
}

// NewWriter creates a Writer over w. The Writer closes w on Close.
func NewWriter(w io.WriteCloser, out *schema.OutputSchema, blockSize int64) *Writer {
	pw := parquet.NewGenericWriter[domain.OutputRecord](w,
		parquet.Compression(&parquet.Snappy),
		parquet.KeyValueMetadata(avroSchemaKey, out.Codec().Schema()),
	)
	return &Writer{
		out:       w,
		pw:        pw,
		batch:     make([]domain.OutputRecord, 0, batchSize),
		blockSize: blockSize,
	}
}

// WriteRecord buffers one record.
func (w *Writer) WriteRecord(_ context.Context, rec domain.OutputRecord) error {
	w.batch = append(w.batch, rec)
	w.buffered += rowSize(rec)
	if len(w.batch) == cap(w.batch) {
		if err := w.writeBatch(); err != nil {
			return err
		}
	}
	if w.buffered >= w.blockSize {
		return w.flushRowGroup()
	}
	return nil
}

// RowGroups reports how many row groups were cut so far.
func (w *Writer) RowGroups() int { return w.rowGroups }

func (w *Writer) writeBatch() error {
	if len(w.batch) == 0 {
		return nil
	}
	if _, err := w.pw.Write(w.batch); err != nil {
		return errors.Wrap(err, "write parquet rows")
	}
	w.batch = w.batch[:0]
	return nil
}

func (w *Writer) flushRowGroup() error {
	if err := w.writeBatch(); err != nil {
		return err
	}
	if err := w.pw.Flush(); err != nil {
		return errors.Wrap(err, "flush parquet row group")
	}
	w.buffered = 0
	w.rowGroups++
	return nil
}

// Close writes the last row group and the footer, then closes the file.
func (w *Writer) Close() error {
	err := w.writeBatch()
	if err == nil && w.buffered > 0 {
		w.rowGroups++
	}
	if err == nil {
		err = errors.Wrap(w.pw.Close(), "close parquet writer")
	}
	return errors.CombineErrors(err, errors.Wrap(w.out.Close(), "close parquet file"))
}

// rowSize approximates the encoded size of rec: three 4-byte floats plus
// two length-prefixed strings.
func rowSize(rec domain.OutputRecord) int64 {
	return int64(3*4 + 4 + len(rec.ID) + 4 + len(rec.Name))
}
