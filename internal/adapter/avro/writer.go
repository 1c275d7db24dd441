// Package avro writes station records as Avro object container files.
package avro

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/linkedin/goavro/v2"

	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/domain"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/schema"
)

// maxPending bounds how many decoded records wait for a block. Native maps
// are several times larger than their encoding, so a block closes at this
// count even when blockSize has not been reached.
const maxPending = 4096

// Writer is a primary sink producing one Snappy-compressed OCF file. Records
// are held until their encoded size reaches blockSize, or maxPending records
// are waiting, then written as a single OCF block.
type Writer struct {
	out       io.WriteCloser
	ocf       *goavro.OCFWriter
	schema    *schema.OutputSchema
	pending   []any
	buffered  int64
	blockSize int64
	scratch   []byte
	blocks    int
}

// NewWriter writes the OCF header to w. The Writer closes w on Close.
func NewWriter(w io.WriteCloser, out *schema.OutputSchema, blockSize int64) (*Writer, error) {
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           out.Codec(),
		CompressionName: goavro.CompressionSnappyLabel,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create ocf writer")
	}
	return &Writer{out: w, ocf: ocf, schema: out, blockSize: blockSize, pending: make([]any, 0, maxPending)}, nil
}

// WriteRecord buffers one record, emitting a block when the buffer is full.
func (w *Writer) WriteRecord(_ context.Context, rec domain.OutputRecord) error {
	encoded, err := w.schema.Encode(w.scratch[:0], rec)
	if err != nil {
		return errors.Wrap(err, "encode avro record")
	}
	w.scratch = encoded
	w.pending = append(w.pending, w.schema.Native(rec))
	w.buffered += int64(len(encoded))
	if w.buffered >= w.blockSize || len(w.pending) >= maxPending {
		return w.flush()
	}
	return nil
}

func (w *Writer) flush() error {
	if len(w.pending) == 0 {
		return nil
	}
	if err := w.ocf.Append(w.pending); err != nil {
		return errors.Wrap(err, "append ocf block")
	}
	clear(w.pending)
	w.pending = w.pending[:0]
	w.buffered = 0
	w.blocks++
	return nil
}

// Blocks reports how many OCF blocks were written so far.
func (w *Writer) Blocks() int { return w.blocks }

// Close writes any pending block and closes the file.
func (w *Writer) Close() error {
	err := w.flush()
	return errors.CombineErrors(err, errors.Wrap(w.out.Close(), "close avro file"))
}
