package filesystem

import (
	"bufio"
	"context"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/domain"
)

// ErrorFile is the plain-text error channel. Every line is
// "<position>\t<text>": first the raw record, then each diagnostic. The file
// is only created when the first entry arrives.
type ErrorFile struct {
	path string
	f    *os.File
	w    *bufio.Writer
}

// NewErrorFile creates a lazily opened error channel at path.
func NewErrorFile(path string) *ErrorFile {
	return &ErrorFile{path: path}
}

// WriteEntry appends one failed record.
func (e *ErrorFile) WriteEntry(_ context.Context, entry domain.ErrorEntry) error {
	if e.w == nil {
		f, err := os.Create(e.path)
		if err != nil {
			return errors.Wrap(err, "create error file")
		}
		e.f = f
		e.w = bufio.NewWriter(f)
	}

	if err := e.writeLine(entry.Position, entry.Line); err != nil {
		return err
	}
	for _, d := range entry.Diagnostics {
		if err := e.writeLine(entry.Position, []byte(d)); err != nil {
			return err
		}
	}
	return nil
}

func (e *ErrorFile) writeLine(pos string, text []byte) error {
	e.w.WriteString(pos)
	e.w.WriteByte('\t')
	e.w.Write(text)
	// bufio errors are sticky, so checking the last write covers the line.
	return errors.Wrap(e.w.WriteByte('\n'), "write error entry")
}

// Close flushes and closes the file if one was created.
func (e *ErrorFile) Close() error {
	if e.f == nil {
		return nil
	}
	ferr := errors.Wrap(e.w.Flush(), "flush error file")
	cerr := errors.Wrap(e.f.Close(), "close error file")
	e.f, e.w = nil, nil
	return errors.CombineErrors(ferr, cerr)
}
