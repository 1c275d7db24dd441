package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/domain"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/observability"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/pipeline"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/schema"
)

const (
	chicagoLine = `{"id":"USW00094846","latitude":41.9786,"longitude":-87.9048,"elevation":201.8,"name":"CHICAGO OHARE INTL AP"}`
	stJohnsLine = `{"id":"ACW00011604","latitude":17.1167,"longitude":-61.7833,"elevation":10.1,"name":"ST JOHNS COOLIDGE FLD"}`
)

var errDiskFull = errors.New("disk full")

func readSchema(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "schemas", name))
	require.NoError(t, err)
	return data
}

func stationConfig(t *testing.T) pipeline.WorkerConfig {
	t.Helper()
	return pipeline.WorkerConfig{
		InputSchema:  readSchema(t, "station.schema.json"),
		OutputSchema: readSchema(t, "station.avsc"),
	}
}

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

type memPrimary struct {
	records []domain.OutputRecord
	failErr error
	panics  bool
	closed  bool
}

func (m *memPrimary) WriteRecord(_ context.Context, rec domain.OutputRecord) error {
	if m.panics {
		panic("encoder exploded")
	}
	if m.failErr != nil {
		return m.failErr
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memPrimary) Close() error {
	m.closed = true
	return nil
}

type memErrors struct {
	entries []domain.ErrorEntry
	closed  bool
}

func (m *memErrors) WriteEntry(_ context.Context, entry domain.ErrorEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memErrors) Close() error {
	m.closed = true
	return nil
}

// memChannels hands out in-memory sinks and remembers them for inspection.
type memChannels struct {
	primary *memPrimary
	errs    *memErrors
	openErr error
	schema  *schema.OutputSchema
}

func newMemChannels() *memChannels {
	return &memChannels{primary: &memPrimary{}, errs: &memErrors{}}
}

func (m *memChannels) OpenPrimary(out *schema.OutputSchema) (pipeline.PrimarySink, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.schema = out
	return m.primary, nil
}

func (m *memChannels) OpenErrors() (pipeline.ErrorSink, error) {
	return m.errs, nil
}

type sliceSource struct {
	lines  []string
	next   int
	closed bool
}

func (s *sliceSource) Next(context.Context) (domain.RawRecord, error) {
	if s.next >= len(s.lines) {
		return domain.RawRecord{}, io.EOF
	}
	i := s.next
	s.next++
	return domain.RawRecord{Position: string(rune('a' + i)), Line: []byte(s.lines[i])}, nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

func newReadyWorker(t *testing.T, channels pipeline.ChannelOpener) *pipeline.Worker {
	t.Helper()
	w := pipeline.NewWorker(stationConfig(t), channels, discardLogger(), observability.NewMetricsForTesting())
	require.NoError(t, w.Init())
	return w
}
