package filesystem

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/domain"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/pipeline"
)

// FilePartition is one input file processed by one worker.
type FilePartition struct {
	index int
	path  string
}

// NewFilePartition creates a partition over path.
func NewFilePartition(index int, path string) *FilePartition {
	return &FilePartition{index: index, path: path}
}

func (p *FilePartition) Index() int   { return p.index }
func (p *FilePartition) Name() string { return p.path }

// Ack is a no-op: files need no acknowledgement.
func (p *FilePartition) Ack(context.Context) error { return nil }

// Open starts reading the file from the beginning.
func (p *FilePartition) Open(context.Context) (pipeline.RecordSource, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return nil, errors.Wrap(err, "open input")
	}
	return NewLineSource(f), nil
}

// ListPartitions returns one partition per input file. A directory is
// listed non-recursively; hidden files and names starting with "_" are
// skipped. Indices follow lexical order so re-runs name outputs identically.
func ListPartitions(inputPath string) ([]pipeline.Partition, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, errors.Wrap(err, "stat input path")
	}
	if !info.IsDir() {
		return []pipeline.Partition{NewFilePartition(0, inputPath)}, nil
	}

	entries, err := os.ReadDir(inputPath)
	if err != nil {
		return nil, errors.Wrap(err, "list input directory")
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]pipeline.Partition, len(names))
	for i, name := range names {
		parts[i] = NewFilePartition(i, filepath.Join(inputPath, name))
	}
	return parts, nil
}

// LineSource splits a reader into newline-terminated records keyed by the
// byte offset of each line. A trailing "\r" is dropped.
type LineSource struct {
	r      *bufio.Reader
	c      io.Closer
	offset int64
}

// NewLineSource reads lines from rc and closes it on Close.
func NewLineSource(rc io.ReadCloser) *LineSource {
	return &LineSource{r: bufio.NewReaderSize(rc, 64*1024), c: rc}
}

// Next returns the next line, or io.EOF after the last one.
func (s *LineSource) Next(context.Context) (domain.RawRecord, error) {
	line, err := s.r.ReadBytes('\n')
	if len(line) == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			return domain.RawRecord{}, io.EOF
		}
		return domain.RawRecord{}, errors.Wrap(err, "read line")
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return domain.RawRecord{}, errors.Wrap(err, "read line")
	}

	pos := s.offset
	s.offset += int64(len(line))

	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return domain.RawRecord{Position: strconv.FormatInt(pos, 10), Line: line}, nil
}

// Close closes the underlying reader.
func (s *LineSource) Close() error { return s.c.Close() }
