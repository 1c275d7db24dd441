package filesystem

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/pipeline"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/schema"
)

const (
	tempDir       = "_temporary"
	successMarker = "_SUCCESS"
)

// Format opens the primary sink of one partition over a freshly created file.
// The sink owns the file and closes it.
type Format struct {
	Extension string
	Open      func(f *os.File, out *schema.OutputSchema) (pipeline.PrimarySink, error)
}

// Committer stages each partition's output under <dir>/_temporary and moves
// it into <dir> only when the partition commits.
type Committer struct {
	dir    string
	format Format
}

// ResetOutput removes dir and everything in it, then recreates it empty.
func ResetOutput(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrap(err, "clear output path")
	}
	return errors.Wrap(os.MkdirAll(dir, 0o755), "create output path")
}

// NewCommitter creates a committer writing into dir.
func NewCommitter(dir string, format Format) (*Committer, error) {
	if err := os.MkdirAll(filepath.Join(dir, tempDir), 0o755); err != nil {
		return nil, errors.Wrap(err, "create staging directory")
	}
	return &Committer{dir: dir, format: format}, nil
}

// PrimaryName is the committed primary file of partition index.
func (c *Committer) PrimaryName(index int) string {
	return fmt.Sprintf("part-m-%05d%s", index, c.format.Extension)
}

// ErrorsName is the committed error file of partition index.
func ErrorsName(index int) string {
	return fmt.Sprintf("errors-m-%05d", index)
}

// Stage creates a clean staging area for one attempt of partition index.
func (c *Committer) Stage(index int) (pipeline.StagedOutput, error) {
	dir := filepath.Join(c.dir, tempDir, fmt.Sprintf("attempt-m-%05d", index))
	if err := os.RemoveAll(dir); err != nil {
		return nil, errors.Wrap(err, "clear previous attempt")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create attempt directory")
	}
	return &attempt{c: c, index: index, dir: dir}, nil
}

// CommitJob removes the staging root and writes the _SUCCESS marker.
func (c *Committer) CommitJob() error {
	if err := os.RemoveAll(filepath.Join(c.dir, tempDir)); err != nil {
		return errors.Wrap(err, "remove staging directory")
	}
	return errors.Wrap(os.WriteFile(filepath.Join(c.dir, successMarker), nil, 0o644), "write success marker")
}

type attempt struct {
	c         *Committer
	index     int
	dir       string
	committed bool
}

func (a *attempt) OpenPrimary(out *schema.OutputSchema) (pipeline.PrimarySink, error) {
	f, err := os.Create(filepath.Join(a.dir, a.c.PrimaryName(a.index)))
	if err != nil {
		return nil, errors.Wrap(err, "create primary file")
	}
	sink, err := a.c.format.Open(f, out)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return sink, nil
}

func (a *attempt) OpenErrors() (pipeline.ErrorSink, error) {
	return NewErrorFile(filepath.Join(a.dir, ErrorsName(a.index))), nil
}

// Commit moves every staged file into the output directory.
func (a *attempt) Commit() error {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return errors.Wrap(err, "list attempt directory")
	}
	for _, e := range entries {
		from := filepath.Join(a.dir, e.Name())
		to := filepath.Join(a.c.dir, e.Name())
		if err := os.Rename(from, to); err != nil {
			return errors.Wrapf(err, "move %s into output", e.Name())
		}
	}
	a.committed = true
	return errors.Wrap(os.RemoveAll(a.dir), "remove attempt directory")
}

// Abort discards the attempt. It does nothing once committed.
func (a *attempt) Abort() error {
	if a.committed {
		return nil
	}
	return errors.Wrap(os.RemoveAll(a.dir), "discard attempt")
}
