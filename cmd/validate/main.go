// Command validate checks a finished ETL output directory against the input
// it was produced from: the job completed, every input line landed in
// exactly one channel, valid stations kept their values, and every error
// entry carries its raw line and at least one diagnostic.
//
// Usage:
//
//	go run ./cmd/validate --input data/mock/stations.jsonl --output out/
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alexflint/go-arg"
	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	avroadapter "github.com/erik-ytterman/nooa-climate-stations-etl/internal/adapter/avro"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/adapter/filesystem"
	parquetadapter "github.com/erik-ytterman/nooa-climate-stations-etl/internal/adapter/parquet"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/domain"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/schema"
)

type args struct {
	Input  string `arg:"--input,required" help:"input file or directory the job read"`
	Output string `arg:"--output,required" help:"output directory the job wrote"`
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// inputLine is one line of a partition with its byte offset.
type inputLine struct {
	pos  string
	line []byte
}

// errorEntry is one failed record read back from an errors-m file.
type errorEntry struct {
	pos   string
	raw   string
	diags []string
}

// partitionOutput is everything the job wrote for one partition.
type partitionOutput struct {
	index   int
	name    string
	input   []inputLine
	records []domain.OutputRecord
	errors  []errorEntry
}

func main() {
	var a args
	arg.MustParse(&a)
	os.Exit(run(a.Input, a.Output, os.Stdout))
}

func run(input, output string, w io.Writer) int {
	fmt.Fprintln(w, "=== Station ETL Output Validation ===")
	fmt.Fprintln(w)

	parts, err := loadPartitions(input, output)
	if err != nil {
		fmt.Fprintf(w, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateCompletion(output),
		validateExclusivity(parts),
		validateFidelity(parts),
		validateErrorEntries(parts),
	}

	allPassed := true
	for _, p := range phases {
		if p.passed() {
			fmt.Fprintf(w, "PASS  %s\n", p.name)
			continue
		}
		allPassed = false
		fmt.Fprintf(w, "FAIL  %s (%d issues)\n", p.name, len(p.errors))
		for _, e := range p.errors {
			fmt.Fprintf(w, "      - %s\n", e)
		}
	}

	fmt.Fprintln(w)
	if !allPassed {
		fmt.Fprintln(w, "Result: FAILED")
		return 1
	}
	fmt.Fprintln(w, "Result: ALL PASSED")
	return 0
}

func loadPartitions(input, output string) ([]partitionOutput, error) {
	parts, err := filesystem.ListPartitions(input)
	if err != nil {
		return nil, err
	}
	out := make([]partitionOutput, 0, len(parts))
	for _, p := range parts {
		src, err := p.Open(context.Background())
		if err != nil {
			return nil, err
		}
		po := partitionOutput{index: p.Index(), name: p.Name()}
		for {
			raw, err := src.Next(context.Background())
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				src.Close()
				return nil, err
			}
			po.input = append(po.input, inputLine{pos: raw.Position, line: raw.Line})
		}
		src.Close()

		if po.records, err = readPrimary(output, p.Index()); err != nil {
			return nil, err
		}
		if po.errors, err = readErrors(filepath.Join(output, filesystem.ErrorsName(p.Index()))); err != nil {
			return nil, err
		}
		out = append(out, po)
	}
	return out, nil
}

func readPrimary(output string, index int) ([]domain.OutputRecord, error) {
	matches, err := filepath.Glob(filepath.Join(output, fmt.Sprintf("part-m-%05d.*", index)))
	if err != nil {
		return nil, err
	}
	if len(matches) != 1 {
		return nil, errors.Newf("partition %d: want one primary file, found %d", index, len(matches))
	}
	path := matches[0]
	switch {
	case strings.HasSuffix(path, ".parquet"):
		return parquetadapter.ReadRecords(path)
	case strings.HasSuffix(path, ".avro"):
		return avroadapter.ReadRecords(path)
	}
	return nil, errors.Newf("unknown primary format: %s", path)
}

// readErrors groups consecutive lines sharing a position into one entry;
// the first line of each group is the raw record.
func readErrors(path string) ([]errorEntry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []errorEntry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		pos, text, ok := strings.Cut(sc.Text(), "\t")
		if !ok {
			return nil, errors.Newf("%s: line without position: %q", path, sc.Text())
		}
		if n := len(entries); n > 0 && entries[n-1].pos == pos {
			entries[n-1].diags = append(entries[n-1].diags, text)
			continue
		}
		entries = append(entries, errorEntry{pos: pos, raw: text})
	}
	return entries, errors.Wrapf(sc.Err(), "read %s", path)
}

func validateCompletion(output string) *phase {
	p := &phase{name: "Job completion"}
	if _, err := os.Stat(filepath.Join(output, "_SUCCESS")); err != nil {
		p.errorf("_SUCCESS marker missing")
	}
	if _, err := os.Stat(filepath.Join(output, "_temporary")); err == nil {
		p.errorf("staging directory _temporary left behind")
	}
	return p
}

func validateExclusivity(parts []partitionOutput) *phase {
	p := &phase{name: "Channel exclusivity"}
	for _, po := range parts {
		if got := len(po.records) + len(po.errors); got != len(po.input) {
			p.errorf("%s: %d input lines, %d primary + %d error entries", po.name, len(po.input), len(po.records), len(po.errors))
		}
		seen := make(map[string]bool, len(po.errors))
		for _, e := range po.errors {
			if seen[e.pos] {
				p.errorf("%s: position %s reported twice", po.name, e.pos)
			}
			seen[e.pos] = true
		}
	}
	return p
}

// validateFidelity replays the transform over every line that did not fail
// and compares it, in order, with the primary records.
func validateFidelity(parts []partitionOutput) *phase {
	p := &phase{name: "Field fidelity"}
	for _, po := range parts {
		failed := make(map[string]bool, len(po.errors))
		for _, e := range po.errors {
			failed[e.pos] = true
		}
		next := 0
		for _, in := range po.input {
			if failed[in.pos] {
				continue
			}
			doc, err := schema.ParseDocument(in.line)
			if err != nil {
				p.errorf("%s@%s: in neither channel (does not parse)", po.name, in.pos)
				continue
			}
			want, err := domain.Transform(doc)
			if err != nil {
				p.errorf("%s@%s: in neither channel (%v)", po.name, in.pos, err)
				continue
			}
			if next >= len(po.records) {
				p.errorf("%s@%s: primary output ends early", po.name, in.pos)
				break
			}
			if diff := cmp.Diff(want, po.records[next], cmpopts.EquateNaNs()); diff != "" {
				p.errorf("%s@%s: record differs (-want +got): %s", po.name, in.pos, diff)
			}
			next++
		}
		if next < len(po.records) {
			p.errorf("%s: %d primary records match no input line", po.name, len(po.records)-next)
		}
	}
	return p
}

func validateErrorEntries(parts []partitionOutput) *phase {
	p := &phase{name: "Error entries"}
	for _, po := range parts {
		lines := make(map[string]string, len(po.input))
		for _, in := range po.input {
			lines[in.pos] = string(in.line)
		}
		for _, e := range po.errors {
			raw, ok := lines[e.pos]
			switch {
			case !ok:
				p.errorf("%s: error entry at unknown position %s", po.name, e.pos)
			case raw != e.raw:
				p.errorf("%s@%s: raw line %q, input has %q", po.name, e.pos, e.raw, raw)
			}
			if len(e.diags) == 0 {
				p.errorf("%s@%s: no diagnostics", po.name, e.pos)
			}
		}
	}
	return p
}
