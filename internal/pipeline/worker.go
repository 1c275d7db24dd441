package pipeline

import (
	"context"
	"io"
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/domain"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/observability"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/schema"
)

var (
	// ErrWorkerState is returned when an operation is called out of order.
	ErrWorkerState = errors.New("worker is not in a state that allows this operation")
	// ErrWorkerClosed is returned by Process after Close.
	ErrWorkerClosed = errors.New("worker is closed")
)

// State is a position in the worker lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateProcessing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateProcessing:
		return "processing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// RecordSource yields the raw records of one partition. Next returns io.EOF
// once the partition is exhausted.
type RecordSource interface {
	Next(ctx context.Context) (domain.RawRecord, error)
	Close() error
}

// WorkerConfig carries the schema documents a worker compiles at Init.
type WorkerConfig struct {
	InputSchema  []byte
	OutputSchema []byte
}

// Summary counts what a worker did with its partition.
type Summary struct {
	Read     int                 `json:"read"`
	Written  int                 `json:"written"`
	Rejected map[domain.Kind]int `json:"rejected"`
}

func (s *Summary) add(o Summary) {
	s.Read += o.Read
	s.Written += o.Written
	if s.Rejected == nil {
		s.Rejected = make(map[domain.Kind]int)
	}
	for k, n := range o.Rejected {
		s.Rejected[k] += n
	}
}

// Worker validates, transforms and routes the records of a single partition.
// It is single-use: Uninitialized -> Ready -> Processing -> Closed.
type Worker struct {
	cfg      WorkerConfig
	channels ChannelOpener
	logger   *slog.Logger
	metrics  *observability.Metrics

	parser    schema.Parser
	validator schema.Validator
	transform func(domain.Document) (domain.OutputRecord, error)
	router    *Router

	state   State
	summary Summary
}

// NewWorker creates an uninitialized worker.
func NewWorker(cfg WorkerConfig, channels ChannelOpener, logger *slog.Logger, metrics *observability.Metrics) *Worker {
	return &Worker{
		cfg:       cfg,
		channels:  channels,
		logger:    logger,
		metrics:   metrics,
		parser:    schema.JSONParser{},
		transform: domain.Transform,
		summary:   Summary{Rejected: make(map[domain.Kind]int)},
	}
}

// State reports the current lifecycle state.
func (w *Worker) State() State { return w.state }

// Summary returns the counts accumulated so far.
func (w *Worker) Summary() Summary { return w.summary }

// Init compiles both schemas and opens the output channels. Any failure is
// fatal to the worker.
func (w *Worker) Init() error {
	if w.state != StateUninitialized {
		return errors.Wrapf(ErrWorkerState, "init in state %s", w.state)
	}

	in, err := schema.LoadInputSchema(w.cfg.InputSchema)
	if err != nil {
		return errors.Wrap(err, "load input schema")
	}
	out, err := schema.LoadOutputSchema(w.cfg.OutputSchema)
	if err != nil {
		return errors.Wrap(err, "load output schema")
	}

	primary, err := w.channels.OpenPrimary(out)
	if err != nil {
		return errors.Wrap(err, "open primary channel")
	}
	errs, err := w.channels.OpenErrors()
	if err != nil {
		_ = primary.Close()
		return errors.Wrap(err, "open error channel")
	}

	w.validator = in
	w.router = NewRouter(primary, errs)
	w.state = StateReady
	w.logger.Debug("worker ready", "output_schema", out.Name)
	return nil
}

// Process classifies one record and routes it. The returned error is
// non-nil only when a channel write fails; record-level failures are part
// of the Outcome.
func (w *Worker) Process(ctx context.Context, raw domain.RawRecord) (domain.Outcome, error) {
	switch w.state {
	case StateUninitialized:
		return domain.Outcome{}, errors.Wrap(ErrWorkerState, "process before init")
	case StateClosed:
		return domain.Outcome{}, ErrWorkerClosed
	}
	w.state = StateProcessing

	out := w.evaluate(raw)
	if err := w.route(ctx, raw, out); err != nil {
		return out, err
	}

	w.summary.Read++
	w.metrics.RecordsRead.Inc()
	if out.OK() {
		w.summary.Written++
		w.metrics.RecordsWritten.Inc()
	} else {
		w.summary.Rejected[out.Kind]++
		w.metrics.RecordsRejected.WithLabelValues(out.Kind.String()).Inc()
		w.logger.Debug("record rejected", "position", raw.Position, "kind", out.Kind.String(), "diagnostics", len(out.Diagnostics))
	}
	return out, nil
}

// evaluate runs parse, validate and transform. A panic anywhere in those
// stages is confined to this record.
func (w *Worker) evaluate(raw domain.RawRecord) (out domain.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = domain.Classify(domain.Recovered(r))
		}
	}()

	doc, err := w.parser.Parse(raw.Line)
	if err != nil {
		return domain.Classify(err)
	}

	res, err := w.validator.Validate(doc)
	if err != nil {
		return domain.Classify(&domain.UnexpectedError{Cause: err})
	}
	if !res.Valid {
		msgs := res.Messages
		if len(msgs) == 0 {
			msgs = []string{"document rejected by schema"}
		}
		return domain.Classify(&domain.SchemaViolation{Messages: msgs})
	}

	rec, err := w.transform(doc)
	if err != nil {
		return domain.Classify(err)
	}
	return domain.Success(rec)
}

// route hands out to the router. A panicking sink may have written part of
// the record, so it fails the worker like a channel error instead of being
// reported as that record's failure.
func (w *Worker) route(ctx context.Context, raw domain.RawRecord, out domain.Outcome) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(domain.Recovered(r), "route record at %s", raw.Position)
		}
	}()
	return w.router.Route(ctx, raw, out)
}

// Run processes every record of src and closes the worker. On a channel or
// context error it stops early; the caller must treat the partial output as
// uncommitted.
func (w *Worker) Run(ctx context.Context, src RecordSource) (Summary, error) {
	if w.state != StateReady && w.state != StateProcessing {
		return w.summary, errors.Wrapf(ErrWorkerState, "run in state %s", w.state)
	}

	runErr := w.drain(ctx, src)
	closeErr := w.Close()
	if runErr != nil {
		return w.summary, runErr
	}
	return w.summary, closeErr
}

func (w *Worker) drain(ctx context.Context, src RecordSource) error {
	for {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "partition cancelled")
		}
		raw, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "read input")
		}
		if _, err := w.Process(ctx, raw); err != nil {
			return err
		}
	}
}

// Close flushes and closes both channels. Calling it again is a no-op.
func (w *Worker) Close() error {
	if w.state == StateClosed {
		return nil
	}
	initialized := w.router != nil
	w.state = StateClosed
	if !initialized {
		return nil
	}
	return w.router.Close()
}
