package pipeline

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/domain"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/schema"
)

// PrimarySink receives fully built records destined for columnar storage.
type PrimarySink interface {
	WriteRecord(ctx context.Context, rec domain.OutputRecord) error
	Close() error
}

// ErrorSink receives failed records with their diagnostics.
type ErrorSink interface {
	WriteEntry(ctx context.Context, entry domain.ErrorEntry) error
	Close() error
}

// ChannelOpener creates the two output channels of one worker.
type ChannelOpener interface {
	OpenPrimary(out *schema.OutputSchema) (PrimarySink, error)
	OpenErrors() (ErrorSink, error)
}

// Router sends each outcome to exactly one of the two channels.
type Router struct {
	primary PrimarySink
	errs    ErrorSink
}

// NewRouter creates a Router over the given channels.
func NewRouter(primary PrimarySink, errs ErrorSink) *Router {
	return &Router{primary: primary, errs: errs}
}

// Route writes a successful outcome to the primary channel, and any failure
// to the error channel as the raw line followed by its sanitized diagnostics.
func (r *Router) Route(ctx context.Context, raw domain.RawRecord, out domain.Outcome) error {
	if out.OK() {
		return errors.Wrapf(r.primary.WriteRecord(ctx, out.Record), "write record at %s", raw.Position)
	}
	return errors.Wrapf(r.errs.WriteEntry(ctx, out.ErrorEntryFor(raw)), "write error entry at %s", raw.Position)
}

// Close flushes and closes both channels.
func (r *Router) Close() error {
	perr := errors.Wrap(r.primary.Close(), "close primary channel")
	eerr := errors.Wrap(r.errs.Close(), "close error channel")
	return errors.CombineErrors(perr, eerr)
}
