package pipeline

import "github.com/erik-ytterman/nooa-climate-stations-etl/internal/domain"

// SetTransform replaces the record transformer, letting tests inject faults.
func (w *Worker) SetTransform(fn func(domain.Document) (domain.OutputRecord, error)) {
	w.transform = fn
}
