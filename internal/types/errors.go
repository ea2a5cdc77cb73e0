package types

import (
	"fmt"

	"k8s.io/apimachinery/pkg/util/validation/field"
)

// ValidationError reports why a row or request could not become an
// EventRecord. Row is the 1-based data row when the source is tabular.
type ValidationError struct {
	Row     int
	EventID string
	Errs    field.ErrorList
}

func (e *ValidationError) Error() string {
	msg := "invalid event"
	if e.EventID != "" {
		msg = fmt.Sprintf("invalid event %s", e.EventID)
	}
	if e.Row > 0 {
		msg = fmt.Sprintf("row %d: %s", e.Row, msg)
	}
	if agg := e.Errs.ToAggregate(); agg != nil {
		return msg + ": " + agg.Error()
	}
	return msg
}

// Fields returns the offending field paths.
func (e *ValidationError) Fields() []string {
	out := make([]string, 0, len(e.Errs))
	for _, fe := range e.Errs {
		out = append(out, fe.Field)
	}
	return out
}
