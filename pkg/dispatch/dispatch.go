// Package dispatch hands actionable remediation decisions to the execution
// layer: logs, an HTTP automation endpoint, or a NATS subject.
package dispatch

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/autopilot-remediation/internal/types"
)

// Dispatcher receives one decision together with the event it was made for.
// Implementations ignore decisions that are not actionable.
type Dispatcher interface {
	Dispatch(ctx context.Context, rec *types.EventRecord, d types.Decision) error
}

// Multi fans a decision out to every dispatcher and joins their errors.
type Multi []Dispatcher

// Dispatch implements Dispatcher.
func (m Multi) Dispatch(ctx context.Context, rec *types.EventRecord, d types.Decision) error {
	var errs []error
	for _, disp := range m {
		if err := disp.Dispatch(ctx, rec, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogDispatcher writes the decision to the log instead of executing it.
type LogDispatcher struct {
	log *logrus.Logger
}

// NewLogDispatcher creates a LogDispatcher.
func NewLogDispatcher(log *logrus.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

// Dispatch implements Dispatcher.
func (l *LogDispatcher) Dispatch(_ context.Context, rec *types.EventRecord, d types.Decision) error {
	if !d.Actionable() {
		return nil
	}
	entry := l.log.WithFields(logrus.Fields{
		"event_id": d.EventID,
		"service":  d.ServiceName,
		"region":   rec.Region,
		"action":   d.Action,
		"severity": d.Severity,
		"rule":     d.Rule,
		"reason":   d.Reason,
	})
	if d.Severity.Rank() >= types.SeverityHigh.Rank() {
		entry.Warn("EXECUTE remediation")
	} else {
		entry.Info("EXECUTE remediation")
	}
	return nil
}
