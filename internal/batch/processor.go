// Package batch reads event records, evaluates them with the remediation
// engine and writes one decision row per record in input order.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/invisible-tech/autopilot-remediation/internal/config"
	"github.com/invisible-tech/autopilot-remediation/internal/remediation"
	"github.com/invisible-tech/autopilot-remediation/internal/types"
	"github.com/invisible-tech/autopilot-remediation/pkg/dispatch"
)

// ErrAborted is wrapped into the error returned when an invalid record stops
// a run under the abort policy.
var ErrAborted = errors.New("batch aborted")

// chunkSize is the number of records one evaluation task handles.
const chunkSize = 256

// Config for a Processor.
type Config struct {
	Workers   int
	OnInvalid string
}

// Summary describes a finished run.
type Summary struct {
	RunID          string
	Records        int
	Invalid        int
	ByAction       map[types.Action]int
	Dispatched     int
	DispatchErrors int
	Duration       time.Duration
}

// Processor runs batches through an Engine.
type Processor struct {
	engine     *remediation.Engine
	dispatcher dispatch.Dispatcher
	log        *logrus.Logger
	workers    int
	onInvalid  string
}

// NewProcessor creates a Processor. disp may be nil.
func NewProcessor(engine *remediation.Engine, disp dispatch.Dispatcher, cfg Config, log *logrus.Logger) *Processor {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.OnInvalid != config.OnInvalidAbort {
		cfg.OnInvalid = config.OnInvalidSkip
	}
	return &Processor{
		engine:     engine,
		dispatcher: disp,
		log:        log,
		workers:    cfg.Workers,
		onInvalid:  cfg.OnInvalid,
	}
}

// Run reads CSV events from src, writes CSV decisions to dst and dispatches
// the actionable ones.
func (p *Processor) Run(ctx context.Context, src io.Reader, dst io.Writer) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: uuid.NewString(), ByAction: make(map[types.Action]int)}
	log := p.log.WithField("run_id", sum.RunID)

	records, invalid, err := p.Read(src)
	sum.Invalid = len(invalid)
	if err != nil {
		return sum, err
	}
	sum.Records = len(records)
	log.WithFields(logrus.Fields{"records": sum.Records, "invalid": sum.Invalid}).Info("Batch loaded")

	decisions, err := p.EvaluateAll(ctx, records)
	if err != nil {
		return sum, err
	}

	w := NewWriter(dst)
	for _, d := range decisions {
		if err := w.Write(d); err != nil {
			return sum, fmt.Errorf("write decision %d: %w", d.EventID, err)
		}
		sum.ByAction[d.Action]++
		decisionsTotal.WithLabelValues(string(d.Action), string(d.Severity)).Inc()
	}
	if err := w.Flush(); err != nil {
		return sum, fmt.Errorf("flush decisions: %w", err)
	}

	if p.dispatcher != nil {
		for i := range decisions {
			if !decisions[i].Actionable() {
				continue
			}
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			if err := p.dispatcher.Dispatch(ctx, &records[i], decisions[i]); err != nil {
				sum.DispatchErrors++
				dispatchErrors.Inc()
				log.WithError(err).WithField("event_id", decisions[i].EventID).Error("Failed to dispatch decision")
				continue
			}
			sum.Dispatched++
		}
	}

	sum.Duration = time.Since(start)
	batchDuration.Observe(sum.Duration.Seconds())
	log.WithFields(logrus.Fields{
		"records":    sum.Records,
		"invalid":    sum.Invalid,
		"dispatched": sum.Dispatched,
		"duration":   sum.Duration.String(),
	}).Info("Batch complete")
	return sum, nil
}

// Read decodes all records from src. Under the skip policy invalid rows are
// logged and returned separately; under abort the first one ends the read with
// an error wrapping ErrAborted. Event IDs must be unique within a batch.
func (p *Processor) Read(src io.Reader) ([]types.EventRecord, []*types.ValidationError, error) {
	r, err := NewReader(src)
	if err != nil {
		return nil, nil, err
	}
	var (
		records []types.EventRecord
		invalid []*types.ValidationError
		seen    = make(map[int64]int)
	)
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err == nil {
			if first, dup := seen[rec.EventID]; dup {
				err = &types.ValidationError{
					Row:     r.Row(),
					EventID: strconv.FormatInt(rec.EventID, 10),
					Errs: field.ErrorList{field.Duplicate(field.NewPath(types.ColEventID),
						fmt.Sprintf("%d (first seen on row %d)", rec.EventID, first))},
				}
			} else {
				seen[rec.EventID] = r.Row()
			}
		}
		if err != nil {
			var verr *types.ValidationError
			if !errors.As(err, &verr) {
				return nil, invalid, fmt.Errorf("read row %d: %w", r.Row()+1, err)
			}
			invalid = append(invalid, verr)
			invalidRecords.Inc()
			if p.onInvalid == config.OnInvalidAbort {
				return nil, invalid, fmt.Errorf("%w: %w", ErrAborted, verr)
			}
			p.log.WithError(verr).WithField("row", verr.Row).Warn("Skipping invalid event")
			continue
		}
		records = append(records, rec)
	}
	return records, invalid, nil
}

// EvaluateAll evaluates records concurrently and returns their decisions in
// the same order.
func (p *Processor) EvaluateAll(ctx context.Context, records []types.EventRecord) ([]types.Decision, error) {
	decisions := make([]types.Decision, len(records))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for lo := 0; lo < len(records); lo += chunkSize {
		hi := min(lo+chunkSize, len(records))
		lo := lo
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				decisions[i] = p.engine.Evaluate(&records[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return decisions, nil
}
