package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/autopilot-remediation/internal/batch"
	"github.com/invisible-tech/autopilot-remediation/internal/config"
	"github.com/invisible-tech/autopilot-remediation/internal/remediation"
	"github.com/invisible-tech/autopilot-remediation/internal/types"
	"github.com/invisible-tech/autopilot-remediation/internal/version"
	"github.com/invisible-tech/autopilot-remediation/pkg/dispatch"
)

func main() {
	cfg := config.DefaultBatchConfig()
	flag.StringVar(&cfg.InputPath, "input", cfg.InputPath, "event CSV to read, - for stdin")
	flag.StringVar(&cfg.OutputPath, "output", cfg.OutputPath, "decision CSV to write, - for stdout")
	flag.StringVar(&cfg.ThresholdsPath, "thresholds", cfg.ThresholdsPath, "YAML threshold overrides")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent evaluation workers")
	flag.StringVar(&cfg.OnInvalid, "on-invalid", cfg.OnInvalid, "invalid row policy: skip or abort")
	flag.Parse()

	onInvalid, err := config.ParseOnInvalid(cfg.OnInvalid)
	if err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	cfg.OnInvalid = onInvalid

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stderr)
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	log.WithFields(logrus.Fields{
		"version": version.Version,
		"input":   cfg.InputPath,
		"output":  cfg.OutputPath,
	}).Info("Starting remediation batch")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sum, err := run(ctx, cfg, log)
	if err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "remediation failed: %v\n", err)
		os.Exit(1)
	}
	printSummary(os.Stderr, sum)
}

func run(ctx context.Context, cfg config.BatchConfig, log *logrus.Logger) (batch.Summary, error) {
	thresholds, err := remediation.LoadThresholds(cfg.ThresholdsPath)
	if err != nil {
		return batch.Summary{}, err
	}
	rs, err := remediation.BuildRuleSet(thresholds)
	if err != nil {
		return batch.Summary{}, err
	}

	disp, closeDisp, err := dispatchers(cfg.Dispatch, log)
	if err != nil {
		return batch.Summary{}, err
	}
	defer closeDisp()

	src, err := openInput(cfg.InputPath)
	if err != nil {
		return batch.Summary{}, err
	}
	defer src.Close()

	dst, err := createOutput(cfg.OutputPath)
	if err != nil {
		return batch.Summary{}, err
	}

	p := batch.NewProcessor(remediation.NewEngine(rs), disp, batch.Config{
		Workers:   cfg.Workers,
		OnInvalid: cfg.OnInvalid,
	}, log)
	sum, err := p.Run(ctx, src, dst)
	if cerr := dst.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close output: %w", cerr)
	}
	if err != nil && cfg.OutputPath != "-" {
		os.Remove(cfg.OutputPath)
	}
	return sum, err
}

// dispatchers always logs decisions and adds the HTTP and NATS sinks when
// they are configured.
func dispatchers(cfg config.DispatchConfig, log *logrus.Logger) (dispatch.Dispatcher, func(), error) {
	multi := dispatch.Multi{dispatch.NewLogDispatcher(log)}
	closeFn := func() {}
	if cfg.Enabled() {
		multi = append(multi, dispatch.NewClient(dispatch.Config{
			Endpoint:  cfg.Endpoint,
			APIKey:    cfg.APIKey,
			Namespace: cfg.Namespace,
			Timeout:   cfg.Timeout,
		}, log))
	}
	if cfg.NATSURL != "" {
		pub, err := dispatch.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, log)
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		multi = append(multi, pub)
		closeFn = pub.Close
	}
	return multi, closeFn, nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func createOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

func printSummary(w io.Writer, sum batch.Summary) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "Run %s: %d records in %s\n", sum.RunID, sum.Records, sum.Duration)
	if sum.Invalid > 0 {
		color.New(color.FgYellow).Fprintf(w, "  skipped %d invalid rows\n", sum.Invalid)
	}

	actions := make([]types.Action, 0, len(sum.ByAction))
	for a := range sum.ByAction {
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool { return sum.ByAction[actions[i]] > sum.ByAction[actions[j]] })
	for _, a := range actions {
		c := color.New(color.FgGreen)
		if a != types.ActionNone {
			c = color.New(color.FgCyan)
		}
		c.Fprintf(w, "  %-12s %d\n", a, sum.ByAction[a])
	}

	if sum.DispatchErrors > 0 {
		color.New(color.FgRed).Fprintf(w, "  dispatch failures: %d of %d\n", sum.DispatchErrors, sum.DispatchErrors+sum.Dispatched)
	}
}
