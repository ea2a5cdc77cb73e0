// Package watch reloads remediation thresholds when their file changes.
package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/autopilot-remediation/internal/remediation"
)

var reloadsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "remediation_rules_reloads_total",
		Help: "Threshold file reloads by result",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(reloadsTotal)
}

// ThresholdWatcher rebuilds the engine's rule set whenever the threshold file
// is written. An invalid file leaves the current rule set in place.
type ThresholdWatcher struct {
	path    string
	engine  *remediation.Engine
	log     *logrus.Logger
	watcher *fsnotify.Watcher

	mu   sync.Mutex
	hash string
}

// New watches path for engine. The file's directory is watched so that
// editors and ConfigMap updates which replace the file are still seen.
func New(path string, engine *remediation.Engine, log *logrus.Logger) (*ThresholdWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	tw := &ThresholdWatcher{path: abs, engine: engine, log: log, watcher: w}
	tw.hash, _ = hashFile(abs)
	return tw, nil
}

// Start processes file events until ctx is done.
func (tw *ThresholdWatcher) Start(ctx context.Context) {
	tw.log.WithField("path", tw.path).Info("Starting threshold watcher")
	defer tw.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			tw.log.Info("Threshold watcher stopping")
			return

		case event, ok := <-tw.watcher.Events:
			if !ok {
				return
			}
			// Any change in the directory may replace the file: ConfigMap
			// mounts swap a ..data symlink rather than writing the file.
			// Reload skips content it has already applied.
			if event.Op == fsnotify.Chmod {
				continue
			}
			if _, err := tw.Reload(); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					tw.log.WithField("event", event.String()).Debug("Threshold file not present, keeping current rules")
					continue
				}
				tw.log.WithError(err).WithField("path", tw.path).Error("Threshold reload failed, keeping current rules")
			}

		case err, ok := <-tw.watcher.Errors:
			if !ok {
				return
			}
			tw.log.WithError(err).Error("Watcher error")
		}
	}
}

// Reload reads the file and swaps in a new rule set if its content changed.
// It reports whether a swap happened.
func (tw *ThresholdWatcher) Reload() (bool, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	sum, err := hashFile(tw.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			reloadsTotal.WithLabelValues("error").Inc()
		}
		return false, err
	}
	if sum == tw.hash {
		return false, nil
	}

	t, err := remediation.LoadThresholds(tw.path)
	if err != nil {
		reloadsTotal.WithLabelValues("error").Inc()
		return false, err
	}
	rs, err := remediation.BuildRuleSet(t)
	if err != nil {
		reloadsTotal.WithLabelValues("error").Inc()
		return false, err
	}
	tw.engine.Swap(rs)
	tw.hash = sum
	reloadsTotal.WithLabelValues("success").Inc()
	tw.log.WithFields(logrus.Fields{
		"path":       tw.path,
		"rules":      rs.Len(),
		"cpu":        t.CPUPercent,
		"error_rate": t.ErrorRate,
	}).Info("Thresholds reloaded")
	return true, nil
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:]), nil
}
