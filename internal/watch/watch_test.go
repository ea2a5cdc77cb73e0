package watch

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invisible-tech/autopilot-remediation/internal/remediation"
	"github.com/invisible-tech/autopilot-remediation/internal/types"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// busy is scaled out under the default CPU cutoff of 90 but not under 97.
var busy = types.EventRecord{
	EventID:      1,
	ServiceName:  "checkout",
	Status:       types.StatusWarning,
	CPUPercent:   95,
	TrafficLevel: types.TrafficHigh,
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setup(t *testing.T, content string) (*ThresholdWatcher, *remediation.Engine, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	writeFile(t, path, content)
	th, err := remediation.LoadThresholds(path)
	require.NoError(t, err)
	rs, err := remediation.BuildRuleSet(th)
	require.NoError(t, err)
	engine := remediation.NewEngine(rs)
	tw, err := New(path, engine, quietLogger())
	require.NoError(t, err)
	return tw, engine, path
}

func TestReload_SwapsRuleSet(t *testing.T) {
	tw, engine, path := setup(t, "cpu_percent: 90\n")
	rec := busy
	assert.Equal(t, types.ActionScaleOut, engine.Evaluate(&rec).Action)

	writeFile(t, path, "cpu_percent: 97\n")
	swapped, err := tw.Reload()
	require.NoError(t, err)
	assert.True(t, swapped)
	assert.Equal(t, types.ActionNone, engine.Evaluate(&rec).Action)
}

func TestReload_UnchangedContent(t *testing.T) {
	tw, engine, path := setup(t, "cpu_percent: 90\n")
	before := engine.RuleSet()

	writeFile(t, path, "cpu_percent: 90\n")
	swapped, err := tw.Reload()
	require.NoError(t, err)
	assert.False(t, swapped)
	assert.Same(t, before, engine.RuleSet())
}

func TestReload_InvalidKeepsCurrentRules(t *testing.T) {
	tw, engine, path := setup(t, "cpu_percent: 97\n")
	before := engine.RuleSet()

	for _, content := range []string{"cpu_percent: [", "error_rate: 5\n"} {
		writeFile(t, path, content)
		swapped, err := tw.Reload()
		assert.Error(t, err, content)
		assert.False(t, swapped)
		assert.Same(t, before, engine.RuleSet())
	}

	// A later valid file is still picked up.
	writeFile(t, path, "cpu_percent: 80\n")
	swapped, err := tw.Reload()
	require.NoError(t, err)
	assert.True(t, swapped)
}

func TestReload_MissingFile(t *testing.T) {
	tw, engine, path := setup(t, "cpu_percent: 97\n")
	before := engine.RuleSet()
	require.NoError(t, os.Remove(path))

	_, err := tw.Reload()
	assert.Error(t, err)
	assert.Same(t, before, engine.RuleSet())
}

func TestStart_ReloadsOnWrite(t *testing.T) {
	tw, engine, path := setup(t, "cpu_percent: 97\n")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tw.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	rec := busy
	require.Equal(t, types.ActionNone, engine.Evaluate(&rec).Action)
	writeFile(t, path, "cpu_percent: 50\n")

	assert.Eventually(t, func() bool {
		return engine.Evaluate(&rec).Action == types.ActionScaleOut
	}, 5*time.Second, 20*time.Millisecond)
}

func TestNew_MissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope", "thresholds.yaml"), remediation.NewEngine(nil), quietLogger())
	assert.Error(t, err)
}

// Kubernetes ConfigMap volumes expose each key as a symlink through ..data,
// which is swapped atomically to a new timestamped directory on update.
func TestStart_ReloadsOnSymlinkSwap(t *testing.T) {
	dir := t.TempDir()
	mount := func(name, content string) {
		require.NoError(t, os.Mkdir(filepath.Join(dir, name), 0o755))
		writeFile(t, filepath.Join(dir, name, "thresholds.yaml"), content)
	}
	mount("..2026_01_01", "cpu_percent: 97\n")
	require.NoError(t, os.Symlink("..2026_01_01", filepath.Join(dir, "..data")))
	path := filepath.Join(dir, "thresholds.yaml")
	require.NoError(t, os.Symlink(filepath.Join("..data", "thresholds.yaml"), path))

	th, err := remediation.LoadThresholds(path)
	require.NoError(t, err)
	rs, err := remediation.BuildRuleSet(th)
	require.NoError(t, err)
	engine := remediation.NewEngine(rs)
	tw, err := New(path, engine, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tw.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	rec := busy
	require.Equal(t, types.ActionNone, engine.Evaluate(&rec).Action)

	mount("..2026_01_02", "cpu_percent: 50\n")
	require.NoError(t, os.Symlink("..2026_01_02", filepath.Join(dir, "..data_tmp")))
	require.NoError(t, os.Rename(filepath.Join(dir, "..data_tmp"), filepath.Join(dir, "..data")))

	assert.Eventually(t, func() bool {
		return engine.Evaluate(&rec).Action == types.ActionScaleOut
	}, 5*time.Second, 20*time.Millisecond)
}

func TestReload_IgnoresUnrelatedFiles(t *testing.T) {
	tw, engine, path := setup(t, "cpu_percent: 97\n")
	before := engine.RuleSet()
	writeFile(t, filepath.Join(filepath.Dir(path), "other.yaml"), "cpu_percent: 10\n")

	swapped, err := tw.Reload()
	require.NoError(t, err)
	assert.False(t, swapped)
	assert.Same(t, before, engine.RuleSet())
}
