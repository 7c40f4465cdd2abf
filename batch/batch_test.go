package batch_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RyanBlaney/ringdown/analysis"
	"github.com/RyanBlaney/ringdown/batch"
	"github.com/RyanBlaney/ringdown/logging"
	"github.com/RyanBlaney/ringdown/store"
	"github.com/RyanBlaney/ringdown/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
	os.Exit(m.Run())
}

// writeTrace writes a whitespace-separated damped sinusoid capture.
func writeTrace(t *testing.T, dir, name string, freqHz float64) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("\"Time\" \"Ch1\"\n")
	for i := range 2000 {
		tt := float64(i) * 1e-6
		v := 1 + 3*math.Exp(-tt/400e-6)*math.Sin(2*math.Pi*freqHz*tt)
		fmt.Fprintf(&sb, "%g %g\n", tt, v)
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o600))
	return path
}

func TestRunPreservesInputOrder(t *testing.T) {
	dir := t.TempDir()
	freqs := []float64{5e3, 10e3, 20e3, 8e3, 12.5e3}
	paths := make([]string, len(freqs))
	for i, f := range freqs {
		paths[i] = writeTrace(t, dir, fmt.Sprintf("ch%d.txt", i), f)
	}

	runner, err := batch.NewRunner(batch.Options{Workers: 3})
	require.NoError(t, err)

	results := runner.Run(context.Background(), paths)
	require.Len(t, results, len(paths))
	for i, r := range results {
		assert.Equal(t, paths[i], r.Path)
		require.NoError(t, r.Err)
		require.True(t, r.Result.Complete(), "%s: %+v", r.Path, r.Result.Warnings)
		assert.InEpsilon(t, freqs[i]/1000, r.Result.Metrics.FrequencyKhz, 0.01)
		assert.False(t, r.Cached)
	}
}

func TestRunReportsPerFileErrors(t *testing.T) {
	dir := t.TempDir()
	good := writeTrace(t, dir, "good.txt", 10e3)
	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\"header only\"\n"), 0o600))
	missing := filepath.Join(dir, "missing.txt")

	runner, err := batch.NewRunner(batch.Options{Workers: 2})
	require.NoError(t, err)

	results := runner.Run(context.Background(), []string{good, empty, missing})
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.True(t, analysis.IsCode(results[1].Err, analysis.CodeEmptyInput))
	assert.Error(t, results[2].Err)
	assert.Nil(t, results[2].Result)
}

// writeWAV writes a mono 16-bit 1 MHz capture of an offset damped sinusoid.
func writeWAV(t *testing.T, dir, name string) string {
	t.Helper()
	const rate = 1_000_000
	var data bytes.Buffer
	for i := range 2000 {
		tt := float64(i) / rate
		v := 8000 + 16000*math.Exp(-tt/400e-6)*math.Sin(2*math.Pi*10e3*tt)
		require.NoError(t, binary.Write(&data, binary.LittleEndian, int16(math.Round(v))))
	}

	var buf bytes.Buffer
	le := binary.LittleEndian
	buf.WriteString("RIFF")
	require.NoError(t, binary.Write(&buf, le, uint32(36+data.Len())))
	buf.WriteString("WAVEfmt ")
	for _, field := range []any{uint32(16), uint16(1), uint16(1), uint32(rate), uint32(rate * 2), uint16(2), uint16(16)} {
		require.NoError(t, binary.Write(&buf, le, field))
	}
	buf.WriteString("data")
	require.NoError(t, binary.Write(&buf, le, uint32(data.Len())))
	buf.Write(data.Bytes())

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestRunCacheSeparatesWAVScales(t *testing.T) {
	dir := t.TempDir()
	path := writeWAV(t, dir, "scope.wav")

	repo, err := store.NewRepository(filepath.Join(dir, "cache.db"))
	require.NoError(t, err)
	defer repo.Close()

	runAt := func(voltsPerUnit float64) batch.FileResult {
		t.Helper()
		runner, err := batch.NewRunner(batch.Options{
			Workers: 1,
			Store:   repo,
			Decoder: &trace.DecoderConfig{VoltsPerUnit: voltsPerUnit},
		})
		require.NoError(t, err)
		results := runner.Run(context.Background(), []string{path})
		require.NoError(t, results[0].Err)
		return results[0]
	}

	unit := runAt(1)
	assert.False(t, unit.Cached)
	assert.True(t, runAt(1).Cached)

	scaled := runAt(10)
	assert.False(t, scaled.Cached, "a new scale is a new trace")
	assert.NotEqual(t, unit.Result.TraceID, scaled.Result.TraceID)
	assert.InEpsilon(t, 10*unit.Result.Baseline, scaled.Result.Baseline, 1e-6)

	again := runAt(10)
	assert.True(t, again.Cached)
	assert.Equal(t, scaled.Result.Baseline, again.Result.Baseline)
}

func TestRunUsesResultStore(t *testing.T) {
	dir := t.TempDir()
	path := writeTrace(t, dir, "scope.txt", 10e3)

	repo, err := store.NewRepository(filepath.Join(dir, "cache.db"))
	require.NoError(t, err)
	defer repo.Close()

	runner, err := batch.NewRunner(batch.Options{Workers: 1, Store: repo})
	require.NoError(t, err)

	first := runner.Run(context.Background(), []string{path})
	require.NoError(t, first[0].Err)
	assert.False(t, first[0].Cached)

	second := runner.Run(context.Background(), []string{path})
	require.NoError(t, second[0].Err)
	assert.True(t, second[0].Cached)
	assert.Equal(t, first[0].Result.Metrics, second[0].Result.Metrics)
}

func TestRunExports(t *testing.T) {
	dir := t.TempDir()
	path := writeTrace(t, dir, "scope.txt", 10e3)
	outDir := filepath.Join(dir, "out")

	runner, err := batch.NewRunner(batch.Options{ExportFormat: "json", ExportDir: outDir})
	require.NoError(t, err)

	results := runner.Run(context.Background(), []string{path})
	require.NoError(t, results[0].Err)
	assert.Equal(t, outDir, filepath.Dir(results[0].ExportPath))
	assert.True(t, strings.HasPrefix(filepath.Base(results[0].ExportPath), "scope-"))
	assert.FileExists(t, results[0].ExportPath)
}

func TestRunExportsSameBaseNameToDistinctFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "bench"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "field"), 0o755))
	paths := []string{
		writeTrace(t, filepath.Join(dir, "bench"), "ch1.txt", 10e3),
		writeTrace(t, filepath.Join(dir, "field"), "ch1.txt", 20e3),
	}
	outDir := filepath.Join(dir, "out")

	runner, err := batch.NewRunner(batch.Options{Workers: 2, ExportFormat: "json", ExportDir: outDir})
	require.NoError(t, err)

	results := runner.Run(context.Background(), paths)
	require.NoError(t, results[0].Err)
	require.NoError(t, results[1].Err)
	assert.NotEqual(t, results[0].ExportPath, results[1].ExportPath)

	for _, r := range results {
		data, err := os.ReadFile(r.ExportPath)
		require.NoError(t, err)
		var exported analysis.Result
		require.NoError(t, json.Unmarshal(data, &exported))
		assert.Equal(t, r.Path, exported.Source)
		assert.Equal(t, r.Result.TraceID, exported.TraceID)
	}

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	paths := []string{writeTrace(t, dir, "a.txt", 10e3), writeTrace(t, dir, "b.txt", 10e3)}

	runner, err := batch.NewRunner(batch.Options{Workers: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, r := range runner.Run(ctx, paths) {
		assert.ErrorIs(t, r.Err, context.Canceled)
		assert.Nil(t, r.Result)
	}
}

func TestNewRunnerValidation(t *testing.T) {
	cfg := analysis.DefaultConfig()
	cfg.TolerancePct = -1
	_, err := batch.NewRunner(batch.Options{Analysis: cfg})
	assert.True(t, analysis.IsCode(err, analysis.CodeInvalidConfig))

	_, err = batch.NewRunner(batch.Options{ExportFormat: "csv"})
	assert.Error(t, err)
}

func TestRunReportsAnalyzerConfigErrors(t *testing.T) {
	dir := t.TempDir()
	paths := []string{writeTrace(t, dir, "a.txt", 10e3), writeTrace(t, dir, "b.txt", 10e3)}

	cfg := analysis.DefaultConfig()
	runner, err := batch.NewRunner(batch.Options{Analysis: cfg, Workers: 2})
	require.NoError(t, err)

	// the runner shares the caller's config
	cfg.SmoothingWindow = 0

	for _, r := range runner.Run(context.Background(), paths) {
		assert.True(t, analysis.IsCode(r.Err, analysis.CodeInvalidConfig), "%s: %v", r.Path, r.Err)
		assert.Nil(t, r.Result)
	}
}
