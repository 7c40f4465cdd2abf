package main

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RyanBlaney/ringdown/algorithms/temporal"
	"github.com/RyanBlaney/ringdown/analysis"
	"github.com/RyanBlaney/ringdown/batch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport(t *testing.T) {
	results := []batch.FileResult{
		{
			Path: "a.txt",
			Result: &analysis.Result{
				Metrics: &analysis.Metrics{FrequencyKhz: 10, DampingCoefficientPerSecond: 2500, LogDecrement: 0.25, ValidCycleCount: 12},
				Fit:     &temporal.FitParams{A: 2, Beta: -0.0025},
			},
			Cached: true,
		},
		{
			Path: "b.txt",
			Result: &analysis.Result{
				Warnings: []analysis.Warning{{Code: analysis.CodeInsufficientCrossings, Message: "too few crossings"}},
			},
		},
		{Path: "c.txt", Err: errors.New("boom")},
	}

	var out bytes.Buffer
	status := report(&out, results)
	assert.Equal(t, 1, status)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "TAU (us)")
	assert.Contains(t, lines[1], "10.0000")
	assert.Contains(t, lines[1], "400.0")
	assert.Contains(t, lines[1], "ok (cached)")
	assert.Contains(t, lines[2], "too few crossings")
	assert.Contains(t, lines[3], "error: boom")
}

func TestRunAnalyzesFiles(t *testing.T) {
	t.Setenv("RINGDOWN_CONFIG", "")
	dir := t.TempDir()

	var sb strings.Builder
	for i := range 2000 {
		tt := float64(i) * 1e-6
		fmt.Fprintf(&sb, "%g %g\n", tt, 3*math.Exp(-tt/400e-6)*math.Sin(2*math.Pi*10e3*tt))
	}
	path := filepath.Join(dir, "scope.txt")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o600))

	var out bytes.Buffer
	status := run([]string{"--log-level", "error", "--workers", "1", path}, &out)
	assert.Equal(t, 0, status)
	assert.Contains(t, out.String(), "scope.txt")
	assert.Contains(t, out.String(), "ok")
}

func TestRunWithoutFiles(t *testing.T) {
	t.Setenv("RINGDOWN_CONFIG", "")
	var out bytes.Buffer
	assert.Equal(t, 2, run([]string{"--log-level", "error"}, &out))
	assert.Empty(t, out.String())
}
