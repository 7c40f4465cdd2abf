package export_test

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/RyanBlaney/ringdown/analysis"
	"github.com/RyanBlaney/ringdown/export"
	"github.com/RyanBlaney/ringdown/logging"
	"github.com/RyanBlaney/ringdown/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
	os.Exit(m.Run())
}

func analyzed(t *testing.T, source string) *analysis.Result {
	t.Helper()
	samples := make([]trace.Sample, 1500)
	for i := range samples {
		tt := float64(i) * 1e-6
		samples[i] = trace.Sample{
			Time:    tt,
			Voltage: 0.5 + 2*math.Exp(-tt/250e-6)*math.Sin(2*math.Pi*15e3*tt),
		}
	}
	a, err := analysis.NewAnalyzer(nil)
	require.NoError(t, err)
	res, err := a.Analyze(trace.FromSamples(source, samples))
	require.NoError(t, err)
	require.True(t, res.Complete())
	return res
}

func countSeries(rows []export.ChartRow) map[string]int {
	counts := map[string]int{}
	for _, r := range rows {
		counts[r.Series]++
	}
	return counts
}

func TestRowsCoverEverySeries(t *testing.T) {
	res := analyzed(t, "bench/run1.csv")
	rows := export.Rows(res)

	counts := countSeries(rows)
	assert.Equal(t, res.SampleCount, counts[export.SeriesRaw])
	assert.Equal(t, res.SampleCount, counts[export.SeriesSmoothed])
	assert.Equal(t, res.SampleCount, counts[export.SeriesFit])
	assert.Equal(t, len(res.View.Peaks), counts[export.SeriesPeak])
	assert.Equal(t, len(res.View.Crossings), counts[export.SeriesCrossing])

	for _, r := range rows {
		assert.Equal(t, res.TraceID, r.TraceID)
		if r.Series == export.SeriesCrossing {
			assert.Equal(t, 0.0, r.Voltage)
		}
	}
}

func TestRowsWithoutView(t *testing.T) {
	assert.Nil(t, export.Rows(&analysis.Result{}))
}

func TestParquetRoundTrip(t *testing.T) {
	res := analyzed(t, "run.csv")

	var buf bytes.Buffer
	require.NoError(t, export.WriteParquet(&buf, res))

	rows, err := export.ReadParquet(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, export.Rows(res), rows)
}

func TestParquetCodecs(t *testing.T) {
	res := analyzed(t, "run.csv")
	for _, codec := range []string{"snappy", "zstd", "gzip", "none"} {
		var buf bytes.Buffer
		require.NoError(t, export.WriteParquet(&buf, res, export.ParquetCompression(codec)), codec)

		rows, err := export.ReadParquet(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err, codec)
		assert.Len(t, rows, len(export.Rows(res)), codec)
	}
}

func TestWriteJSON(t *testing.T) {
	res := analyzed(t, "run.csv")

	var buf bytes.Buffer
	require.NoError(t, export.WriteJSON(&buf, res))

	var decoded analysis.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, res.Metrics, decoded.Metrics)
	assert.Equal(t, res.Fit, decoded.Fit)
	assert.Equal(t, res.View.Peaks, decoded.View.Peaks)
}

func TestFileName(t *testing.T) {
	res := &analysis.Result{TraceID: "0123456789abcdef", Source: "/data/scope/ch1.csv"}
	name := export.FileName(res, "json")
	assert.Regexp(t, `^ch1-[0-9a-f]{8}\.ringdown\.json$`, name)
	assert.Equal(t, name, export.FileName(res, "json"), "stable for one source")

	other := &analysis.Result{TraceID: res.TraceID, Source: "/data/bench/ch1.csv"}
	assert.NotEqual(t, name, export.FileName(other, "json"), "same base name in another directory")

	res.Source = ""
	assert.Equal(t, "0123456789ab.ringdown.parquet", export.FileName(res, "parquet"))
}

func TestWriteFile(t *testing.T) {
	res := analyzed(t, "ch2.txt")
	dir := filepath.Join(t.TempDir(), "out")

	path, err := export.WriteFile(dir, "parquet", "zstd", res)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Regexp(t, `^ch2-[0-9a-f]{8}\.ringdown\.parquet$`, filepath.Base(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := export.ReadParquet(f)
	require.NoError(t, err)
	assert.Len(t, rows, len(export.Rows(res)))

	_, err = export.WriteFile(dir, "xml", "", res)
	assert.Error(t, err)
}
