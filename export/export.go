// Package export writes analysis results as chart-ready datasets.
package export

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	parquet "github.com/parquet-go/parquet-go"

	"github.com/RyanBlaney/ringdown/analysis"
	"github.com/RyanBlaney/ringdown/logging"
)

// Series names
const (
	SeriesRaw      = "raw"
	SeriesSmoothed = "smoothed"
	SeriesPeak     = "peak"
	SeriesCrossing = "crossing"
	SeriesFit      = "fit"
)

const defaultFilePerm = 0o644

// ChartRow is one point of one chart series, in the normalized frame.
type ChartRow struct {
	TraceID string  `parquet:"trace_id,dict" json:"trace_id"`
	Series  string  `parquet:"series,dict" json:"series"`
	Index   int32   `parquet:"index" json:"index"`
	TimeUs  float64 `parquet:"time_us" json:"time_us"`
	Voltage float64 `parquet:"voltage" json:"voltage"`
}

// Rows flattens every series of a result into chart rows. Crossings sit on
// the baseline, so their voltage is 0.
func Rows(res *analysis.Result) []ChartRow {
	view := res.View
	if view == nil {
		return nil
	}

	rows := make([]ChartRow, 0, 2*len(view.TimeUs)+len(view.Peaks)+len(view.Crossings)+len(res.FitCurve))
	add := func(series string, i int, t, v float64) {
		rows = append(rows, ChartRow{
			TraceID: res.TraceID,
			Series:  series,
			Index:   int32(i),
			TimeUs:  t,
			Voltage: v,
		})
	}

	for i, t := range view.TimeUs {
		add(SeriesRaw, i, t, view.Raw[i])
	}
	for i, t := range view.TimeUs {
		add(SeriesSmoothed, i, t, view.Smoothed[i])
	}
	for i, p := range view.Peaks {
		add(SeriesPeak, i, p.TimeUs, p.Voltage)
	}
	for i, c := range view.Crossings {
		add(SeriesCrossing, i, c.TimeUs, view.Baseline)
	}
	for i, v := range res.FitCurve {
		add(SeriesFit, i, view.TimeUs[i], v)
	}
	return rows
}

// ParquetCompression maps a codec name to a writer option. Unknown names fall
// back to Snappy.
func ParquetCompression(name string) parquet.WriterOption {
	switch strings.ToLower(name) {
	case "zstd":
		return parquet.Compression(&parquet.Zstd)
	case "gzip", "gz":
		return parquet.Compression(&parquet.Gzip)
	case "none", "uncompressed":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Snappy)
	}
}

// WriteParquet writes the chart rows of res as a Parquet file, Snappy
// compressed unless opts say otherwise.
func WriteParquet(w io.Writer, res *analysis.Result, opts ...parquet.WriterOption) error {
	if len(opts) == 0 {
		opts = []parquet.WriterOption{ParquetCompression("snappy")}
	}
	pw := parquet.NewGenericWriter[ChartRow](w, opts...)
	if _, err := pw.Write(Rows(res)); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// ReadParquet reads back every chart row from a Parquet file.
func ReadParquet(ra io.ReaderAt) ([]ChartRow, error) {
	gr := parquet.NewGenericReader[ChartRow](ra)
	defer gr.Close()

	out := make([]ChartRow, 0, 1024)
	batch := make([]ChartRow, 1024)
	for {
		n, err := gr.Read(batch)
		if n > 0 {
			out = append(out, batch[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}
	return out, nil
}

// WriteJSON writes the full result, metrics and series included, as indented JSON.
func WriteJSON(w io.Writer, res *analysis.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

// FileName derives the export file name from the trace source base name plus
// a short hash of the full source path, so ch1.csv in two directories maps to
// two files. Without a source it falls back to the trace ID prefix.
func FileName(res *analysis.Result, format string) string {
	base := strings.TrimSuffix(filepath.Base(res.Source), filepath.Ext(res.Source))
	if res.Source == "" || base == "" || base == "." || base == string(filepath.Separator) {
		base = res.TraceID
		if len(base) > 12 {
			base = base[:12]
		}
		return base + ".ringdown." + format
	}
	sum := sha256.Sum256([]byte(filepath.Clean(res.Source)))
	return base + "-" + hex.EncodeToString(sum[:4]) + ".ringdown." + format
}

// WriteFile exports res into dir in the given format ("json" or "parquet")
// and returns the written path. compression only applies to Parquet.
func WriteFile(dir, format, compression string, res *analysis.Result) (string, error) {
	var buf bytes.Buffer
	switch format {
	case "json":
		if err := WriteJSON(&buf, res); err != nil {
			return "", err
		}
	case "parquet":
		if err := WriteParquet(&buf, res, ParquetCompression(compression)); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(dir, FileName(res, format))
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	logging.Debug("Exported result", logging.Fields{
		"component": "export",
		"path":      path,
		"format":    format,
		"bytes":     buf.Len(),
	})
	return path, nil
}

// writeAtomic replaces path with data via a rename, so concurrent writers of
// the same path never leave a torn file.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(defaultFilePerm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
