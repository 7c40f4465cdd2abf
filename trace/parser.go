package trace

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ClipThreshold is the magnitude above which a reading is an instrument
// overflow sentinel rather than a measurement.
const ClipThreshold = 1e30

const maxLineSize = 1 << 20

// Parse parses oscilloscope text export. Malformed rows are dropped silently;
// an empty result is returned as a trace with no samples.
func Parse(text string) *Trace {
	tr, _ := ParseReader(strings.NewReader(text), "")
	return tr
}

// ParseReader parses text from r. Only read failures are returned as errors.
func ParseReader(r io.Reader, source string) (*Trace, error) {
	h := sha256.New()
	scanner := bufio.NewScanner(io.TeeReader(r, h))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var samples []Sample
	for scanner.Scan() {
		if s, ok := parseLine(scanner.Text()); ok {
			samples = append(samples, s)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read trace %q: %w", source, err)
	}

	return newTrace(source, "text", h.Sum(nil), samples), nil
}

// parseLine converts one data row. Rows starting with a quote are headers.
func parseLine(line string) (Sample, bool) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '"' || line[0] == '\'' {
		return Sample{}, false
	}

	// decimal-comma locales
	line = strings.ReplaceAll(line, ",", ".")
	tokens := strings.Fields(line)
	if len(tokens) < 2 {
		return Sample{}, false
	}

	t, ok := parseFinite(tokens[0])
	if !ok {
		return Sample{}, false
	}
	v, ok := parseFinite(tokens[1])
	if !ok || isClipped(v) {
		return Sample{}, false
	}

	// min/max envelope export: store the centre of the pair
	if len(tokens) >= 3 {
		if hi, ok := parseFinite(tokens[2]); ok && !isClipped(hi) {
			v = (v + hi) / 2
		}
	}

	return Sample{Time: t, Voltage: v}, true
}

func parseFinite(tok string) (float64, bool) {
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func isClipped(v float64) bool {
	return math.Abs(v) > ClipThreshold
}

func appendFloat(buf []byte, f float64) []byte {
	return binary.LittleEndian.AppendUint64(buf, math.Float64bits(f))
}
