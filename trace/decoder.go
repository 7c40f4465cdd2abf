package trace

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/RyanBlaney/ringdown/logging"
)

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	// VoltsPerUnit scales normalised WAV samples to volts.
	VoltsPerUnit float64 `json:"volts_per_unit"`
	// MaxFileSize rejects inputs larger than this many bytes (0 = no limit).
	// Compressed inputs are checked both on disk and after decompression.
	MaxFileSize int64 `json:"max_file_size"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		VoltsPerUnit: 1.0,
		MaxFileSize:  512 << 20,
	}
}

// Decoder loads traces from files or byte slices.
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a new trace decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{"component": "trace_decoder"}),
	}
}

// FormatForPath picks the input format from the file extension, looking
// through a compression suffix (scope.wav.gz is a WAV file).
func FormatForPath(path string) string {
	base, _ := SplitCompression(path)
	if strings.EqualFold(filepath.Ext(base), ".wav") {
		return "wav"
	}
	return "text"
}

// DecodeFile reads and parses a trace file. I/O failures are errors; a file
// with no usable rows yields an empty trace.
func (d *Decoder) DecodeFile(filename string) (*Trace, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "DecodeFile",
		"filename": filename,
	})

	info, err := os.Stat(filename)
	if err != nil {
		return nil, fmt.Errorf("stat %q: %w", filename, err)
	}
	if d.config.MaxFileSize > 0 && info.Size() > d.config.MaxFileSize {
		return nil, fmt.Errorf("file %q is %d bytes, limit is %d", filename, info.Size(), d.config.MaxFileSize)
	}

	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", filename, err)
	}
	defer f.Close()

	_, codec := SplitCompression(filename)
	r, err := Decompress(f, codec)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", filename, err)
	}
	defer r.Close()

	var src io.Reader = r
	if codec != CodecNone && d.config.MaxFileSize > 0 {
		src = &capReader{r: r, remaining: d.config.MaxFileSize, limit: d.config.MaxFileSize}
	}

	tr, err := d.DecodeReader(src, filename, FormatForPath(filename))
	if err != nil {
		logger.Error(err, "Failed to decode trace")
		return nil, err
	}

	logger.Debug("Trace decoded", logging.Fields{
		"format":      tr.Format,
		"compression": codec,
		"samples":     tr.Len(),
		"duration":    tr.Duration(),
	})
	return tr, nil
}

// DecodeBytes decodes an in-memory trace in the given format ("text" or "wav").
func (d *Decoder) DecodeBytes(data []byte, source, format string) (*Trace, error) {
	return d.DecodeReader(bytes.NewReader(data), source, format)
}

// DecodeReader decodes a trace from r in the given format.
func (d *Decoder) DecodeReader(r io.Reader, source, format string) (*Trace, error) {
	switch format {
	case "wav":
		return DecodeWAV(r, source, d.config.VoltsPerUnit)
	case "text", "":
		return ParseReader(r, source)
	default:
		return nil, fmt.Errorf("unsupported trace format %q", format)
	}
}

// capReader fails once more than limit bytes have been read.
type capReader struct {
	r         io.Reader
	remaining int64
	limit     int64
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.remaining < 0 {
		return 0, fmt.Errorf("decompressed input exceeds limit of %d bytes", c.limit)
	}
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return n, fmt.Errorf("decompressed input exceeds limit of %d bytes", c.limit)
	}
	return n, err
}
