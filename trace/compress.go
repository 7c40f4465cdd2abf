package trace

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression codecs recognized from the file suffix.
const (
	CodecNone   = ""
	CodecGzip   = "gzip"
	CodecZstd   = "zstd"
	CodecSnappy = "snappy"
	CodecLZ4    = "lz4"
	CodecBrotli = "brotli"
)

var codecSuffixes = map[string]string{
	".gz":   CodecGzip,
	".zst":  CodecZstd,
	".zstd": CodecZstd,
	".sz":   CodecSnappy,
	".lz4":  CodecLZ4,
	".br":   CodecBrotli,
}

// SplitCompression strips a compression suffix from path and names the codec.
func SplitCompression(path string) (base, codec string) {
	ext := filepath.Ext(path)
	if codec, ok := codecSuffixes[strings.ToLower(ext)]; ok {
		return strings.TrimSuffix(path, ext), codec
	}
	return path, CodecNone
}

// Decompress wraps r in a decompressing reader for codec. Snappy input uses
// the framed stream format.
func Decompress(r io.Reader, codec string) (io.ReadCloser, error) {
	switch codec {
	case CodecNone:
		return io.NopCloser(r), nil
	case CodecGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return zr, nil
	case CodecZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return zr.IOReadCloser(), nil
	case CodecSnappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case CodecLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case CodecBrotli:
		return io.NopCloser(brotli.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("unsupported compression %q", codec)
	}
}
