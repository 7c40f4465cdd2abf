package trace

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mjibson/go-dsp/wav"
)

// DecodeWAV reads a PCM or IEEE-float WAV capture, as produced by sound-card
// oscilloscopes. Only the first channel is used. Integer samples are scaled
// to [-1, 1) (int16 by 1/32768, unsigned 8-bit centred on 128) and then
// multiplied by voltsPerUnit. Trailing partial frames are dropped.
//
// The trace ID covers the file bytes and, when it is not 1, the scale, so the
// same file read at two scales yields two identities.
func DecodeWAV(r io.Reader, source string, voltsPerUnit float64) (*Trace, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read wav %q: %w", source, err)
	}
	if voltsPerUnit == 0 {
		voltsPerUnit = 1
	}

	h := sha256.New()
	h.Write(data)
	if voltsPerUnit != 1 {
		fmt.Fprintf(h, "\x00volts_per_unit=%g", voltsPerUnit)
	}

	br := bytes.NewReader(data)
	w, err := wav.New(br)
	if err != nil {
		return nil, fmt.Errorf("decode wav header %q: %w", source, err)
	}
	if w.SampleRate == 0 || w.NumChannels == 0 {
		return nil, fmt.Errorf("decode wav %q: invalid format (rate=%d channels=%d)",
			source, w.SampleRate, w.NumChannels)
	}

	channels := int(w.NumChannels)
	frameBytes := channels * int(w.BitsPerSample) / 8
	if frameBytes == 0 {
		return nil, fmt.Errorf("decode wav %q: %d bits per sample", source, w.BitsPerSample)
	}

	// wav.Wav.Samples rounds down; size the read from the data chunk header,
	// which wav.New has just consumed.
	frames := min(dataChunkSize(data, br.Len()), br.Len()) / frameBytes

	var values []float64
	if frames > 0 {
		raw, err := w.ReadSamples(frames * channels)
		if err != nil {
			return nil, fmt.Errorf("decode wav samples %q: %w", source, err)
		}
		if values, err = normalizeSamples(raw); err != nil {
			return nil, fmt.Errorf("decode wav samples %q: %w", source, err)
		}
	}

	rate := float64(w.SampleRate)
	samples := make([]Sample, frames)
	for i := range samples {
		samples[i] = Sample{
			Time:    float64(i) / rate,
			Voltage: values[i*channels] * voltsPerUnit,
		}
	}

	tr := newTrace(source, "wav", h.Sum(nil), samples)
	tr.Metadata["sample_rate"] = int(w.SampleRate)
	tr.Metadata["channels"] = channels
	tr.Metadata["bits_per_sample"] = int(w.BitsPerSample)
	return tr, nil
}

// dataChunkSize reads the size field of the data chunk header that precedes
// the remaining bytes.
func dataChunkSize(data []byte, remaining int) int {
	hdr := len(data) - remaining - 8
	if hdr < 0 {
		return 0
	}
	return int(binary.LittleEndian.Uint32(data[hdr+4 : hdr+8]))
}

func normalizeSamples(raw any) ([]float64, error) {
	switch s := raw.(type) {
	case []int16:
		out := make([]float64, len(s))
		for i, v := range s {
			out[i] = float64(v) / 32768
		}
		return out, nil
	case []uint8:
		out := make([]float64, len(s))
		for i, v := range s {
			out[i] = (float64(v) - 128) / 128
		}
		return out, nil
	case []float32:
		out := make([]float64, len(s))
		for i, v := range s {
			out[i] = float64(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported sample type %T", raw)
	}
}
