package object

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Stored envelopes may be zstd-compressed on disk. Compression is a
// private storage concern: hashes always cover the uncompressed
// envelope, and reads sniff the zstd frame magic so a store can hold a
// mix of raw and compressed objects.

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// compressMinSize is the smallest payload worth compressing; below this
// the frame overhead dominates.
const compressMinSize = 128

func encoderLevel(level int) zstd.EncoderLevel {
	switch level {
	case 1:
		return zstd.SpeedFastest
	case 3:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedDefault
	}
}

// compressEnvelope returns the on-disk form of data. Small or
// incompressible payloads are stored raw.
func compressEnvelope(data []byte, level int) ([]byte, error) {
	if len(data) < compressMinSize {
		return data, nil
	}
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(encoderLevel(level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	defer enc.Close()

	compressed := enc.EncodeAll(data, make([]byte, 0, len(data)))
	if len(compressed) >= len(data) {
		return data, nil
	}
	return compressed, nil
}

// decompressEnvelope returns the original envelope for on-disk bytes,
// raw or zstd-framed.
func decompressEnvelope(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, zstdMagic) {
		return data, nil
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	defer dec.Close()

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}
