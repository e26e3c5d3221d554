package capture

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"

	"github.com/nerrad567/motion-bridge/internal/device"
)

// Encoding names the compression applied to a sample blob.
type Encoding string

// Supported encodings.
const (
	EncodingNone Encoding = "none"
	EncodingZstd Encoding = "zstd"
	EncodingLZ4  Encoding = "lz4"
)

// maxSamples bounds the array length accepted when decoding a blob. At
// 50 Hz this is over 23 hours of capture.
const maxSamples = 1 << 22

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error

	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("capture: cbor encoder: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{MaxArrayElements: maxSamples}.DecMode()
	if err != nil {
		panic("capture: cbor decoder: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("capture: zstd encoder: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("capture: zstd decoder: " + err.Error())
	}
}

// ParseEncoding converts a configuration value to an Encoding. The empty
// string selects zstd.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(s) {
	case "", EncodingZstd:
		return EncodingZstd, nil
	case EncodingLZ4:
		return EncodingLZ4, nil
	case EncodingNone:
		return EncodingNone, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEncoding, s)
}

// Blob is an encoded sample sequence as stored in the archive.
type Blob struct {
	// Encoding is the compression actually applied. It may be EncodingNone
	// even when another encoding was requested, if compression did not
	// shrink the payload.
	Encoding Encoding

	// RawSize is the length of the uncompressed CBOR payload.
	RawSize int

	// Checksum is the hex BLAKE3-256 digest of Data.
	Checksum string

	Data []byte
}

// Encode serializes samples as deterministic CBOR (an array of [x, y, z]
// triples) and compresses them with enc.
func Encode(samples []device.Sample, enc Encoding) (Blob, error) {
	triples := make([][3]float64, len(samples))
	for i, s := range samples {
		triples[i] = [3]float64{s.X, s.Y, s.Z}
	}

	raw, err := cborEnc.Marshal(triples)
	if err != nil {
		return Blob{}, fmt.Errorf("encoding samples: %w", err)
	}

	data, used, err := compress(raw, enc)
	if err != nil {
		return Blob{}, err
	}

	return Blob{
		Encoding: used,
		RawSize:  len(raw),
		Checksum: checksum(data),
		Data:     data,
	}, nil
}

// Decode verifies the checksum of b and returns its samples.
func Decode(b Blob) ([]device.Sample, error) {
	if checksum(b.Data) != b.Checksum {
		return nil, ErrChecksumMismatch
	}

	raw, err := decompress(b.Data, b.Encoding, b.RawSize)
	if err != nil {
		return nil, err
	}

	var triples [][3]float64
	if err := cborDec.Unmarshal(raw, &triples); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptBlob, err)
	}

	samples := make([]device.Sample, len(triples))
	for i, t := range triples {
		samples[i] = device.Sample{X: t[0], Y: t[1], Z: t[2]}
	}
	return samples, nil
}

// compress returns the compressed payload and the encoding that was
// applied. Payloads that do not shrink are stored raw.
func compress(raw []byte, enc Encoding) ([]byte, Encoding, error) {
	switch enc {
	case EncodingNone:
		return raw, EncodingNone, nil

	case EncodingZstd:
		out := zstdEncoder.EncodeAll(raw, make([]byte, 0, len(raw)))
		if len(out) >= len(raw) {
			return raw, EncodingNone, nil
		}
		return out, EncodingZstd, nil

	case EncodingLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, dst, nil)
		if err != nil {
			return nil, "", fmt.Errorf("lz4 compress: %w", err)
		}
		// n == 0 means the block is incompressible.
		if n == 0 || n >= len(raw) {
			return raw, EncodingNone, nil
		}
		return dst[:n], EncodingLZ4, nil
	}
	return nil, "", fmt.Errorf("%w: %q", ErrUnknownEncoding, enc)
}

func decompress(data []byte, enc Encoding, rawSize int) ([]byte, error) {
	switch enc {
	case EncodingNone:
		return data, nil

	case EncodingZstd:
		out, err := zstdDecoder.DecodeAll(data, make([]byte, 0, rawSize))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %w", ErrCorruptBlob, err)
		}
		return out, nil

	case EncodingLZ4:
		if rawSize < 0 {
			return nil, fmt.Errorf("%w: negative raw size", ErrCorruptBlob)
		}
		out := make([]byte, rawSize)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %w", ErrCorruptBlob, err)
		}
		if n != rawSize {
			return nil, fmt.Errorf("%w: lz4 size %d, want %d", ErrCorruptBlob, n, rawSize)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, enc)
}

func checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
