package page

import (
	"bytes"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how spilled page payloads are compressed.
type Compression string

const (
	CompressionNone   Compression = "none"
	CompressionSnappy Compression = "snappy"
	CompressionZstd   Compression = "zstd"
	CompressionLZ4    Compression = "lz4"
)

// ParseCompression resolves a configured codec name. The empty string means none.
func ParseCompression(name string) (Compression, error) {
	switch c := Compression(strings.ToLower(strings.TrimSpace(name))); c {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionSnappy, CompressionZstd, CompressionLZ4:
		return c, nil
	default:
		return "", errors.Newf("unsupported compression codec %q: expected none, snappy, zstd or lz4", name)
	}
}

// codecID is the tag stored in each frame header.
type codecID byte

const (
	codecNone codecID = iota
	codecSnappy
	codecZstd
	codecLZ4
)

type codec interface {
	compress(uncompressed []byte) ([]byte, error)
	decompress(compressed []byte) ([]byte, error)
}

var codecs = map[codecID]codec{
	codecNone:   noneCodec{},
	codecSnappy: snappyCodec{},
	codecZstd:   zstdCodec{},
	codecLZ4:    lz4Codec{},
}

func (c Compression) id() codecID {
	switch c {
	case CompressionSnappy:
		return codecSnappy
	case CompressionZstd:
		return codecZstd
	case CompressionLZ4:
		return codecLZ4
	default:
		return codecNone
	}
}

type noneCodec struct{}
type snappyCodec struct{}
type zstdCodec struct{}
type lz4Codec struct{}

func (noneCodec) compress(b []byte) ([]byte, error)   { return b, nil }
func (noneCodec) decompress(b []byte) ([]byte, error) { return b, nil }

func (snappyCodec) compress(uncompressed []byte) ([]byte, error) {
	return snappy.Encode(nil, uncompressed), nil
}

func (snappyCodec) decompress(compressed []byte) ([]byte, error) {
	return snappy.Decode(nil, compressed)
}

func (lz4Codec) compress(uncompressed []byte) ([]byte, error) {
	return compressUsing(uncompressed, func(buf io.Writer) (io.WriteCloser, error) {
		return lz4.NewWriter(buf), nil
	})
}

func (lz4Codec) decompress(compressed []byte) ([]byte, error) {
	return decompressUsing(compressed, func(buf io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(lz4.NewReader(buf)), nil
	})
}

func (zstdCodec) compress(uncompressed []byte) ([]byte, error) {
	return compressUsing(uncompressed, func(buf io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(buf)
	})
}

type readCloserNoError interface {
	io.Reader
	Close()
}

type noErrorCloser struct {
	readCloserNoError
}

func (c noErrorCloser) Close() error {
	c.readCloserNoError.Close()
	return nil
}

func (zstdCodec) decompress(compressed []byte) ([]byte, error) {
	return decompressUsing(compressed, func(buf io.Reader) (io.ReadCloser, error) {
		r, err := zstd.NewReader(buf)
		if err != nil {
			return nil, err
		}
		return noErrorCloser{readCloserNoError: r}, nil
	})
}

func compressUsing(
	uncompressed []byte, getImpl func(buf io.Writer) (io.WriteCloser, error),
) ([]byte, error) {
	var buf bytes.Buffer
	w, err := getImpl(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(uncompressed); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressUsing(
	compressed []byte, getImpl func(buf io.Reader) (io.ReadCloser, error),
) (_ []byte, err error) {
	r, err := getImpl(bytes.NewReader(compressed))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decompress")
	}

	defer func() {
		err = errors.CombineErrors(err, r.Close())
	}()

	return io.ReadAll(r)
}
