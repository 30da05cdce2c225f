package page

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"

	"qpexec/pkg/tuple"
)

// Frame layout, all integers big-endian:
//
//	[uint32 stored length][byte codec][uint64 xxhash of stored bytes][stored bytes]
//
// The stored bytes decompress to the payload:
//
//	[uint32 tuple count][count fixed-size tuple records]
const frameHeaderSize = 4 + 1 + 8

// maxFrameSize bounds the stored length accepted from disk so that a corrupt
// header cannot force a huge allocation.
const maxFrameSize = 64 << 20

// ErrCorruptPage marks a spilled frame that failed validation: bad checksum,
// truncated record, unknown codec or a payload inconsistent with its count.
var ErrCorruptPage = errors.New("corrupt page frame")

// Encode serializes b as one frame using the given compression.
func Encode(b *Batch, c Compression) ([]byte, error) {
	recordSize := int(b.td.GetSize())
	payload := bytes.NewBuffer(make([]byte, 0, 4+recordSize*b.Size()))

	var count [4]byte
	binary.BigEndian.PutUint32(count[:], uint32(b.Size())) // #nosec G115
	payload.Write(count[:])

	for _, t := range b.tuples {
		if err := t.Serialize(payload); err != nil {
			return nil, errors.Wrap(err, "serializing tuple")
		}
	}

	id := c.id()
	stored, err := codecs[id].compress(payload.Bytes())
	if err != nil {
		return nil, errors.Wrapf(err, "compressing page with %s", c)
	}

	frame := make([]byte, frameHeaderSize+len(stored))
	binary.BigEndian.PutUint32(frame[0:4], uint32(len(stored))) // #nosec G115
	frame[4] = byte(id)
	binary.BigEndian.PutUint64(frame[5:13], xxhash.Sum64(stored))
	copy(frame[frameHeaderSize:], stored)
	return frame, nil
}

// WriteFrame encodes b and writes the frame to w, returning the bytes written.
func WriteFrame(w io.Writer, b *Batch, c Compression) (int, error) {
	frame, err := Encode(b, c)
	if err != nil {
		return 0, err
	}
	return w.Write(frame)
}

// ReadFrame reads the next frame from r and decodes it into a batch of the
// given capacity. It returns io.EOF only when r is exhausted exactly at a
// frame boundary; any partial frame is reported as ErrCorruptPage.
func ReadFrame(r io.Reader, td *tuple.TupleDescription, capacity int) (*Batch, error) {
	stored, id, err := readStored(r)
	if err != nil {
		return nil, err
	}

	c, ok := codecs[id]
	if !ok {
		return nil, errors.Wrapf(ErrCorruptPage, "unknown codec id %d", id)
	}
	payload, err := c.decompress(stored)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decompressing page"), ErrCorruptPage)
	}
	return decodePayload(payload, td, capacity)
}

// SkipFrame advances r past one frame without decoding it.
func SkipFrame(r io.Reader) error {
	var header [frameHeaderSize]byte
	if err := readHeader(r, header[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(header[0:4])
	if n > maxFrameSize {
		return errors.Wrapf(ErrCorruptPage, "frame length %d exceeds limit", n)
	}
	if _, err := io.CopyN(io.Discard, r, int64(n)); err != nil {
		return truncated(err, "skipping frame body")
	}
	return nil
}

func readHeader(r io.Reader, header []byte) error {
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return truncated(err, "reading frame header")
	}
	return nil
}

// truncated reports a short read inside a frame. A bare io.EOF at this point
// means the frame was cut, so it is rewritten to io.ErrUnexpectedEOF.
func truncated(err error, what string) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return errors.Mark(errors.Wrap(err, what), ErrCorruptPage)
}

func readStored(r io.Reader) ([]byte, codecID, error) {
	var header [frameHeaderSize]byte
	if err := readHeader(r, header[:]); err != nil {
		return nil, 0, err
	}

	n := binary.BigEndian.Uint32(header[0:4])
	if n > maxFrameSize {
		return nil, 0, errors.Wrapf(ErrCorruptPage, "frame length %d exceeds limit", n)
	}
	id := codecID(header[4])
	sum := binary.BigEndian.Uint64(header[5:13])

	stored := make([]byte, n)
	if _, err := io.ReadFull(r, stored); err != nil {
		return nil, 0, truncated(err, "reading frame body")
	}
	if got := xxhash.Sum64(stored); got != sum {
		return nil, 0, errors.Wrapf(ErrCorruptPage, "checksum mismatch: stored %x, computed %x", sum, got)
	}
	return stored, id, nil
}

func decodePayload(payload []byte, td *tuple.TupleDescription, capacity int) (*Batch, error) {
	if len(payload) < 4 {
		return nil, errors.Wrap(ErrCorruptPage, "payload shorter than tuple count")
	}
	count := int(binary.BigEndian.Uint32(payload[:4]))
	recordSize := int(td.GetSize())

	if want := 4 + count*recordSize; len(payload) != want {
		return nil, errors.Wrapf(ErrCorruptPage, "payload is %d bytes, %d tuples need %d", len(payload), count, want)
	}
	if count > capacity {
		return nil, errors.Wrapf(ErrCorruptPage, "page holds %d tuples, capacity is %d", count, capacity)
	}

	b := NewBatch(td, capacity)
	rd := bytes.NewReader(payload[4:])
	for range count {
		t, err := tuple.Parse(rd, td)
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "decoding tuple"), ErrCorruptPage)
		}
		b.tuples = append(b.tuples, t)
	}
	return b, nil
}
