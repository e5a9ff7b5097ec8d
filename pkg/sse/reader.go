package sse

import (
	"errors"
	"io"
)

const readChunkSize = 32 * 1024

// TeeReader reads events from a source io.Reader while simultaneously
// writing all raw bytes verbatim to a destination io.Writer.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌───────────────────────┐
// │ TeeReader.Next() │──▶│ destination io.Writer │
// └──────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Event       │
// └──────────────────┘
//
// Events are decoded incrementally with a Decoder, so each one is available
// as soon as its block terminator has been read.
type TeeReader struct {
	src     io.Reader
	dest    io.Writer
	decoder *Decoder
	buf     []byte

	// queue holds decoded events not yet returned by Next.
	queue []Event
	done  bool
	read  int64
}

// NewTeeReader returns a TeeReader that parses events from src and writes all
// raw bytes through to dest. A nil dest discards the raw bytes.
func NewTeeReader(src io.Reader, dest io.Writer) *TeeReader {
	if dest == nil {
		dest = io.Discard
	}

	return &TeeReader{
		src:     src,
		dest:    dest,
		decoder: NewDecoder(),
		buf:     make([]byte, readChunkSize),
	}
}

// Next returns the next parsed event. It blocks until a complete event is
// available or the source is exhausted, in which case it returns nil, nil.
// Errors from the source or the destination are returned as-is.
func (r *TeeReader) Next() (*Event, error) {
	for len(r.queue) == 0 {
		if r.done {
			return nil, nil
		}

		if err := r.fill(); err != nil {
			return nil, err
		}
	}

	ev := r.queue[0]
	r.queue = r.queue[1:]
	return &ev, nil
}

// BytesRead reports the number of raw bytes consumed from the source so far.
func (r *TeeReader) BytesRead() int64 {
	return r.read
}

// fill performs a single read from the source and decodes what arrived.
func (r *TeeReader) fill() error {
	n, err := r.src.Read(r.buf)
	if n > 0 {
		r.read += int64(n)

		if _, werr := r.dest.Write(r.buf[:n]); werr != nil {
			return werr
		}

		r.queue = append(r.queue, r.decoder.Feed(r.buf[:n])...)
	}

	if errors.Is(err, io.EOF) {
		r.queue = append(r.queue, r.decoder.Flush()...)
		r.done = true
		return nil
	}

	return err
}
