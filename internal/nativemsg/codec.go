// Package nativemsg implements the browser native messaging framing: each
// message is a 4-byte length in native byte order followed by that many
// bytes of UTF-8 JSON.
package nativemsg

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

const (
	// MaxOutgoing is the largest message the browser accepts from a host.
	MaxOutgoing = 1 << 20
	// MaxIncoming bounds a single request; the browser never sends more than 4 GiB.
	MaxIncoming = 64 << 20

	headerSize = 4
)

var (
	// ErrTruncated means the stream ended inside a frame.
	ErrTruncated = errors.New("truncated native message")
	// ErrTooLarge means a frame exceeds the allowed size.
	ErrTooLarge = errors.New("native message too large")
)

// Reader reads framed messages.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r, usually os.Stdin.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the payload of the next frame. A clean end of stream between
// frames is io.EOF.
func (r *Reader) Next() ([]byte, error) {
	var header [headerSize]byte
	n, err := io.ReadFull(r.r, header[:])
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: header has %d of %d bytes", ErrTruncated, n, headerSize)
		}
		return nil, err
	}

	size := binary.NativeEndian.Uint32(header[:])
	if size > MaxIncoming {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}

	payload := make([]byte, size)
	if n, err := io.ReadFull(r.r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: body has %d of %d bytes", ErrTruncated, n, size)
		}
		return nil, err
	}
	return payload, nil
}

// Writer writes framed messages. Safe for concurrent use.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps w, usually os.Stdout.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write marshals v and writes it as one frame.
func (w *Writer) Write(v any) error {
	frame, err := Encode(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.w.Write(frame)
	return err
}

// Encode marshals v into a complete frame, header included.
func Encode(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return Frame(payload)
}

// Frame prefixes an already encoded payload with its length.
func Frame(payload []byte) ([]byte, error) {
	if len(payload) > MaxOutgoing {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(payload), MaxOutgoing)
	}

	frame := make([]byte, headerSize+len(payload))
	binary.NativeEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[headerSize:], payload)
	return frame, nil
}
