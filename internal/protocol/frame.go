package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

var (
	// ErrTimeout is returned by the bounded-wait receive when the deadline
	// elapses before a full frame arrives. The connection remains usable.
	ErrTimeout = errors.New("protocol: receive timed out")

	// ErrOversizedPayload is returned when a payload would not fit in a frame.
	ErrOversizedPayload = errors.New("protocol: payload exceeds maximum size")

	// ErrMalformedHeader is returned when a header declares an impossible length.
	ErrMalformedHeader = errors.New("protocol: malformed frame header")

	// ErrPartialFrame is returned when the deadline elapses after part of a
	// frame has already been consumed. The stream is desynchronized and the
	// connection must be torn down.
	ErrPartialFrame = errors.New("protocol: timed out mid-frame")
)

// Header precedes every frame. All four fields are 4 byte unsigned integers
// in little-endian order. Sequence increments per outbound frame on a session
// but is informational only; Reserved must be zero.
type Header struct {
	Type     uint32
	Length   uint32
	Sequence uint32
	Reserved uint32
}

// EncodeHeader serializes a header into its 16 byte wire form.
func EncodeHeader(h Header) [HeaderSize]byte {
	var b [HeaderSize]byte
	binary.LittleEndian.PutUint32(b[0:], h.Type)
	binary.LittleEndian.PutUint32(b[4:], h.Length)
	binary.LittleEndian.PutUint32(b[8:], h.Sequence)
	binary.LittleEndian.PutUint32(b[12:], h.Reserved)
	return b
}

// DecodeHeader parses the 16 byte wire form of a header and validates the
// declared payload length against the frame size limit.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrMalformedHeader
	}
	h := Header{
		Type:     binary.LittleEndian.Uint32(b[0:]),
		Length:   binary.LittleEndian.Uint32(b[4:]),
		Sequence: binary.LittleEndian.Uint32(b[8:]),
		Reserved: binary.LittleEndian.Uint32(b[12:]),
	}
	if h.Length > MaxPayloadSize {
		return Header{}, ErrMalformedHeader
	}
	return h, nil
}

// WriteFrame serializes payload (a fixed-layout packet struct, or nil for an
// empty payload) and writes a complete frame to w. Either the entire frame is
// transferred or an error is returned.
func WriteFrame(w io.Writer, msgType uint32, sequence uint32, payload interface{}) error {
	var data []byte
	if payload != nil {
		var size int
		data, size = BytesFromStruct(payload)
		if size > MaxPayloadSize {
			return ErrOversizedPayload
		}
	}

	header := EncodeHeader(Header{
		Type:     msgType,
		Length:   uint32(len(data)),
		Sequence: sequence,
	})

	frame := make([]byte, 0, HeaderSize+len(data))
	frame = append(frame, header[:]...)
	frame = append(frame, data...)

	sent := 0
	for sent < len(frame) {
		n, err := w.Write(frame[sent:])
		if err != nil {
			return fmt.Errorf("protocol: short write after %d bytes: %w", sent, err)
		}
		sent += n
	}
	return nil
}

// ReadFrame blocks until one complete frame has been read from r, returning
// the parsed header and exactly header.Length payload bytes.
func ReadFrame(r io.Reader) (Header, []byte, error) {
	var headerBytes [HeaderSize]byte
	if _, err := io.ReadFull(r, headerBytes[:]); err != nil {
		return Header{}, nil, err
	}

	header, err := DecodeHeader(headerBytes[:])
	if err != nil {
		return Header{}, nil, err
	}

	payload := make([]byte, header.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Header{}, nil, fmt.Errorf("protocol: truncated payload: %w", err)
	}
	return header, payload, nil
}

// ReadFrameTimeout is the bounded-wait variant of ReadFrame. When the wait
// elapses before the first byte arrives it returns ErrTimeout and the
// connection remains usable. A deadline that fires mid-frame is
// ErrPartialFrame instead: the consumed bytes cannot be replayed, so the
// caller must close the connection rather than keep reading.
func ReadFrameTimeout(conn net.Conn, wait time.Duration) (Header, []byte, error) {
	if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return Header{}, nil, err
	}
	defer conn.SetReadDeadline(time.Time{})

	counted := &countingReader{r: conn}
	header, payload, err := ReadFrame(counted)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			if counted.n == 0 {
				return Header{}, nil, ErrTimeout
			}
			return Header{}, nil, fmt.Errorf("%w after %d bytes", ErrPartialFrame, counted.n)
		}
		return Header{}, nil, err
	}
	return header, payload, nil
}

// countingReader tracks how many bytes a ReadFrame call consumed so a
// deadline can be classified as idle or mid-frame.
type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}
