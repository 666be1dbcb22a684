package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/wippyai/zhur/errors"
)

const (
	// HeaderSize is the width of the big-endian length prefix.
	HeaderSize = 8

	// MaxFrameSize bounds the payload allocation for a single frame.
	MaxFrameSize = 64 << 20
)

// Role says which side of a connection is reading or writing, so a peer
// going away can be reported as the right kind of disconnect.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// peerGone reports the peer's departure from this role's point of view.
func (r Role) peerGone(cause error) *errors.Error {
	if r == RoleServer {
		return errors.ClientDisconnected(cause)
	}
	return errors.ServerDisconnected(cause)
}

// WriteFrame writes the length prefix, then the whole payload.
func WriteFrame(w io.Writer, role Role, payload []byte) error {
	var hdr [HeaderSize]byte
	binary.BigEndian.PutUint64(hdr[:], uint64(len(payload)))

	if err := writeFull(w, hdr[:]); err != nil {
		return classify(err, role, "write frame header")
	}
	if err := writeFull(w, payload); err != nil {
		return classify(err, role, "write frame payload")
	}
	return nil
}

// ReadFrame reads one length-prefixed frame, accumulating the payload across
// as many partial reads as the reader needs.
func ReadFrame(r io.Reader, role Role) ([]byte, error) {
	var hdr [HeaderSize]byte
	if err := readFull(r, hdr[:]); err != nil {
		return nil, classify(err, role, "read frame header")
	}

	size := binary.BigEndian.Uint64(hdr[:])
	if size > MaxFrameSize {
		return nil, errors.Deserialize("frame",
			fmt.Errorf("declared length %d exceeds limit %d", size, MaxFrameSize))
	}

	payload := make([]byte, size)
	if err := readFull(r, payload); err != nil {
		return nil, classify(err, role, "read frame payload")
	}
	return payload, nil
}

// readFull treats a read that returns no bytes and no error as the peer
// having gone away.
func readFull(r io.Reader, buf []byte) error {
	for n := 0; n < len(buf); {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			if err == io.EOF && n == len(buf) {
				return nil
			}
			return err
		}
		if m == 0 {
			return io.ErrNoProgress
		}
	}
	return nil
}

func writeFull(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		buf = buf[n:]
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
	}
	return nil
}

func classify(err error, role Role, what string) error {
	if isPeerGone(err) {
		return role.peerGone(err)
	}
	return errors.IO(what, err)
}

func isPeerGone(err error) bool {
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrNoProgress),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	return quicClosed(err)
}
