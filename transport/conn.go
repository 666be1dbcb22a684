package transport

import (
	"io"
	"time"
)

// Stream is a bidirectional byte stream. net.Conn and QUIC streams both
// satisfy it.
type Stream interface {
	io.ReadWriteCloser
	SetDeadline(t time.Time) error
}

// Conn carries framed msgpack messages over a Stream.
type Conn struct {
	stream Stream
	role   Role
}

// NewConn wraps s. The role decides how a vanished peer is reported.
func NewConn(s Stream, role Role) *Conn {
	return &Conn{stream: s, role: role}
}

// Role returns the local side's role.
func (c *Conn) Role() Role { return c.role }

// WriteFrame writes one raw frame.
func (c *Conn) WriteFrame(payload []byte) error {
	return WriteFrame(c.stream, c.role, payload)
}

// ReadFrame reads one raw frame.
func (c *Conn) ReadFrame() ([]byte, error) {
	return ReadFrame(c.stream, c.role)
}

// Send serializes v and writes it as one frame.
func (c *Conn) Send(v any) error {
	data, err := Marshal(v)
	if err != nil {
		return err
	}
	return c.WriteFrame(data)
}

// Receive reads one frame and decodes it into v.
func (c *Conn) Receive(v any) error {
	data, err := c.ReadFrame()
	if err != nil {
		return err
	}
	return Unmarshal(data, v)
}

// SetDeadline bounds every subsequent read and write. The zero time clears it.
func (c *Conn) SetDeadline(t time.Time) error {
	return c.stream.SetDeadline(t)
}

func (c *Conn) Close() error {
	return c.stream.Close()
}
