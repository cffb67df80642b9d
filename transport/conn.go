package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/flynn/noise"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/stegrelay/limits"
)

const (
	// lengthPrefixSize is the size of the big-endian frame length header.
	lengthPrefixSize = 4
	// DefaultWriteTimeout bounds a single frame write.
	DefaultWriteTimeout = 5 * time.Second
)

// ErrConnClosed indicates use of a closed connection.
var ErrConnClosed = errors.New("connection closed")

// Conn is a framed packet connection, optionally protected by a Noise session.
// Reads and writes may proceed concurrently with each other.
type Conn struct {
	conn         net.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex
	readMu  sync.Mutex

	send      *noise.CipherState
	recv      *noise.CipherState
	remoteKey *[32]byte

	closeOnce sync.Once
	closed    chan struct{}
}

// NewConn wraps an established network connection.
func NewConn(c net.Conn) *Conn {
	return &Conn{
		conn:         c,
		writeTimeout: DefaultWriteTimeout,
		closed:       make(chan struct{}),
	}
}

// SetWriteTimeout changes the per-frame write deadline. Zero disables it.
func (c *Conn) SetWriteTimeout(d time.Duration) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.writeTimeout = d
}

// Secure reports whether frames are encrypted.
func (c *Conn) Secure() bool {
	return c.send != nil
}

// RemoteKey returns the peer's static key learned during the handshake.
func (c *Conn) RemoteKey() ([32]byte, bool) {
	if c.remoteKey == nil {
		return [32]byte{}, false
	}
	return *c.remoteKey, true
}

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Done is closed once Close has been called.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

// Close closes the underlying connection. It is safe to call more than once.
func (c *Conn) Close() error {
	err := ErrConnClosed
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

// WritePacket serializes and sends one packet.
func (c *Conn) WritePacket(packet *Packet) error {
	data, err := packet.Serialize()
	if err != nil {
		return err
	}
	if len(data) > limits.MaxFramePayload {
		return fmt.Errorf("%w: packet size %d exceeds limit %d", limits.ErrMessageTooLarge, len(data), limits.MaxFramePayload)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}

	if c.send != nil {
		err = c.writeSealed(data)
	} else {
		err = c.writeFrame(data)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "WritePacket",
			"packet_type": packet.PacketType.String(),
			"remote_addr": c.conn.RemoteAddr().String(),
			"error":       err.Error(),
		}).Debug("Failed to write packet")
	}
	return err
}

// ReadPacket blocks until one complete packet has been received.
func (c *Conn) ReadPacket() (*Packet, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	var (
		data []byte
		err  error
	)
	if c.recv != nil {
		data, err = c.readSealed()
	} else {
		data, err = c.readFrame()
	}
	if err != nil {
		return nil, err
	}

	return ParsePacket(data)
}

// writeFrame writes data with its length prefix in a single write.
func (c *Conn) writeFrame(data []byte) error {
	frame := make([]byte, lengthPrefixSize+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[lengthPrefixSize:], data)

	_, err := c.conn.Write(frame)
	return err
}

// readFrame reads one length-prefixed frame, tolerating partial reads.
func (c *Conn) readFrame() ([]byte, error) {
	var header [lengthPrefixSize]byte
	if _, err := io.ReadFull(c.conn, header[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[:])
	if err := limits.ValidateFrameSize(length); err != nil {
		return nil, err
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(c.conn, data); err != nil {
		return nil, err
	}
	return data, nil
}
