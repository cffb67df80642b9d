package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/stegrelay/limits"
	"github.com/opd-ai/stegrelay/noise"
)

const (
	// maxNoiseMessage is the largest Noise transport message.
	maxNoiseMessage = 65535
	// noiseTagSize is the ChaCha20-Poly1305 authentication tag size.
	noiseTagSize = 16
	// maxRecordChunk is the packet bytes carried by one encrypted record,
	// leaving room for the tag and the continuation flag.
	maxRecordChunk = maxNoiseMessage - noiseTagSize - 1

	recordFinal byte = 0
	recordMore  byte = 1

	// DefaultHandshakeTimeout bounds the Noise handshake exchange.
	DefaultHandshakeTimeout = 10 * time.Second
)

var (
	// ErrAlreadySecure indicates a second handshake on the same connection.
	ErrAlreadySecure = errors.New("connection already secured")
	// ErrUnexpectedPacket indicates a non-handshake packet during the handshake.
	ErrUnexpectedPacket = errors.New("unexpected packet during handshake")
	// ErrBadRecord indicates an encrypted record with an invalid layout.
	ErrBadRecord = errors.New("malformed encrypted record")
)

// ClientHandshake runs the Noise IK handshake as initiator. peerKey is the
// responder's static public key.
func (c *Conn) ClientHandshake(ctx context.Context, staticKey, peerKey [32]byte) error {
	if c.Secure() {
		return ErrAlreadySecure
	}

	hs, err := noise.NewIKHandshake(staticKey, &peerKey, noise.Initiator)
	if err != nil {
		return err
	}

	restore := c.handshakeDeadline(ctx)
	defer restore()

	msg, err := hs.WriteMessage(nil)
	if err != nil {
		return err
	}
	if err := c.writeFrame(handshakeFrame(msg)); err != nil {
		return fmt.Errorf("send handshake: %w", err)
	}

	reply, err := c.readHandshake()
	if err != nil {
		return err
	}
	if _, err := hs.ReadMessage(reply); err != nil {
		return err
	}

	remote := peerKey
	return c.secure(hs, &remote)
}

// ServerHandshake runs the Noise IK handshake as responder and records the
// initiator's static key.
func (c *Conn) ServerHandshake(ctx context.Context, staticKey [32]byte) error {
	if c.Secure() {
		return ErrAlreadySecure
	}

	hs, err := noise.NewIKHandshake(staticKey, nil, noise.Responder)
	if err != nil {
		return err
	}

	restore := c.handshakeDeadline(ctx)
	defer restore()

	msg, err := c.readHandshake()
	if err != nil {
		return err
	}
	if _, err := hs.ReadMessage(msg); err != nil {
		return err
	}

	reply, err := hs.WriteMessage(nil)
	if err != nil {
		return err
	}
	if err := c.writeFrame(handshakeFrame(reply)); err != nil {
		return fmt.Errorf("send handshake reply: %w", err)
	}

	remote, err := hs.RemoteStaticKey()
	if err != nil {
		return err
	}
	return c.secure(hs, &remote)
}

func (c *Conn) secure(hs *noise.IKHandshake, remote *[32]byte) error {
	send, recv, err := hs.CipherStates()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	c.readMu.Lock()
	c.send, c.recv, c.remoteKey = send, recv, remote
	c.readMu.Unlock()
	c.writeMu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":    "secure",
		"remote_addr": c.conn.RemoteAddr().String(),
	}).Debug("Noise session established")
	return nil
}

// handshakeDeadline applies the context deadline, or the default timeout, to
// the raw connection and returns a func that clears it.
func (c *Conn) handshakeDeadline(ctx context.Context) func() {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultHandshakeTimeout)
	}
	_ = c.conn.SetDeadline(deadline)

	stop := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			_ = c.conn.SetDeadline(time.Now())
		case <-stop:
		}
	}()

	return func() {
		close(stop)
		<-exited
		_ = c.conn.SetDeadline(time.Time{})
	}
}

func handshakeFrame(msg []byte) []byte {
	frame := make([]byte, 1+len(msg))
	frame[0] = byte(PacketNoiseHandshake)
	copy(frame[1:], msg)
	return frame
}

func (c *Conn) readHandshake() ([]byte, error) {
	data, err := c.readFrame()
	if err != nil {
		return nil, fmt.Errorf("read handshake: %w", err)
	}
	packet, err := ParsePacket(data)
	if err != nil {
		return nil, err
	}
	if packet.PacketType != PacketNoiseHandshake {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedPacket, packet.PacketType)
	}
	return packet.Data, nil
}

// writeSealed encrypts data as one or more records. Each record plaintext is
// [continuation flag][chunk].
func (c *Conn) writeSealed(data []byte) error {
	for {
		chunk := data
		flag := recordFinal
		if len(chunk) > maxRecordChunk {
			chunk = data[:maxRecordChunk]
			flag = recordMore
		}

		plain := make([]byte, 1+len(chunk))
		plain[0] = flag
		copy(plain[1:], chunk)

		record, err := c.send.Encrypt(nil, nil, plain)
		if err != nil {
			return fmt.Errorf("encrypt record: %w", err)
		}
		if err := c.writeFrame(record); err != nil {
			return err
		}

		data = data[len(chunk):]
		if flag == recordFinal {
			return nil
		}
	}
}

// readSealed reads and decrypts records until a final record arrives.
func (c *Conn) readSealed() ([]byte, error) {
	var data []byte
	for {
		record, err := c.readFrame()
		if err != nil {
			return nil, err
		}
		if len(record) > maxNoiseMessage {
			return nil, fmt.Errorf("%w: record size %d", ErrBadRecord, len(record))
		}

		plain, err := c.recv.Decrypt(nil, nil, record)
		if err != nil {
			return nil, fmt.Errorf("decrypt record: %w", err)
		}
		if len(plain) < 1 {
			return nil, ErrBadRecord
		}

		data = append(data, plain[1:]...)
		if len(data) > limits.MaxFramePayload {
			return nil, fmt.Errorf("%w: packet exceeds %d bytes", limits.ErrMessageTooLarge, limits.MaxFramePayload)
		}

		switch plain[0] {
		case recordFinal:
			return data, nil
		case recordMore:
		default:
			return nil, fmt.Errorf("%w: flag %d", ErrBadRecord, plain[0])
		}
	}
}
