package transport

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/stegrelay/limits"
)

// partialReadConn simulates a TCP connection that returns partial reads.
type partialReadConn struct {
	data       []byte
	readPos    int
	chunkSize  int
	readCalls  int
	closed     bool
	remoteAddr net.Addr
}

func newPartialReadConn(data []byte, chunkSize int) *partialReadConn {
	return &partialReadConn{
		data:       data,
		readPos:    0,
		chunkSize:  chunkSize,
		remoteAddr: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 12345},
	}
}

// Read simulates partial reads by returning only chunkSize bytes at a time.
func (p *partialReadConn) Read(b []byte) (n int, err error) {
	if p.closed {
		return 0, io.EOF
	}

	p.readCalls++

	remaining := len(p.data) - p.readPos
	if remaining == 0 {
		return 0, io.EOF
	}

	// Return at most chunkSize bytes
	toRead := p.chunkSize
	if toRead > len(b) {
		toRead = len(b)
	}
	if toRead > remaining {
		toRead = remaining
	}

	n = copy(b, p.data[p.readPos:p.readPos+toRead])
	p.readPos += n
	return n, nil
}

func (p *partialReadConn) Write(b []byte) (n int, err error) {
	return len(b), nil
}

func (p *partialReadConn) Close() error {
	p.closed = true
	return nil
}

func (p *partialReadConn) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8080}
}

func (p *partialReadConn) RemoteAddr() net.Addr {
	return p.remoteAddr
}

func (p *partialReadConn) SetDeadline(t time.Time) error {
	return nil
}

func (p *partialReadConn) SetReadDeadline(t time.Time) error {
	return nil
}

func (p *partialReadConn) SetWriteDeadline(t time.Time) error {
	return nil
}

func framed(length uint32, body []byte) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, length)
	buf.Write(body)
	return buf.Bytes()
}

// TestConnPartialReads verifies that frames split across many reads are reassembled.
func TestConnPartialReads(t *testing.T) {
	tests := []struct {
		name      string
		dataSize  int
		chunkSize int
	}{
		{name: "single byte chunks", dataSize: 100, chunkSize: 1},
		{name: "two byte chunks", dataSize: 256, chunkSize: 2},
		{name: "header not aligned", dataSize: 1024, chunkSize: 3},
		{name: "large packet small chunks", dataSize: 4096, chunkSize: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := bytes.Repeat([]byte{0xAB}, tt.dataSize)
			body := append([]byte{byte(PacketEnvelope)}, payload...)

			raw := newPartialReadConn(framed(uint32(len(body)), body), tt.chunkSize)
			conn := NewConn(raw)

			packet, err := conn.ReadPacket()
			require.NoError(t, err)
			assert.Equal(t, PacketEnvelope, packet.PacketType)
			assert.Equal(t, payload, packet.Data)
			assert.Greater(t, raw.readCalls, 1)
		})
	}
}

// TestConnReadUnexpectedEOF verifies truncated frames surface io.ErrUnexpectedEOF.
func TestConnReadUnexpectedEOF(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "incomplete header", data: []byte{0, 0}},
		{name: "incomplete body", data: framed(10, []byte{byte(PacketEnvelope), 1, 2})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := NewConn(newPartialReadConn(tt.data, 4))
			_, err := conn.ReadPacket()
			assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
		})
	}
}

func TestConnRejectsBadFrameLength(t *testing.T) {
	conn := NewConn(newPartialReadConn(framed(limits.MaxFramePayload+1, nil), 64))
	_, err := conn.ReadPacket()
	assert.ErrorIs(t, err, limits.ErrMessageTooLarge)

	conn = NewConn(newPartialReadConn(framed(0, nil), 64))
	_, err = conn.ReadPacket()
	assert.ErrorIs(t, err, limits.ErrMessageEmpty)
}

func TestConnRejectsOversizePacket(t *testing.T) {
	conn := NewConn(newPartialReadConn(nil, 1))
	err := conn.WritePacket(&Packet{PacketType: PacketEnvelope, Data: make([]byte, limits.MaxFramePayload)})
	assert.ErrorIs(t, err, limits.ErrMessageTooLarge)
}

func TestConnCloseTwice(t *testing.T) {
	conn := NewConn(newPartialReadConn(nil, 1))
	require.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.Close(), ErrConnClosed)

	select {
	case <-conn.Done():
	default:
		t.Fatal("Done not closed")
	}
}

var _ net.Conn = (*partialReadConn)(nil)
