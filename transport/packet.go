package transport

import (
	"errors"
)

// PacketType identifies the type of a relay link packet.
type PacketType byte

const (
	// PacketEnvelope carries one CBOR encoded relay envelope.
	PacketEnvelope PacketType = iota + 1
	// PacketPing is an empty keepalive.
	PacketPing

	// PacketNoiseHandshake carries a Noise IK handshake message.
	PacketNoiseHandshake PacketType = 250
)

func (t PacketType) String() string {
	switch t {
	case PacketEnvelope:
		return "envelope"
	case PacketPing:
		return "ping"
	case PacketNoiseHandshake:
		return "noise-handshake"
	default:
		return "unknown"
	}
}

// ErrPacketTooShort indicates a frame without a type byte.
var ErrPacketTooShort = errors.New("packet too short")

// Packet represents one framed relay packet.
type Packet struct {
	PacketType PacketType
	Data       []byte
}

// Serialize converts a packet to a byte slice for transmission.
func (p *Packet) Serialize() ([]byte, error) {
	if p.Data == nil {
		return nil, errors.New("packet data is nil")
	}

	// Format: [packet type (1 byte)][data (variable length)]
	result := make([]byte, 1+len(p.Data))
	result[0] = byte(p.PacketType)
	copy(result[1:], p.Data)

	return result, nil
}

// ParsePacket converts a byte slice to a Packet structure.
func ParsePacket(data []byte) (*Packet, error) {
	if len(data) < 1 {
		return nil, ErrPacketTooShort
	}

	packet := &Packet{
		PacketType: PacketType(data[0]),
		Data:       make([]byte, len(data)-1),
	}
	copy(packet.Data, data[1:])

	return packet, nil
}
