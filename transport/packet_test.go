package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketSerialize(t *testing.T) {
	tests := []struct {
		name    string
		packet  *Packet
		wantErr bool
	}{
		{
			name:   "valid packet",
			packet: &Packet{PacketType: PacketEnvelope, Data: []byte{1, 2, 3, 4}},
		},
		{
			name:   "empty data",
			packet: &Packet{PacketType: PacketPing, Data: []byte{}},
		},
		{
			name:    "nil data",
			packet:  &Packet{PacketType: PacketPing},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.packet.Serialize()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, result, 1+len(tt.packet.Data))
			assert.Equal(t, byte(tt.packet.PacketType), result[0])
			assert.Equal(t, tt.packet.Data, result[1:])
		})
	}
}

func TestParsePacket(t *testing.T) {
	packet, err := ParsePacket([]byte{byte(PacketEnvelope), 9, 8})
	require.NoError(t, err)
	assert.Equal(t, PacketEnvelope, packet.PacketType)
	assert.Equal(t, []byte{9, 8}, packet.Data)

	_, err = ParsePacket(nil)
	assert.ErrorIs(t, err, ErrPacketTooShort)
}

func TestPacketTypeString(t *testing.T) {
	assert.Equal(t, "envelope", PacketEnvelope.String())
	assert.Equal(t, "noise-handshake", PacketNoiseHandshake.String())
	assert.Equal(t, "unknown", PacketType(77).String())
}
