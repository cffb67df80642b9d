// Package transport frames relay packets over TCP.
//
// Every frame is a 4-byte big-endian length followed by that many bytes.
// A plain frame holds one serialized Packet: [type (1 byte)][data]. After a
// Noise IK handshake each frame instead holds one encrypted record, and a
// packet larger than a single Noise message is split across several records.
//
// Example:
//
//	conn, err := transport.Dial(ctx, "127.0.0.1:7700", &transport.DialOptions{
//	    StaticKey: identity.Box.Private,
//	    PeerKey:   &relayPublicKey,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	err = conn.WritePacket(&transport.Packet{
//	    PacketType: transport.PacketEnvelope,
//	    Data:       encoded,
//	})
package transport
