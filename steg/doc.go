// Package steg implements a least-significant-bit steganographic codec over
// decoded raster pixel buffers.
//
// A Codec owns a PixelBuffer for the duration of one encode or decode call and
// addresses it one bit at a time through a cursor. The cursor walks every
// sample of the buffer in channel, column, row order for bit-plane 0 before it
// touches bit-plane 1 of any sample, and so on up to bit-plane 7, so the least
// perceptible bits of the whole image are consumed first.
//
// Three frame shapes are supported, each with a fixed-width, MSB-first length
// prefix:
//
//	Frame   │ Prefix                          │ Payload
//	────────┼─────────────────────────────────┼──────────────────────────────
//	Text    │ count:16                        │ count × 8-bit code points
//	Binary  │ count:64                        │ count × 8-bit bytes
//	Image   │ width:16 height:16 channels:8   │ w·h·c × 8-bit samples
//
// Legacy image frames (WithLegacyImageFrame) omit the channel field and always
// carry three channels.
//
// Every Encode call validates the frame against the codec's capacity before
// the first bit is written, so a failed encode leaves the buffer untouched:
//
//	buf, _ := steg.NewPixelBuffer(4, 4, 3)
//	codec, _ := steg.NewCodec(buf)
//	if _, err := codec.EncodeText("hi"); err != nil {
//	    log.Fatal(err)
//	}
//
//	reader, _ := steg.NewCodec(buf)
//	text, _ := reader.DecodeText() // "hi"
//
// Text frames carry one byte per character. Code points above 255 are rejected
// with ErrValueTooLarge; callers that need arbitrary Unicode should encode the
// UTF-8 bytes with EncodeBinary instead.
//
// The codec provides no confidentiality. Encrypt payloads before encoding
// them; see the crypto and envelope packages.
//
// A Codec is not safe for concurrent use. Give every message its own codec and
// buffer.
package steg
