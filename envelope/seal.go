package envelope

import (
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/stegrelay/carrier"
	"github.com/opd-ai/stegrelay/crypto"
	"github.com/opd-ai/stegrelay/limits"
	"github.com/opd-ai/stegrelay/steg"
)

const (
	flagCompressed byte = 1 << 0
	flagEncrypted  byte = 1 << 1
	knownFlags          = flagCompressed | flagEncrypted
)

// ErrNotForUs indicates a direct message addressed to someone else.
var ErrNotForUs = errors.New("message addressed to another participant")

// Options configures how chat text is hidden.
type Options struct {
	// Compress runs text through zstd before hiding it when that shrinks it.
	Compress bool
	// Steg configures the codec used on the cover image.
	Steg steg.Options
}

// NewOptions returns compression on and default codec options.
func NewOptions() *Options {
	return &Options{
		Compress: true,
		Steg:     *steg.NewOptions(),
	}
}

// Message is revealed chat text.
type Message struct {
	From   string
	To     string
	Text   string
	Direct bool
	Sent   time.Time
}

// Sealer hides chat text in copies of one cover image.
type Sealer struct {
	identity *crypto.Identity
	cover    *steg.PixelBuffer
	opts     Options
}

// NewSealer creates a sealer signing with id and hiding text in cover.
// cover is never modified.
func NewSealer(id *crypto.Identity, cover *steg.PixelBuffer, opts *Options) (*Sealer, error) {
	if id == nil || id.Box == nil || id.Signing == nil {
		return nil, errors.New("envelope: incomplete identity")
	}
	if err := cover.Validate(); err != nil {
		return nil, err
	}
	if cover.Channels != carrier.RGB && cover.Channels != carrier.RGBA && cover.Channels != carrier.Gray {
		return nil, fmt.Errorf("%w: %d", carrier.ErrUnsupportedChannels, cover.Channels)
	}
	if opts == nil {
		opts = NewOptions()
	}
	return &Sealer{identity: id, cover: cover, opts: *opts}, nil
}

// SealPublic hides text for every participant. Public messages are signed but
// not encrypted.
func (s *Sealer) SealPublic(sender, text string) (*Envelope, error) {
	return s.seal(KindPublic, sender, "", nil, text)
}

// SealDirect hides text for receiver, encrypted to its box key.
func (s *Sealer) SealDirect(sender string, receiver User, text string) (*Envelope, error) {
	return s.seal(KindDirect, sender, receiver.Name, &receiver.BoxKey, text)
}

func (s *Sealer) seal(kind Kind, sender, receiver string, boxKey *[crypto.KeySize]byte, text string) (*Envelope, error) {
	payload, err := s.buildPayload([]byte(text), boxKey)
	if err != nil {
		return nil, err
	}

	stego := s.cover.Clone()
	codec, err := steg.NewCodec(stego, steg.WithOptions(s.opts.Steg))
	if err != nil {
		return nil, err
	}
	if _, err := codec.EncodeBinary(payload); err != nil {
		return nil, err
	}

	png, err := carrier.EncodePNG(stego)
	if err != nil {
		return nil, err
	}

	env := &Envelope{
		Kind:     kind,
		Sender:   sender,
		Receiver: receiver,
		Carrier:  png,
		Channels: uint8(stego.Channels),
		Sent:     time.Now().UnixNano(),
	}
	if err := env.Sign(s.identity.Signing); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":     "seal",
		"kind":         kind.String(),
		"sender":       sender,
		"receiver":     receiver,
		"payload_size": len(payload),
		"carrier_size": len(png),
		"bits_used":    codec.Position(),
		"capacity":     codec.Capacity(),
	}).Debug("Sealed message into carrier")

	return env, nil
}

// buildPayload applies compression and encryption and prepends the flag byte.
func (s *Sealer) buildPayload(body []byte, boxKey *[crypto.KeySize]byte) ([]byte, error) {
	var flags byte

	if s.opts.Compress && len(body) > 0 {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		if err != nil {
			return nil, err
		}
		compressed := enc.EncodeAll(body, nil)
		enc.Close()
		if len(compressed) < len(body) {
			body = compressed
			flags |= flagCompressed
		}
	}

	if boxKey != nil {
		if len(body) == 0 {
			return nil, limits.ErrMessageEmpty
		}
		sealed, err := crypto.Seal(body, *boxKey, s.identity.Box.Private)
		if err != nil {
			return nil, err
		}
		body = sealed
		flags |= flagEncrypted
	}

	return append([]byte{flags}, body...), nil
}

// Opener reveals chat text addressed to one identity.
type Opener struct {
	identity *crypto.Identity
}

// NewOpener creates an opener decrypting with id.
func NewOpener(id *crypto.Identity) *Opener {
	return &Opener{identity: id}
}

// Open verifies env against sender's keys and reveals its text.
func (o *Opener) Open(env *Envelope, sender User) (*Message, error) {
	if env.Kind != KindPublic && env.Kind != KindDirect {
		return nil, fmt.Errorf("%w: %s carries no chat text", ErrMalformed, env.Kind)
	}
	if env.Sender != sender.Name {
		return nil, fmt.Errorf("%w: envelope from %q checked against %q", ErrBadSignature, env.Sender, sender.Name)
	}
	if err := env.Verify(sender.SignKey); err != nil {
		return nil, err
	}

	width, height, err := carrier.PNGDimensions(env.Carrier)
	if err != nil {
		return nil, err
	}
	if err := limits.ValidateCarrierDimensions(width, height); err != nil {
		return nil, err
	}

	stego, err := carrier.DecodePNG(env.Carrier, int(env.Channels))
	if err != nil {
		return nil, err
	}
	codec, err := steg.NewCodec(stego)
	if err != nil {
		return nil, err
	}
	payload, err := codec.DecodeBinary()
	if err != nil {
		return nil, err
	}

	body, err := o.unwrapPayload(payload, sender)
	if err != nil {
		return nil, err
	}

	return &Message{
		From:   env.Sender,
		To:     env.Receiver,
		Text:   string(body),
		Direct: env.Kind == KindDirect,
		Sent:   time.Unix(0, env.Sent),
	}, nil
}

func (o *Opener) unwrapPayload(payload []byte, sender User) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty hidden payload", ErrMalformed)
	}
	flags, body := payload[0], payload[1:]
	if flags&^knownFlags != 0 {
		return nil, fmt.Errorf("%w: unknown payload flags %#x", ErrMalformed, flags)
	}

	if flags&flagEncrypted != 0 {
		if o.identity == nil || o.identity.Box == nil {
			return nil, ErrNotForUs
		}
		plain, err := crypto.Open(body, sender.BoxKey, o.identity.Box.Private)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotForUs, err)
		}
		body = plain
	}

	if flags&flagCompressed != 0 {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(limits.MaxFramePayload))
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		plain, err := dec.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		body = plain
	}
	return body, nil
}
