package envelope

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/opd-ai/stegrelay/crypto"
	"github.com/opd-ai/stegrelay/limits"
)

// Kind identifies the purpose of an envelope.
type Kind uint8

const (
	// KindRegister announces a participant to the relay.
	KindRegister Kind = iota + 1
	// KindFetch asks the relay for the current participant list.
	KindFetch
	// KindUserList carries the participant list.
	KindUserList
	// KindPublic is a chat message for every participant.
	KindPublic
	// KindDirect is a chat message for one participant.
	KindDirect
	// KindBye leaves the relay.
	KindBye
	// KindError reports a rejected request.
	KindError
)

var (
	// ErrUnknownKind indicates an envelope kind outside the defined set.
	ErrUnknownKind = errors.New("unknown envelope kind")
	// ErrMalformed indicates an envelope missing a field its kind requires.
	ErrMalformed = errors.New("malformed envelope")
	// ErrBadSignature indicates a carrier whose signature does not verify.
	ErrBadSignature = errors.New("carrier signature invalid")
)

var kindNames = map[Kind]string{
	KindRegister: "REG",
	KindFetch:    "FTCH",
	KindUserList: "ULST",
	KindPublic:   "AMSG",
	KindDirect:   "DMSG",
	KindBye:      "BYE",
	KindError:    "ERR",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// User is a participant as known to the relay.
type User struct {
	Name    string               `cbor:"1,keyasint"`
	BoxKey  [crypto.KeySize]byte `cbor:"2,keyasint"`
	SignKey [crypto.KeySize]byte `cbor:"3,keyasint"`
}

// Envelope is one relay message.
type Envelope struct {
	Kind      Kind   `cbor:"1,keyasint"`
	Sender    string `cbor:"2,keyasint,omitempty"`
	Receiver  string `cbor:"3,keyasint,omitempty"`
	Self      *User  `cbor:"4,keyasint,omitempty"`
	Users     []User `cbor:"5,keyasint,omitempty"`
	Carrier   []byte `cbor:"6,keyasint,omitempty"`
	Channels  uint8  `cbor:"7,keyasint,omitempty"`
	Sent      int64  `cbor:"8,keyasint,omitempty"`
	Signature []byte `cbor:"9,keyasint,omitempty"`
	Reason    string `cbor:"10,keyasint,omitempty"`
}

// signedFields is the part of a chat envelope covered by its signature.
type signedFields struct {
	Kind     Kind   `cbor:"1,keyasint"`
	Sender   string `cbor:"2,keyasint"`
	Receiver string `cbor:"3,keyasint"`
	Carrier  []byte `cbor:"4,keyasint"`
	Channels uint8  `cbor:"5,keyasint"`
	Sent     int64  `cbor:"6,keyasint"`
}

var (
	// Create reusable modes with immutable options, safe for concurrent use.
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		MaxArrayElements: 4096,
		MaxMapPairs:      64,
		MaxNestedLevels:  8,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Marshal serializes env with deterministic CBOR.
func Marshal(env *Envelope) ([]byte, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return encMode.Marshal(env)
}

// Unmarshal parses and validates a CBOR envelope.
func Unmarshal(data []byte) (*Envelope, error) {
	if err := limits.ValidateMessageSize(data, limits.MaxFramePayload); err != nil {
		return nil, err
	}
	env := new(Envelope)
	if err := decMode.Unmarshal(data, env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return env, nil
}

// Validate checks that env carries the fields its kind requires.
func (env *Envelope) Validate() error {
	switch env.Kind {
	case KindRegister:
		if env.Self == nil {
			return fmt.Errorf("%w: %s without participant", ErrMalformed, env.Kind)
		}
		if err := limits.ValidateName(env.Self.Name); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	case KindFetch, KindUserList, KindBye, KindError:
	case KindPublic, KindDirect:
		if env.Sender == "" || len(env.Carrier) == 0 || len(env.Signature) != crypto.SignatureSize {
			return fmt.Errorf("%w: %s without sender, carrier or signature", ErrMalformed, env.Kind)
		}
		if env.Kind == KindDirect && env.Receiver == "" {
			return fmt.Errorf("%w: %s without receiver", ErrMalformed, env.Kind)
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownKind, uint8(env.Kind))
	}
	return nil
}

// signingBytes returns the canonical bytes covered by the signature.
func (env *Envelope) signingBytes() ([]byte, error) {
	return encMode.Marshal(signedFields{
		Kind:     env.Kind,
		Sender:   env.Sender,
		Receiver: env.Receiver,
		Carrier:  env.Carrier,
		Channels: env.Channels,
		Sent:     env.Sent,
	})
}

// Sign sets env.Signature using signer.
func (env *Envelope) Sign(signer *crypto.SigningKeyPair) error {
	msg, err := env.signingBytes()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(msg, signer.Private)
	if err != nil {
		return err
	}
	env.Signature = sig[:]
	return nil
}

// Verify checks env.Signature against the sender's signing key.
func (env *Envelope) Verify(signKey [crypto.KeySize]byte) error {
	if len(env.Signature) != crypto.SignatureSize {
		return ErrBadSignature
	}
	msg, err := env.signingBytes()
	if err != nil {
		return err
	}

	var sig crypto.Signature
	copy(sig[:], env.Signature)
	ok, err := crypto.Verify(msg, sig, signKey)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBadSignature
	}
	return nil
}
