package wire

import (
	"errors"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	SubprotocolProto   = "agar.proto"
	SubprotocolMsgpack = "agar.msgpack"
)

var ErrUnknownKind = errors.New("unknown event kind")

// Codec turns events into websocket binary frames and back.
type Codec interface {
	Subprotocol() string
	MarshalClient(e *ClientEvent) ([]byte, error)
	UnmarshalClient(b []byte, e *ClientEvent) error
	MarshalServer(e *ServerEvent) ([]byte, error)
	UnmarshalServer(b []byte, e *ServerEvent) error
}

var (
	Proto   Codec = protoCodec{}
	Msgpack Codec = msgpackCodec{}
)

// Subprotocols lists what the server offers, preferred first.
func Subprotocols() []string {
	return []string{SubprotocolProto, SubprotocolMsgpack}
}

// ForSubprotocol picks the codec negotiated on a connection. Peers that
// negotiated nothing get the protobuf codec.
func ForSubprotocol(name string) Codec {
	if name == SubprotocolMsgpack {
		return Msgpack
	}
	return Proto
}

type msgpackCodec struct{}

func (msgpackCodec) Subprotocol() string { return SubprotocolMsgpack }

func (msgpackCodec) MarshalClient(e *ClientEvent) ([]byte, error) {
	return msgpack.Marshal(e)
}

func (msgpackCodec) UnmarshalClient(b []byte, e *ClientEvent) error {
	return msgpack.Unmarshal(b, e)
}

func (msgpackCodec) MarshalServer(e *ServerEvent) ([]byte, error) {
	return msgpack.Marshal(e)
}

func (msgpackCodec) UnmarshalServer(b []byte, e *ServerEvent) error {
	return msgpack.Unmarshal(b, e)
}
