package protocol

import (
	"encoding/json"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Websocket subprotocols understood by the relay. Browsers that do not ask
// for a subprotocol get JSON.
const (
	SubprotocolJSON    = "json"
	SubprotocolMsgPack = "msgpack"
)

// Subprotocols lists the supported subprotocols in server preference order.
var Subprotocols = []string{SubprotocolMsgPack, SubprotocolJSON}

// Codec turns messages into websocket frames and back.
type Codec interface {
	Name() string

	// FrameType is the websocket frame type (text or binary) used on the wire.
	FrameType() int

	Marshal(msg *Message) ([]byte, error)
	Unmarshal(data []byte, msg *Message) error
}

var (
	JSON    Codec = jsonCodec{}
	MsgPack Codec = msgpackCodec{}
)

// CodecFor returns the codec for a negotiated subprotocol.
func CodecFor(subprotocol string) Codec {
	if subprotocol == SubprotocolMsgPack {
		return MsgPack
	}
	return JSON
}

type jsonCodec struct{}

func (jsonCodec) Name() string   { return SubprotocolJSON }
func (jsonCodec) FrameType() int { return websocket.TextMessage }

func (jsonCodec) Marshal(msg *Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg *Message) error {
	return json.Unmarshal(data, msg)
}

// msgpackCodec keeps the payload as embedded JSON bytes, so a message can be
// relayed between a msgpack client and a JSON client without touching it.
type msgpackCodec struct{}

func (msgpackCodec) Name() string   { return SubprotocolMsgPack }
func (msgpackCodec) FrameType() int { return websocket.BinaryMessage }

func (msgpackCodec) Marshal(msg *Message) ([]byte, error) {
	return msgpack.Marshal(msg)
}

func (msgpackCodec) Unmarshal(data []byte, msg *Message) error {
	return msgpack.Unmarshal(data, msg)
}
