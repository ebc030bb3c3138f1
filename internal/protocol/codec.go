package protocol

import (
	"bytes"
	"encoding/gob"
	"io"
)

func init() {
	gob.Register(&Ping{})
	gob.Register(&Pong{})
	gob.Register(&Metadata{})
	gob.Register(&Chunk{})
	gob.Register(&End{})
	gob.Register(&Register{})
	gob.Register(&CreateSessionReq{})
	gob.Register(&CreateSessionRes{})
	gob.Register(&ResolveSessionReq{})
	gob.Register(&ResolveSessionRes{})
	gob.Register(&JoinRoomReq{})
	gob.Register(&LeaveRoomReq{})
	gob.Register(&RoomSync{})
	gob.Register(&PeerJoined{})
	gob.Register(&PeerLeft{})
	gob.Register(&Signal{})
	gob.Register(&Error{})
}

type Codec struct{}

func NewCodec() *Codec {
	return &Codec{}
}

func (c *Codec) Encode(w io.Writer, msg Message) error {
	return gob.NewEncoder(w).Encode(&msg)
}

func (c *Codec) Decode(r io.Reader) (Message, error) {
	var msg Message
	if err := gob.NewDecoder(r).Decode(&msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (c *Codec) EncodeToBytes(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Encode(&buf, msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Codec) DecodeFromBytes(data []byte) (Message, error) {
	return c.Decode(bytes.NewReader(data))
}
