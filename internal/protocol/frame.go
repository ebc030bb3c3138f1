package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds a rendezvous frame. Signaling payloads are small;
// anything larger is a corrupt or hostile stream.
const MaxFrameSize = 1024 * 1024

// WriteFrame writes a uint32 big-endian length prefix followed by the
// encoded message. This is the rendezvous-plane wire framing.
func WriteFrame(w io.Writer, c *Codec, msg Message) error {
	data, err := c.EncodeToBytes(msg)
	if err != nil {
		return err
	}

	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return err
	}

	_, err = w.Write(data)
	return err
}

// ReadFrame reads one length-prefixed message from r.
func ReadFrame(r io.Reader, c *Codec) (Message, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	if length > MaxFrameSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit", length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}

	return c.DecodeFromBytes(data)
}
