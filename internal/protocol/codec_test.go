package protocol

import (
	"bytes"
	"testing"
)

func TestCodecMetadata(t *testing.T) {
	codec := NewCodec()
	var buf bytes.Buffer

	meta := &Metadata{FileName: "report.pdf", FileSize: 33, MimeType: "application/pdf"}
	if err := codec.Encode(&buf, meta); err != nil {
		t.Fatalf("Encode Metadata failed: %v", err)
	}

	decoded, err := codec.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode Metadata failed: %v", err)
	}

	decodedMeta, ok := decoded.(*Metadata)
	if !ok {
		t.Fatalf("Expected *Metadata, got %T", decoded)
	}
	if decodedMeta.FileName != "report.pdf" {
		t.Errorf("Expected file name 'report.pdf', got %q", decodedMeta.FileName)
	}
	if decodedMeta.FileSize != 33 {
		t.Errorf("Expected file size 33, got %d", decodedMeta.FileSize)
	}
}

func TestCodecChunk(t *testing.T) {
	codec := NewCodec()

	payload := []byte("sixteen byte pay")
	data, err := codec.EncodeToBytes(&Chunk{Data: payload})
	if err != nil {
		t.Fatalf("EncodeToBytes failed: %v", err)
	}

	decoded, err := codec.DecodeFromBytes(data)
	if err != nil {
		t.Fatalf("DecodeFromBytes failed: %v", err)
	}

	chunk, ok := decoded.(*Chunk)
	if !ok {
		t.Fatalf("Expected *Chunk, got %T", decoded)
	}
	if !bytes.Equal(chunk.Data, payload) {
		t.Error("Chunk payload mismatch")
	}
}

func TestCodecEnd(t *testing.T) {
	codec := NewCodec()

	data, err := codec.EncodeToBytes(&End{})
	if err != nil {
		t.Fatalf("EncodeToBytes failed: %v", err)
	}

	decoded, err := codec.DecodeFromBytes(data)
	if err != nil {
		t.Fatalf("DecodeFromBytes failed: %v", err)
	}

	if _, ok := decoded.(*End); !ok {
		t.Errorf("Expected *End, got %T", decoded)
	}
}

func TestCodecSignal(t *testing.T) {
	codec := NewCodec()
	var buf bytes.Buffer

	sig := &Signal{
		Kind:          SignalOffer,
		Payload:       []byte(`{"type":"offer","sdp":"v=0..."}`),
		SourceAddress: "addr-a",
		TargetAddress: "addr-b",
	}
	if err := codec.Encode(&buf, sig); err != nil {
		t.Fatalf("Encode Signal failed: %v", err)
	}

	decoded, err := codec.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode Signal failed: %v", err)
	}

	decodedSig, ok := decoded.(*Signal)
	if !ok {
		t.Fatalf("Expected *Signal, got %T", decoded)
	}
	if decodedSig.Kind != SignalOffer {
		t.Errorf("Expected kind OFFER, got %s", decodedSig.Kind)
	}
	if decodedSig.TargetAddress != "addr-b" {
		t.Errorf("Expected target 'addr-b', got %q", decodedSig.TargetAddress)
	}
}

func TestCodecRoomSync(t *testing.T) {
	codec := NewCodec()
	var buf bytes.Buffer

	sync := &RoomSync{
		Peers: []PeerInfo{
			{ChannelAddress: "addr-1", ColorTag: "cyan", DisplayName: "Cyan Fox"},
			{ChannelAddress: "addr-2", ColorTag: "amber", DisplayName: "Amber Owl"},
		},
	}
	if err := codec.Encode(&buf, sync); err != nil {
		t.Fatalf("Encode RoomSync failed: %v", err)
	}

	decoded, err := codec.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode RoomSync failed: %v", err)
	}

	decodedSync, ok := decoded.(*RoomSync)
	if !ok {
		t.Fatalf("Expected *RoomSync, got %T", decoded)
	}
	if len(decodedSync.Peers) != 2 {
		t.Fatalf("Expected 2 peers, got %d", len(decodedSync.Peers))
	}
	if decodedSync.Peers[0].DisplayName != "Cyan Fox" {
		t.Errorf("Expected 'Cyan Fox', got %q", decodedSync.Peers[0].DisplayName)
	}
}

func TestCodecEmptyRoomSync(t *testing.T) {
	codec := NewCodec()

	data, err := codec.EncodeToBytes(&RoomSync{Peers: []PeerInfo{}})
	if err != nil {
		t.Fatalf("EncodeToBytes failed: %v", err)
	}

	decoded, err := codec.DecodeFromBytes(data)
	if err != nil {
		t.Fatalf("DecodeFromBytes failed: %v", err)
	}

	if _, ok := decoded.(*RoomSync); !ok {
		t.Errorf("Expected *RoomSync, got %T", decoded)
	}
}

func TestCodecError(t *testing.T) {
	codec := NewCodec()

	data, err := codec.EncodeToBytes(&Error{Code: ErrSessionNotFound, Message: "invalid or expired code"})
	if err != nil {
		t.Fatalf("EncodeToBytes failed: %v", err)
	}

	decoded, err := codec.DecodeFromBytes(data)
	if err != nil {
		t.Fatalf("DecodeFromBytes failed: %v", err)
	}

	decodedErr, ok := decoded.(*Error)
	if !ok {
		t.Fatalf("Expected *Error, got %T", decoded)
	}
	if decodedErr.Code != ErrSessionNotFound {
		t.Errorf("Expected SESSION_NOT_FOUND, got %s", decodedErr.Code)
	}
}

func TestCodecGarbageInput(t *testing.T) {
	codec := NewCodec()

	if _, err := codec.DecodeFromBytes([]byte("not a gob stream")); err == nil {
		t.Error("Expected error decoding garbage input")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	codec := NewCodec()
	var buf bytes.Buffer

	if err := WriteFrame(&buf, codec, &ResolveSessionReq{Code: "AB23CD"}); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	msg, err := ReadFrame(&buf, codec)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}

	req, ok := msg.(*ResolveSessionReq)
	if !ok {
		t.Fatalf("Expected *ResolveSessionReq, got %T", msg)
	}
	if req.Code != "AB23CD" {
		t.Errorf("Expected code 'AB23CD', got %q", req.Code)
	}
}

func TestFrameRejectsOversize(t *testing.T) {
	codec := NewCodec()

	// A frame header claiming more than MaxFrameSize must be refused
	// before any allocation.
	buf := bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x00})
	if _, err := ReadFrame(buf, codec); err == nil {
		t.Error("Expected error for oversized frame")
	}
}

func TestMessageTypeStrings(t *testing.T) {
	cases := map[MessageType]string{
		MsgMetadata:         "METADATA",
		MsgChunk:            "CHUNK",
		MsgEnd:              "END",
		MsgSignal:           "SIGNAL",
		MsgRoomSync:         "ROOM_SYNC",
		MessageType(0x7777): "UNKNOWN",
	}
	for mt, want := range cases {
		if got := mt.String(); got != want {
			t.Errorf("MessageType(%#x).String() = %q, want %q", uint16(mt), got, want)
		}
	}
}
