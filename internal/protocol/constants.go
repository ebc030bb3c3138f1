package protocol

import "time"

const (
	// ChunkSize is the fixed payload size of one Chunk message. It stays
	// well under common data-channel message-size limits.
	ChunkSize = 16 * 1024

	// HighWatermark is the outbound buffered-byte ceiling. A sender must
	// not enqueue new chunks while more than this is unflushed.
	HighWatermark = 1024 * 1024

	// BufferPollInterval is how long a paused sender sleeps between
	// buffered-amount rechecks.
	BufferPollInterval = 50 * time.Millisecond

	// CodeLength is the length of a session code.
	CodeLength = 6

	// CodeAlphabet excludes easily-confused glyphs (0/O, 1/I).
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// DefaultSessionTTL is how long a session code stays resolvable.
	DefaultSessionTTL = 10 * time.Minute
)

type MessageType uint16

const (
	MsgPing MessageType = 0x0001
	MsgPong MessageType = 0x0002

	MsgMetadata MessageType = 0x0010
	MsgChunk    MessageType = 0x0011
	MsgEnd      MessageType = 0x0012

	MsgRegister          MessageType = 0x0020
	MsgCreateSessionReq  MessageType = 0x0021
	MsgCreateSessionRes  MessageType = 0x0022
	MsgResolveSessionReq MessageType = 0x0023
	MsgResolveSessionRes MessageType = 0x0024

	MsgJoinRoomReq  MessageType = 0x0030
	MsgLeaveRoomReq MessageType = 0x0031
	MsgRoomSync     MessageType = 0x0032
	MsgPeerJoined   MessageType = 0x0033
	MsgPeerLeft     MessageType = 0x0034

	MsgSignal MessageType = 0x0040

	MsgError MessageType = 0x00FF
)

func (t MessageType) String() string {
	switch t {
	case MsgPing:
		return "PING"
	case MsgPong:
		return "PONG"
	case MsgMetadata:
		return "METADATA"
	case MsgChunk:
		return "CHUNK"
	case MsgEnd:
		return "END"
	case MsgRegister:
		return "REGISTER"
	case MsgCreateSessionReq:
		return "CREATE_SESSION_REQ"
	case MsgCreateSessionRes:
		return "CREATE_SESSION_RES"
	case MsgResolveSessionReq:
		return "RESOLVE_SESSION_REQ"
	case MsgResolveSessionRes:
		return "RESOLVE_SESSION_RES"
	case MsgJoinRoomReq:
		return "JOIN_ROOM_REQ"
	case MsgLeaveRoomReq:
		return "LEAVE_ROOM_REQ"
	case MsgRoomSync:
		return "ROOM_SYNC"
	case MsgPeerJoined:
		return "PEER_JOINED"
	case MsgPeerLeft:
		return "PEER_LEFT"
	case MsgSignal:
		return "SIGNAL"
	case MsgError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

type ErrorCode uint16

const (
	ErrUnknown         ErrorCode = 0x0000
	ErrSessionNotFound ErrorCode = 0x0001
	ErrRoomFull        ErrorCode = 0x0002
	ErrInternal        ErrorCode = 0x00FF
)

func (e ErrorCode) String() string {
	switch e {
	case ErrSessionNotFound:
		return "SESSION_NOT_FOUND"
	case ErrRoomFull:
		return "ROOM_FULL"
	case ErrInternal:
		return "INTERNAL_ERROR"
	case ErrUnknown:
		return "UNKNOWN"
	default:
		return "UNKNOWN"
	}
}

type SignalKind uint8

const (
	SignalOffer SignalKind = iota + 1
	SignalAnswer
	SignalICECandidate
)

func (k SignalKind) String() string {
	switch k {
	case SignalOffer:
		return "OFFER"
	case SignalAnswer:
		return "ANSWER"
	case SignalICECandidate:
		return "ICE_CANDIDATE"
	default:
		return "UNKNOWN"
	}
}
