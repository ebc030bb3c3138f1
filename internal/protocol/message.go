package protocol

type Message interface {
	Type() MessageType
}

// PeerInfo is the ephemeral identity a peer shows in a discovery room.
// It lives for one session only and is never persisted.
type PeerInfo struct {
	ChannelAddress string
	ColorTag       string
	DisplayName    string
}

// Transfer plane. A file transfer is always Metadata, zero or more
// Chunks, then End, delivered in order over one channel.

type Metadata struct {
	FileName string
	FileSize uint64
	MimeType string
}

func (Metadata) Type() MessageType { return MsgMetadata }

type Chunk struct {
	Data []byte
}

func (Chunk) Type() MessageType { return MsgChunk }

type End struct{}

func (End) Type() MessageType { return MsgEnd }

// Rendezvous plane.

type Ping struct{}

func (Ping) Type() MessageType { return MsgPing }

type Pong struct{}

func (Pong) Type() MessageType { return MsgPong }

// Register binds this connection to a channel address so the server can
// route signals to it. Sent once, right after connecting.
type Register struct {
	ChannelAddress string
}

func (Register) Type() MessageType { return MsgRegister }

type CreateSessionReq struct {
	ChannelAddress string
}

func (CreateSessionReq) Type() MessageType { return MsgCreateSessionReq }

type CreateSessionRes struct {
	Code string
}

func (CreateSessionRes) Type() MessageType { return MsgCreateSessionRes }

type ResolveSessionReq struct {
	Code string
}

func (ResolveSessionReq) Type() MessageType { return MsgResolveSessionReq }

type ResolveSessionRes struct {
	ChannelAddress string
}

func (ResolveSessionRes) Type() MessageType { return MsgResolveSessionRes }

type JoinRoomReq struct {
	Peer PeerInfo
}

func (JoinRoomReq) Type() MessageType { return MsgJoinRoomReq }

type LeaveRoomReq struct{}

func (LeaveRoomReq) Type() MessageType { return MsgLeaveRoomReq }

// RoomSync carries the full current membership, sent to a peer when it
// joins a room.
type RoomSync struct {
	Peers []PeerInfo
}

func (RoomSync) Type() MessageType { return MsgRoomSync }

type PeerJoined struct {
	Peer PeerInfo
}

func (PeerJoined) Type() MessageType { return MsgPeerJoined }

type PeerLeft struct {
	ChannelAddress string
}

func (PeerLeft) Type() MessageType { return MsgPeerLeft }

// Signal is an opaque signaling payload (SDP or ICE candidate) relayed
// verbatim between two registered channel addresses.
type Signal struct {
	Kind          SignalKind
	Payload       []byte
	SourceAddress string
	TargetAddress string
}

func (Signal) Type() MessageType { return MsgSignal }

type Error struct {
	Code    ErrorCode
	Message string
}

func (Error) Type() MessageType { return MsgError }
