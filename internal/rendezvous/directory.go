package rendezvous

import (
	"sort"

	"github.com/beamlink/beamlink/internal/protocol"
)

type PresenceEventKind int

const (
	EventSync PresenceEventKind = iota + 1
	EventPeerJoined
	EventPeerLeft
)

// PresenceEvent is one room membership change. Exactly one of Peers,
// Peer, or ChannelAddress is meaningful, depending on Kind.
type PresenceEvent struct {
	Kind           PresenceEventKind
	Peer           protocol.PeerInfo
	ChannelAddress string
	Peers          []protocol.PeerInfo
}

// Directory is the live set of peers visible in a discovery room,
// keyed by channel address. It is owned by the single session that
// joined the room and is not safe for concurrent use.
type Directory struct {
	peers map[string]protocol.PeerInfo
}

func NewDirectory() *Directory {
	return &Directory{peers: make(map[string]protocol.PeerInfo)}
}

// Apply folds one presence event into the directory. Sync merges the
// full membership; joins insert; leaves remove.
func (d *Directory) Apply(ev PresenceEvent) {
	switch ev.Kind {
	case EventSync:
		for _, p := range ev.Peers {
			d.peers[p.ChannelAddress] = p
		}
	case EventPeerJoined:
		d.peers[ev.Peer.ChannelAddress] = ev.Peer
	case EventPeerLeft:
		delete(d.peers, ev.ChannelAddress)
	}
}

func (d *Directory) Get(channelAddress string) (protocol.PeerInfo, bool) {
	p, ok := d.peers[channelAddress]
	return p, ok
}

// Peers returns the membership sorted by display name.
func (d *Directory) Peers() []protocol.PeerInfo {
	out := make([]protocol.PeerInfo, 0, len(d.peers))
	for _, p := range d.peers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DisplayName < out[j].DisplayName
	})
	return out
}

func (d *Directory) Len() int {
	return len(d.peers)
}

// Clear empties the directory, used on room exit.
func (d *Directory) Clear() {
	d.peers = make(map[string]protocol.PeerInfo)
}
