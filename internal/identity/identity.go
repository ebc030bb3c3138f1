// Package identity generates the ephemeral display identity a peer
// shows in a discovery room. Identities live for one session and are
// never persisted.
package identity

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/beamlink/beamlink/internal/protocol"
)

var colors = []string{
	"Cyan", "Indigo", "Emerald", "Amber", "Crimson", "Violet", "Cobalt",
	"Maroon", "Turquoise", "Red", "Green", "Blue", "Gold", "Silver",
}

var animals = []string{
	"Fox", "Bear", "Panda", "Wolf", "Owl", "Tiger", "Falcon", "Dolphin",
	"Octopus", "Platypus", "Eagle", "Panther",
}

// New picks a random "Color Animal" display name for the given channel
// address.
func New(channelAddress string) protocol.PeerInfo {
	color := colors[rand.Intn(len(colors))]
	animal := animals[rand.Intn(len(animals))]

	return protocol.PeerInfo{
		ChannelAddress: channelAddress,
		ColorTag:       strings.ToLower(color),
		DisplayName:    fmt.Sprintf("%s %s", color, animal),
	}
}
