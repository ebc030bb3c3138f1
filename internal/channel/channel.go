// Package channel defines the reliable, ordered message transport the
// transfer engine runs over, independent of how it was established.
package channel

import (
	"context"
	"errors"

	"github.com/beamlink/beamlink/internal/protocol"
)

// ErrClosed is returned by Send once the channel is no longer usable.
var ErrClosed = errors.New("channel closed")

// Channel is one open, bidirectional, ordered-delivery data link to a
// peer. Recv's channel is closed when the link goes away; any transfer
// in flight at that point is void.
type Channel interface {
	Send(data []byte) error
	Recv() <-chan []byte
	// BufferedAmount reports bytes enqueued on the outbound side but
	// not yet flushed to the network.
	BufferedAmount() uint64
	RemoteAddress() string
	Close() error
}

// Transport establishes Channels to peers identified by channel address.
type Transport interface {
	Open(ctx context.Context, address string) (Channel, error)
	Accept() <-chan Channel
	Close() error
}

// Signaler carries opaque signaling payloads between this endpoint and
// a remote one, via the rendezvous service.
type Signaler interface {
	SendSignal(ctx context.Context, target string, kind protocol.SignalKind, payload []byte) error
	Signals() <-chan *protocol.Signal
	Address() string
}
