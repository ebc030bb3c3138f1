package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/beamlink/beamlink/internal/protocol"
	"github.com/sirupsen/logrus"
)

var (
	// ErrUnavailable means the signaling connection could not be
	// reached or a request timed out.
	ErrUnavailable = errors.New("rendezvous service unavailable")

	// ErrSessionNotFound covers both unknown and expired codes; the
	// two are indistinguishable to the caller.
	ErrSessionNotFound = errors.New("invalid or expired code")
)

const (
	requestTimeout    = 10 * time.Second
	heartbeatInterval = 30 * time.Second
)

// Client is the rendezvous client. One Client maps to one persistent
// connection; it also acts as the Signaler for the channel transport.
type Client struct {
	router  *MessageRouter
	logger  *logrus.Logger
	address string

	createResCh  chan *protocol.CreateSessionRes
	resolveResCh chan *protocol.ResolveSessionRes
	errorCh      chan *protocol.Error
	signalCh     chan *protocol.Signal
	syncCh       chan *protocol.RoomSync
	joinedCh     chan *protocol.PeerJoined
	leftCh       chan *protocol.PeerLeft
	pongCh       chan *protocol.Pong

	closed chan struct{}

	roomMu    sync.Mutex
	leaveRoom context.CancelFunc
}

// Dial connects to the rendezvous service and registers the local
// channel address for signal routing.
func Dial(ctx context.Context, addr, channelAddress string, logger *logrus.Logger) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c := &Client{
		router:       NewMessageRouter(conn, logger),
		logger:       logger,
		address:      channelAddress,
		createResCh:  make(chan *protocol.CreateSessionRes, 1),
		resolveResCh: make(chan *protocol.ResolveSessionRes, 1),
		errorCh:      make(chan *protocol.Error, 4),
		signalCh:     make(chan *protocol.Signal, 64),
		syncCh:       make(chan *protocol.RoomSync, 4),
		joinedCh:     make(chan *protocol.PeerJoined, 16),
		leftCh:       make(chan *protocol.PeerLeft, 16),
		pongCh:       make(chan *protocol.Pong, 4),
		closed:       make(chan struct{}),
	}

	c.router.AddRoute(c.createResCh, func(m protocol.Message) bool {
		_, ok := m.(*protocol.CreateSessionRes)
		return ok
	})
	c.router.AddRoute(c.resolveResCh, func(m protocol.Message) bool {
		_, ok := m.(*protocol.ResolveSessionRes)
		return ok
	})
	c.router.AddRoute(c.errorCh, func(m protocol.Message) bool {
		_, ok := m.(*protocol.Error)
		return ok
	})
	c.router.AddRoute(c.signalCh, func(m protocol.Message) bool {
		_, ok := m.(*protocol.Signal)
		return ok
	})
	c.router.AddRoute(c.syncCh, func(m protocol.Message) bool {
		_, ok := m.(*protocol.RoomSync)
		return ok
	})
	c.router.AddRoute(c.joinedCh, func(m protocol.Message) bool {
		_, ok := m.(*protocol.PeerJoined)
		return ok
	})
	c.router.AddRoute(c.leftCh, func(m protocol.Message) bool {
		_, ok := m.(*protocol.PeerLeft)
		return ok
	})
	c.router.AddRoute(c.pongCh, func(m protocol.Message) bool {
		_, ok := m.(*protocol.Pong)
		return ok
	})

	c.router.OnClose(func() {
		close(c.closed)
	})
	c.router.Start()

	if err := c.router.WriteMessage(&protocol.Register{ChannelAddress: channelAddress}); err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	go c.sendHeartbeats()

	return c, nil
}

// Address returns the local channel address this client registered.
func (c *Client) Address() string {
	return c.address
}

// CreateSession registers the local channel address and returns a fresh
// session code for a peer to resolve.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	err := c.router.WriteMessage(&protocol.CreateSessionReq{ChannelAddress: c.address})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	select {
	case res := <-c.createResCh:
		return res.Code, nil
	case e := <-c.errorCh:
		return "", fmt.Errorf("%w: %s", ErrUnavailable, e.Message)
	case <-c.closed:
		return "", ErrUnavailable
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(requestTimeout):
		return "", ErrUnavailable
	}
}

// ResolveSession maps a session code back to a channel address. Unknown
// and expired codes both yield ErrSessionNotFound.
func (c *Client) ResolveSession(ctx context.Context, code string) (string, error) {
	err := c.router.WriteMessage(&protocol.ResolveSessionReq{Code: code})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	select {
	case res := <-c.resolveResCh:
		return res.ChannelAddress, nil
	case e := <-c.errorCh:
		if e.Code == protocol.ErrSessionNotFound {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("%w: %s", ErrUnavailable, e.Message)
	case <-c.closed:
		return "", ErrUnavailable
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(requestTimeout):
		return "", ErrUnavailable
	}
}

// JoinRoom enters the discovery room and returns a stream of presence
// events, starting with the initial Sync. The stream closes when the
// client closes, the context ends, or LeaveRoom is called.
func (c *Client) JoinRoom(ctx context.Context, peer protocol.PeerInfo) (<-chan PresenceEvent, error) {
	if err := c.router.WriteMessage(&protocol.JoinRoomReq{Peer: peer}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	roomCtx, cancel := context.WithCancel(ctx)
	c.roomMu.Lock()
	c.leaveRoom = cancel
	c.roomMu.Unlock()

	events := make(chan PresenceEvent, 16)
	go func() {
		defer close(events)
		for {
			var ev PresenceEvent
			select {
			case m := <-c.syncCh:
				ev = PresenceEvent{Kind: EventSync, Peers: m.Peers}
			case m := <-c.joinedCh:
				ev = PresenceEvent{Kind: EventPeerJoined, Peer: m.Peer}
			case m := <-c.leftCh:
				ev = PresenceEvent{Kind: EventPeerLeft, ChannelAddress: m.ChannelAddress}
			case <-c.closed:
				return
			case <-roomCtx.Done():
				return
			}

			select {
			case events <- ev:
			case <-c.closed:
				return
			case <-roomCtx.Done():
				return
			}
		}
	}()

	return events, nil
}

// LeaveRoom exits the discovery room and closes the presence stream
// returned by JoinRoom.
func (c *Client) LeaveRoom() error {
	c.roomMu.Lock()
	if c.leaveRoom != nil {
		c.leaveRoom()
		c.leaveRoom = nil
	}
	c.roomMu.Unlock()

	return c.router.WriteMessage(&protocol.LeaveRoomReq{})
}

// SendSignal relays an opaque signaling payload to the peer registered
// under target. Implements channel.Signaler.
func (c *Client) SendSignal(ctx context.Context, target string, kind protocol.SignalKind, payload []byte) error {
	return c.router.WriteMessage(&protocol.Signal{
		Kind:          kind,
		Payload:       payload,
		SourceAddress: c.address,
		TargetAddress: target,
	})
}

// Signals returns the stream of inbound signaling payloads.
// Implements channel.Signaler.
func (c *Client) Signals() <-chan *protocol.Signal {
	return c.signalCh
}

// Done is closed when the underlying connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.closed
}

func (c *Client) Close() error {
	c.router.Stop()
	return nil
}

func (c *Client) sendHeartbeats() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.router.WriteMessage(&protocol.Ping{}); err != nil {
				c.logger.Debugf("Heartbeat failed: %v", err)
				return
			}
			select {
			case <-c.pongCh:
			default:
			}
		case <-c.closed:
			return
		}
	}
}
