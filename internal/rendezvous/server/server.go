package server

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/beamlink/beamlink/internal/protocol"
	"github.com/sirupsen/logrus"
)

const purgeInterval = time.Minute

type Config struct {
	Addr       string
	SessionTTL time.Duration
}

// Server accepts rendezvous connections and serves session codes, a
// discovery room, and signal relay. One Server holds one room, which
// matches the original single "radar" namespace.
type Server struct {
	config   Config
	store    *Store
	logger   *logrus.Logger
	listener net.Listener
	codec    *protocol.Codec

	mu    sync.Mutex
	conns map[string]*client

	done      chan struct{}
	closeOnce sync.Once
}

// client is one connected rendezvous client. peer is set while the
// client is in the room.
type client struct {
	conn    net.Conn
	address string
	peer    *protocol.PeerInfo
	writeMu sync.Mutex
}

func NewServer(cfg Config, store *Store, logger *logrus.Logger) (*Server, error) {
	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, err
	}

	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = protocol.DefaultSessionTTL
	}

	return &Server{
		config:   cfg,
		store:    store,
		logger:   logger,
		listener: listener,
		codec:    protocol.NewCodec(),
		conns:    make(map[string]*client),
		done:     make(chan struct{}),
	}, nil
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return s.listener.Close()
}

// Start blocks accepting connections until the context is canceled or
// the server is closed.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Infof("Rendezvous server listening on %s", s.Addr())

	go s.purgeLoop(ctx)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.done:
				return nil
			default:
				s.logger.Errorf("Failed to accept connection: %v", err)
				continue
			}
		}
		go s.handleConn(conn)
	}
}

func (s *Server) purgeLoop(ctx context.Context) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := s.store.PurgeExpired()
			if err != nil {
				s.logger.Warnf("Failed to purge expired sessions: %v", err)
			} else if n > 0 {
				s.logger.Debugf("Purged %d expired sessions", n)
			}
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}

func (s *Server) handleConn(conn net.Conn) {
	c := &client{conn: conn}
	remoteAddr := conn.RemoteAddr().String()
	s.logger.Infof("Client connected: %s", remoteAddr)

	defer func() {
		s.dropClient(c)
		_ = conn.Close()
		s.logger.Infof("Client disconnected: %s", remoteAddr)
	}()

	for {
		msg, err := protocol.ReadFrame(conn, s.codec)
		if err != nil {
			if err != io.EOF {
				s.logger.Debugf("Read from %s failed: %v", remoteAddr, err)
			}
			return
		}

		s.handleMessage(c, msg)
	}
}

func (s *Server) handleMessage(c *client, msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.Register:
		s.handleRegister(c, m)
	case *protocol.Ping:
		s.write(c, &protocol.Pong{})
	case *protocol.CreateSessionReq:
		s.handleCreateSession(c, m)
	case *protocol.ResolveSessionReq:
		s.handleResolveSession(c, m)
	case *protocol.JoinRoomReq:
		s.handleJoinRoom(c, m)
	case *protocol.LeaveRoomReq:
		s.handleLeaveRoom(c)
	case *protocol.Signal:
		s.handleSignal(c, m)
	default:
		s.logger.Warnf("Unhandled message type: %s", msg.Type())
	}
}

func (s *Server) handleRegister(c *client, m *protocol.Register) {
	s.mu.Lock()
	c.address = m.ChannelAddress
	s.conns[m.ChannelAddress] = c
	s.mu.Unlock()

	s.logger.Debugf("Registered channel address %s", m.ChannelAddress)
}

func (s *Server) handleCreateSession(c *client, m *protocol.CreateSessionReq) {
	code, err := s.store.CreateSession(m.ChannelAddress, s.config.SessionTTL)
	if err != nil {
		s.logger.Errorf("Failed to create session: %v", err)
		s.write(c, &protocol.Error{Code: protocol.ErrInternal, Message: "could not create session"})
		return
	}

	s.logger.Infof("Created session %s -> %s", code, m.ChannelAddress)
	s.write(c, &protocol.CreateSessionRes{Code: code})
}

func (s *Server) handleResolveSession(c *client, m *protocol.ResolveSessionReq) {
	address, err := s.store.ResolveSession(m.Code)
	if err != nil {
		// Unknown and expired codes are deliberately the same answer.
		s.write(c, &protocol.Error{Code: protocol.ErrSessionNotFound, Message: "invalid or expired code"})
		return
	}

	s.write(c, &protocol.ResolveSessionRes{ChannelAddress: address})
}

func (s *Server) handleJoinRoom(c *client, m *protocol.JoinRoomReq) {
	peer := m.Peer

	s.mu.Lock()
	if c.address == "" {
		c.address = peer.ChannelAddress
		s.conns[c.address] = c
	}
	c.peer = &peer

	others := make([]protocol.PeerInfo, 0, len(s.conns))
	members := make([]*client, 0, len(s.conns))
	for _, other := range s.conns {
		if other == c || other.peer == nil {
			continue
		}
		others = append(others, *other.peer)
		members = append(members, other)
	}
	s.mu.Unlock()

	s.logger.Infof("%s (%s) joined the room", peer.DisplayName, peer.ChannelAddress)

	s.write(c, &protocol.RoomSync{Peers: others})
	for _, member := range members {
		s.write(member, &protocol.PeerJoined{Peer: peer})
	}
}

func (s *Server) handleLeaveRoom(c *client) {
	s.mu.Lock()
	wasMember := c.peer != nil
	c.peer = nil
	s.mu.Unlock()

	if wasMember {
		s.broadcastLeft(c)
	}
}

func (s *Server) handleSignal(c *client, m *protocol.Signal) {
	if m.SourceAddress == "" {
		m.SourceAddress = c.address
	}

	s.mu.Lock()
	target, ok := s.conns[m.TargetAddress]
	s.mu.Unlock()

	if !ok {
		s.logger.Warnf("Signal %s for unknown address %s", m.Kind, m.TargetAddress)
		return
	}

	s.write(target, m)
}

// dropClient unregisters a disconnected client and tells the room.
func (s *Server) dropClient(c *client) {
	s.mu.Lock()
	wasMember := c.peer != nil
	c.peer = nil
	if c.address != "" && s.conns[c.address] == c {
		delete(s.conns, c.address)
	}
	s.mu.Unlock()

	if wasMember {
		s.broadcastLeft(c)
	}
}

func (s *Server) broadcastLeft(c *client) {
	s.mu.Lock()
	members := make([]*client, 0, len(s.conns))
	for _, other := range s.conns {
		if other != c && other.peer != nil {
			members = append(members, other)
		}
	}
	s.mu.Unlock()

	for _, member := range members {
		s.write(member, &protocol.PeerLeft{ChannelAddress: c.address})
	}
}

func (s *Server) write(c *client, msg protocol.Message) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := protocol.WriteFrame(c.conn, s.codec, msg); err != nil {
		s.logger.Debugf("Write to %s failed: %v", c.conn.RemoteAddr(), err)
	}
}
