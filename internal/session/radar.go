package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/beamlink/beamlink/internal/artifact"
	"github.com/beamlink/beamlink/internal/channel"
	"github.com/beamlink/beamlink/internal/protocol"
	"github.com/beamlink/beamlink/internal/rendezvous"
	"github.com/beamlink/beamlink/internal/transfer"
	"github.com/sirupsen/logrus"
)

// RadarSession drives the local-discovery role: join the room, keep
// the presence directory live, send to any discovered peer on a
// transient direct channel, and accept inbound transfers. No session
// code is involved; identities come straight from the directory.
type RadarSession struct {
	rdv       Rendezvous
	transport channel.Transport
	sink      artifact.Sink
	self      protocol.PeerInfo
	logger    *logrus.Logger
	status    StatusFunc
	onPeers   func([]protocol.PeerInfo)

	mu        sync.Mutex
	state     State
	directory *rendezvous.Directory
}

func NewRadarSession(rdv Rendezvous, transport channel.Transport, sink artifact.Sink, self protocol.PeerInfo, logger *logrus.Logger, status StatusFunc, onPeers func([]protocol.PeerInfo)) *RadarSession {
	return &RadarSession{
		rdv:       rdv,
		transport: transport,
		sink:      sink,
		self:      self,
		logger:    logger,
		status:    status,
		onPeers:   onPeers,
		state:     StateIdle,
		directory: rendezvous.NewDirectory(),
	}
}

// Start joins the discovery room and begins scanning. The presence
// directory is owned by this session alone and is cleared on exit.
func (r *RadarSession) Start(ctx context.Context) error {
	events, err := r.rdv.JoinRoom(ctx, r.self)
	if err != nil {
		r.setState(StateFailed, "Error connecting to server.", 0)
		return err
	}

	r.setState(StateScanning, "Scanning local network...", 0)

	go r.watchPresence(events)
	go r.acceptLoop(ctx)
	return nil
}

func (r *RadarSession) watchPresence(events <-chan rendezvous.PresenceEvent) {
	for ev := range events {
		r.mu.Lock()
		r.directory.Apply(ev)
		peers := r.directory.Peers()
		r.mu.Unlock()

		if r.onPeers != nil {
			r.onPeers(peers)
		}
	}

	r.mu.Lock()
	r.directory.Clear()
	r.mu.Unlock()
}

// acceptLoop receives files from peers that picked us on their radar.
func (r *RadarSession) acceptLoop(ctx context.Context) {
	for {
		select {
		case ch, ok := <-r.transport.Accept():
			if !ok {
				return
			}
			go r.receiveFrom(ctx, ch)
		case <-ctx.Done():
			return
		}
	}
}

func (r *RadarSession) receiveFrom(ctx context.Context, ch channel.Channel) {
	defer func() { _ = ch.Close() }()

	receiver := transfer.NewReceiver(r.sink, r.logger, transfer.ReceiverCallbacks{
		OnMetadata: func(meta protocol.Metadata) {
			r.setState(StateReceiving, fmt.Sprintf("Receiving %s...", meta.FileName), 0)
		},
		OnProgress: func(pct int) {
			r.setState(StateReceiving, "", pct)
		},
		OnComplete: func(meta protocol.Metadata) {
			r.setState(StateScanning, "File Received!", 100)
		},
		OnError: func(meta protocol.Metadata, err error) {
			r.setState(StateScanning, fmt.Sprintf("Failed to save %s.", meta.FileName), 0)
		},
	})

	for {
		select {
		case data, ok := <-ch.Recv():
			if !ok {
				if receiver.InProgress() {
					receiver.Reset()
					r.setState(StateScanning, "Peer disconnected mid-transfer.", 0)
				}
				return
			}
			receiver.HandleRaw(data)
		case <-ctx.Done():
			return
		}
	}
}

// Peers returns a snapshot of the presence directory.
func (r *RadarSession) Peers() []protocol.PeerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.directory.Peers()
}

// SendTo opens a transient channel to a discovered peer and streams one
// file, then returns to scanning. Mirrors the sender role's
// Sending/Ready cycle without consuming a session code.
func (r *RadarSession) SendTo(ctx context.Context, channelAddress string, file transfer.File) error {
	r.mu.Lock()
	peer, ok := r.directory.Get(channelAddress)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("peer %s is no longer on the radar", channelAddress)
	}

	r.setState(StateConnecting, fmt.Sprintf("Connecting to send %s...", file.Name), 0)

	ch, err := r.transport.Open(ctx, channelAddress)
	if err != nil {
		r.setState(StateScanning, "Connection failed!", 0)
		return err
	}
	defer func() { _ = ch.Close() }()

	r.setState(StateSending, fmt.Sprintf("Sending %s to %s...", file.Name, peer.DisplayName), 0)

	sender := transfer.NewSender(ch, r.logger, func(pct int) {
		r.setState(StateSending, "", pct)
	})
	if err := sender.SendFile(ctx, file); err != nil {
		r.setState(StateScanning, "Transfer interrupted.", 0)
		return fmt.Errorf("send failed: %w", err)
	}

	r.setState(StateScanning, "Sent Successfully!", 100)
	return nil
}

func (r *RadarSession) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Stop leaves the room and clears the directory.
func (r *RadarSession) Stop() error {
	err := r.rdv.LeaveRoom()

	r.mu.Lock()
	r.directory.Clear()
	r.mu.Unlock()

	r.setState(StateIdle, "Left the radar room.", 0)
	return err
}

func (r *RadarSession) setState(state State, msg string, progress int) {
	r.mu.Lock()
	r.state = state
	r.mu.Unlock()

	if msg != "" {
		r.logger.Debugf("Radar session: %s %s", state, msg)
	}
	if r.status != nil {
		r.status(Status{State: state, Message: msg, Progress: progress})
	}
}
