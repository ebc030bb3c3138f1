// Package webrtc realizes the channel abstraction on pion data
// channels, with offer/answer and ICE exchanged through the rendezvous
// signaler.
package webrtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/beamlink/beamlink/internal/channel"
	"github.com/beamlink/beamlink/internal/protocol"
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
)

// ErrOpenFailed means transport negotiation did not produce an open
// data channel.
var ErrOpenFailed = errors.New("channel open failed")

type Transport struct {
	config   webrtc.Configuration
	signaler channel.Signaler
	logger   *logrus.Logger

	mu       sync.RWMutex
	conns    map[string]*connection
	incoming chan channel.Channel

	closeOnce sync.Once
}

func New(signaler channel.Signaler, stunServers []string, logger *logrus.Logger) *Transport {
	return &Transport{
		config:   newConfiguration(stunServers),
		signaler: signaler,
		logger:   logger,
		conns:    make(map[string]*connection),
		incoming: make(chan channel.Channel, 16),
	}
}

// Run consumes inbound signals until the context ends. It must be
// running for Open and Accept to make progress.
func (t *Transport) Run(ctx context.Context) {
	for {
		select {
		case sig, ok := <-t.signaler.Signals():
			if !ok {
				return
			}
			if err := t.handleSignal(sig); err != nil {
				t.logger.Warnf("Failed to handle %s signal from %s: %v", sig.Kind, sig.SourceAddress, err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Open negotiates a data channel to the peer registered under address
// and blocks until it is open or the context ends.
func (t *Transport) Open(ctx context.Context, address string) (channel.Channel, error) {
	pc, err := webrtc.NewPeerConnection(t.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	conn := newConnection(address, pc, t.signaler, true, t.logger)

	t.mu.Lock()
	t.conns[address] = conn
	t.mu.Unlock()

	if err := conn.createDataChannel(); err != nil {
		t.drop(address, conn)
		return nil, err
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		t.drop(address, conn)
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		t.drop(address, conn)
		return nil, fmt.Errorf("failed to set local description: %w", err)
	}

	offerJSON, err := json.Marshal(offer)
	if err != nil {
		t.drop(address, conn)
		return nil, fmt.Errorf("failed to marshal offer: %w", err)
	}
	if err := t.signaler.SendSignal(ctx, address, protocol.SignalOffer, offerJSON); err != nil {
		t.drop(address, conn)
		return nil, fmt.Errorf("failed to send offer: %w", err)
	}

	select {
	case <-conn.opened:
		return conn, nil
	case <-conn.closed:
		t.drop(address, conn)
		return nil, ErrOpenFailed
	case <-ctx.Done():
		t.drop(address, conn)
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, ctx.Err())
	}
}

// Accept yields channels opened by remote peers, once their data
// channel is up.
func (t *Transport) Accept() <-chan channel.Channel {
	return t.incoming
}

func (t *Transport) handleSignal(sig *protocol.Signal) error {
	t.mu.RLock()
	conn, exists := t.conns[sig.SourceAddress]
	t.mu.RUnlock()

	if !exists {
		// Only an offer may start a new inbound connection; stray
		// answers and candidates have nothing to apply to.
		if sig.Kind != protocol.SignalOffer {
			return fmt.Errorf("no connection for %s signal", sig.Kind)
		}

		pc, err := webrtc.NewPeerConnection(t.config)
		if err != nil {
			return fmt.Errorf("failed to create peer connection: %w", err)
		}

		conn = newConnection(sig.SourceAddress, pc, t.signaler, false, t.logger)
		conn.onOpen = func() {
			select {
			case t.incoming <- conn:
			default:
				t.logger.Warn("Dropping inbound channel, accept queue full")
				_ = conn.Close()
			}
		}

		t.mu.Lock()
		t.conns[sig.SourceAddress] = conn
		t.mu.Unlock()
	}

	return conn.handleSignal(sig)
}

func (t *Transport) drop(address string, conn *connection) {
	_ = conn.Close()
	t.mu.Lock()
	if t.conns[address] == conn {
		delete(t.conns, address)
	}
	t.mu.Unlock()
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, conn := range t.conns {
		_ = conn.Close()
	}
	t.conns = make(map[string]*connection)
	t.closeOnce.Do(func() {
		close(t.incoming)
	})
	return nil
}
