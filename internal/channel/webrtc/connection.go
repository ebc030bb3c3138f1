package webrtc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/beamlink/beamlink/internal/channel"
	"github.com/beamlink/beamlink/internal/protocol"
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
)

// connection is one data channel to a remote peer. It satisfies
// channel.Channel once the data channel is open.
type connection struct {
	remoteAddr  string
	pc          *webrtc.PeerConnection
	dc          *webrtc.DataChannel
	signaler    channel.Signaler
	logger      *logrus.Logger
	isInitiator bool

	recvChan chan []byte
	opened   chan struct{}
	closed   chan struct{}

	openOnce  sync.Once
	closeOnce sync.Once
	onOpen    func()

	mu                sync.Mutex
	pendingCandidates []webrtc.ICECandidateInit

	recvMu     sync.Mutex
	recvClosed bool
}

func newConnection(remoteAddr string, pc *webrtc.PeerConnection, signaler channel.Signaler, isInitiator bool, logger *logrus.Logger) *connection {
	conn := &connection{
		remoteAddr:  remoteAddr,
		pc:          pc,
		signaler:    signaler,
		logger:      logger,
		isInitiator: isInitiator,
		recvChan:    make(chan []byte, 256),
		opened:      make(chan struct{}),
		closed:      make(chan struct{}),
	}

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		logger.Debugf("Peer connection to %s: %s", remoteAddr, s)
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			conn.markClosed()
		}
	})

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		payload, err := json.Marshal(c.ToJSON())
		if err != nil {
			logger.Warnf("Failed to marshal ICE candidate: %v", err)
			return
		}
		if err := signaler.SendSignal(context.Background(), remoteAddr, protocol.SignalICECandidate, payload); err != nil {
			logger.Warnf("Failed to send ICE candidate: %v", err)
		}
	})

	if !isInitiator {
		pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			conn.setupDataChannel(dc)
		})
	}

	return conn
}

func (c *connection) createDataChannel() error {
	dc, err := c.pc.CreateDataChannel("data", defaultDataChannelInit())
	if err != nil {
		return fmt.Errorf("failed to create data channel: %w", err)
	}
	c.setupDataChannel(dc)
	return nil
}

func (c *connection) setupDataChannel(dc *webrtc.DataChannel) {
	c.mu.Lock()
	c.dc = dc
	c.mu.Unlock()

	dc.OnOpen(func() {
		c.openOnce.Do(func() {
			close(c.opened)
		})
		if c.onOpen != nil {
			c.onOpen()
		}
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		c.deliver(msg.Data)
	})

	dc.OnError(func(err error) {
		c.logger.Debugf("Data channel to %s errored: %v", c.remoteAddr, err)
	})

	dc.OnClose(func() {
		c.markClosed()
	})
}

// handleSignal applies one inbound signaling message to this
// connection. ICE candidates that arrive before the remote description
// are held back and flushed once it is set.
func (c *connection) handleSignal(sig *protocol.Signal) error {
	switch sig.Kind {
	case protocol.SignalOffer:
		if c.isInitiator {
			return fmt.Errorf("unexpected offer from %s", sig.SourceAddress)
		}
		return c.handleOffer(sig.Payload)
	case protocol.SignalAnswer:
		if !c.isInitiator {
			return fmt.Errorf("unexpected answer from %s", sig.SourceAddress)
		}
		return c.handleAnswer(sig.Payload)
	case protocol.SignalICECandidate:
		return c.handleCandidate(sig.Payload)
	default:
		return fmt.Errorf("unknown signal kind %d", sig.Kind)
	}
}

func (c *connection) handleOffer(payload []byte) error {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(payload, &desc); err != nil {
		return fmt.Errorf("failed to decode offer: %w", err)
	}

	if err := c.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	c.flushCandidates()

	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}

	answerJSON, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}
	return c.signaler.SendSignal(context.Background(), c.remoteAddr, protocol.SignalAnswer, answerJSON)
}

func (c *connection) handleAnswer(payload []byte) error {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(payload, &desc); err != nil {
		return fmt.Errorf("failed to decode answer: %w", err)
	}

	if err := c.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	c.flushCandidates()
	return nil
}

func (c *connection) handleCandidate(payload []byte) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &candidate); err != nil {
		return fmt.Errorf("failed to decode ICE candidate: %w", err)
	}

	c.mu.Lock()
	if c.pc.RemoteDescription() == nil {
		c.pendingCandidates = append(c.pendingCandidates, candidate)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	return c.pc.AddICECandidate(candidate)
}

func (c *connection) flushCandidates() {
	c.mu.Lock()
	pending := c.pendingCandidates
	c.pendingCandidates = nil
	c.mu.Unlock()

	for _, candidate := range pending {
		if err := c.pc.AddICECandidate(candidate); err != nil {
			c.logger.Warnf("Failed to add buffered ICE candidate: %v", err)
		}
	}
}

// deliver hands one inbound message to the reader. The mutex orders
// delivery against markClosed: a message racing a close is dropped
// instead of hitting a closed channel.
func (c *connection) deliver(data []byte) {
	c.recvMu.Lock()
	defer c.recvMu.Unlock()

	if c.recvClosed {
		return
	}
	select {
	case c.recvChan <- data:
	case <-c.closed:
	}
}

func (c *connection) markClosed() {
	c.closeOnce.Do(func() {
		close(c.closed)

		c.recvMu.Lock()
		c.recvClosed = true
		close(c.recvChan)
		c.recvMu.Unlock()
	})
}

func (c *connection) RemoteAddress() string {
	return c.remoteAddr
}

func (c *connection) Send(data []byte) error {
	select {
	case <-c.closed:
		return channel.ErrClosed
	default:
	}

	c.mu.Lock()
	dc := c.dc
	c.mu.Unlock()

	if dc == nil {
		return fmt.Errorf("data channel not ready")
	}
	return dc.Send(data)
}

func (c *connection) Recv() <-chan []byte {
	return c.recvChan
}

func (c *connection) BufferedAmount() uint64 {
	c.mu.Lock()
	dc := c.dc
	c.mu.Unlock()

	if dc == nil {
		return 0
	}
	return dc.BufferedAmount()
}

func (c *connection) Close() error {
	c.markClosed()

	c.mu.Lock()
	dc := c.dc
	c.mu.Unlock()

	if dc != nil {
		_ = dc.Close()
	}
	return c.pc.Close()
}
