package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/beamlink/beamlink/internal/channel"
	"github.com/beamlink/beamlink/internal/transfer"
	"github.com/sirupsen/logrus"
)

// SenderSession drives the code-sharing sender role:
// Idle -> AwaitingCode -> AwaitingPeer -> Ready -> Sending -> Ready,
// looping back to AwaitingPeer when the receiver disconnects.
type SenderSession struct {
	rdv       Rendezvous
	transport channel.Transport
	logger    *logrus.Logger
	status    StatusFunc

	mu     sync.Mutex
	state  State
	code   string
	ch     channel.Channel
	sender *transfer.Sender
}

func NewSenderSession(rdv Rendezvous, transport channel.Transport, logger *logrus.Logger, status StatusFunc) *SenderSession {
	return &SenderSession{
		rdv:       rdv,
		transport: transport,
		logger:    logger,
		status:    status,
		state:     StateIdle,
	}
}

// Start obtains a session code to share. The session then waits for a
// receiver via WaitForPeer.
func (s *SenderSession) Start(ctx context.Context) (string, error) {
	code, err := s.rdv.CreateSession(ctx)
	if err != nil {
		s.setState(StateFailed, "Error connecting to server.", 0)
		return "", err
	}

	s.mu.Lock()
	s.code = code
	s.mu.Unlock()

	s.setState(StateAwaitingCode, fmt.Sprintf("Session created, share code %s", code), 0)
	s.setState(StateAwaitingPeer, "Waiting for receiver to join...", 0)
	return code, nil
}

// WaitForPeer blocks until a receiver opens a channel to us.
func (s *SenderSession) WaitForPeer(ctx context.Context) error {
	select {
	case ch, ok := <-s.transport.Accept():
		if !ok {
			s.setState(StateFailed, "Transport closed.", 0)
			return channel.ErrClosed
		}
		s.attach(ch)
		s.setState(StateReady, "Receiver connected! Select a file to share.", 0)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SenderSession) attach(ch channel.Channel) {
	s.mu.Lock()
	s.ch = ch
	s.sender = transfer.NewSender(ch, s.logger, func(pct int) {
		s.setState(StateSending, "", pct)
	})
	s.mu.Unlock()

	go s.watchDisconnect(ch)
}

// watchDisconnect loops the session back to AwaitingPeer when the
// receiver goes away; the session code stays valid until it expires
// server-side, so a new receiver can still join.
func (s *SenderSession) watchDisconnect(ch channel.Channel) {
	for range ch.Recv() {
		// The sender role expects no inbound messages; drain until close.
	}

	s.mu.Lock()
	if s.ch != ch {
		s.mu.Unlock()
		return
	}
	s.ch = nil
	s.sender = nil
	s.mu.Unlock()

	s.setState(StateAwaitingPeer, "Receiver disconnected. Waiting for a new connection...", 0)
}

// SendFile streams one file to the connected receiver. Files are sent
// one at a time; the session returns to Ready after each.
func (s *SenderSession) SendFile(ctx context.Context, file transfer.File) error {
	s.mu.Lock()
	sender := s.sender
	s.mu.Unlock()

	if sender == nil {
		return errors.New("no receiver connected")
	}

	s.setState(StateSending, fmt.Sprintf("Sending %s...", file.Name), 0)

	if err := sender.SendFile(ctx, file); err != nil {
		if errors.Is(err, transfer.ErrTransferInProgress) {
			return err
		}
		s.setState(StateDisconnected, "Transfer interrupted.", 0)
		return fmt.Errorf("send failed: %w", err)
	}

	s.setState(StateReady, "Sent Successfully!", 100)
	return nil
}

// Code returns the session code obtained by Start.
func (s *SenderSession) Code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

func (s *SenderSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *SenderSession) Close() error {
	s.mu.Lock()
	ch := s.ch
	s.ch = nil
	s.sender = nil
	s.mu.Unlock()

	if ch != nil {
		return ch.Close()
	}
	return nil
}

func (s *SenderSession) setState(state State, msg string, progress int) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	if msg != "" {
		s.logger.Debugf("Sender session: %s %s", state, msg)
	}
	if s.status != nil {
		s.status(Status{State: state, Message: msg, Progress: progress})
	}
}
