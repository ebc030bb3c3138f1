package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/beamlink/beamlink/internal/artifact"
	"github.com/beamlink/beamlink/internal/channel"
	"github.com/beamlink/beamlink/internal/protocol"
	"github.com/beamlink/beamlink/internal/rendezvous"
	"github.com/beamlink/beamlink/internal/transfer"
	"github.com/sirupsen/logrus"
)

// ReceiverSession drives the code-entering receiver role:
// Idle -> Resolving -> Connecting -> Connected -> Receiving ->
// Connected, with Failed terminal for this code.
type ReceiverSession struct {
	rdv       Rendezvous
	transport channel.Transport
	sink      artifact.Sink
	logger    *logrus.Logger
	status    StatusFunc

	mu       sync.Mutex
	state    State
	ch       channel.Channel
	receiver *transfer.Receiver
}

func NewReceiverSession(rdv Rendezvous, transport channel.Transport, sink artifact.Sink, logger *logrus.Logger, status StatusFunc) *ReceiverSession {
	return &ReceiverSession{
		rdv:       rdv,
		transport: transport,
		sink:      sink,
		logger:    logger,
		status:    status,
		state:     StateIdle,
	}
}

// Join resolves the code and opens a channel to the sender. A failure
// here is terminal for this code; the user must re-enter one to retry.
func (r *ReceiverSession) Join(ctx context.Context, code string) error {
	r.setState(StateResolving, "Looking for room...", 0)

	address, err := r.rdv.ResolveSession(ctx, code)
	if err != nil {
		if errors.Is(err, rendezvous.ErrSessionNotFound) {
			r.setState(StateFailed, "invalid or expired code", 0)
		} else {
			r.setState(StateFailed, "Error connecting to server.", 0)
		}
		return err
	}

	r.setState(StateConnecting, "Connecting to sender...", 0)

	ch, err := r.transport.Open(ctx, address)
	if err != nil {
		r.setState(StateFailed, "P2P connection failed. Network may be blocking it.", 0)
		return err
	}

	r.mu.Lock()
	r.ch = ch
	r.receiver = transfer.NewReceiver(r.sink, r.logger, transfer.ReceiverCallbacks{
		OnMetadata: func(meta protocol.Metadata) {
			r.setState(StateReceiving, fmt.Sprintf("Receiving %s...", meta.FileName), 0)
		},
		OnProgress: func(pct int) {
			r.setState(StateReceiving, "", pct)
		},
		OnComplete: func(meta protocol.Metadata) {
			r.setState(StateConnected, "File Received! Waiting for next file...", 100)
		},
		OnError: func(meta protocol.Metadata, err error) {
			r.setState(StateFailed, fmt.Sprintf("Failed to save %s.", meta.FileName), 0)
		},
	})
	r.mu.Unlock()

	r.setState(StateConnected, "Connected! Waiting for file...", 0)
	return nil
}

// Run consumes channel deliveries until the channel closes or the
// context ends. A close mid-transfer discards the partial buffer; no
// partial artifact is ever produced.
func (r *ReceiverSession) Run(ctx context.Context) error {
	r.mu.Lock()
	ch := r.ch
	receiver := r.receiver
	r.mu.Unlock()

	if ch == nil {
		return errors.New("session not joined")
	}

	for {
		select {
		case data, ok := <-ch.Recv():
			if !ok {
				if receiver.InProgress() {
					receiver.Reset()
					r.setState(StateDisconnected, "Connection closed mid-transfer.", 0)
				} else {
					r.setState(StateDisconnected, "Connection closed.", 0)
				}
				return nil
			}
			receiver.HandleRaw(data)
		case <-ctx.Done():
			_ = ch.Close()
			return ctx.Err()
		}
	}
}

func (r *ReceiverSession) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *ReceiverSession) Close() error {
	r.mu.Lock()
	ch := r.ch
	r.ch = nil
	r.mu.Unlock()

	if ch != nil {
		return ch.Close()
	}
	return nil
}

func (r *ReceiverSession) setState(state State, msg string, progress int) {
	r.mu.Lock()
	r.state = state
	r.mu.Unlock()

	if msg != "" {
		r.logger.Debugf("Receiver session: %s %s", state, msg)
	}
	if r.status != nil {
		r.status(Status{State: state, Message: msg, Progress: progress})
	}
}
