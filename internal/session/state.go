// Package session orchestrates rendezvous, channel setup, and the
// transfer engine into one observable lifecycle per role. Every
// external failure is absorbed here and turned into a state change
// plus a human-readable status; nothing propagates past a session.
package session

import (
	"context"

	"github.com/beamlink/beamlink/internal/protocol"
	"github.com/beamlink/beamlink/internal/rendezvous"
)

type State int

const (
	StateIdle State = iota
	StateAwaitingCode
	StateAwaitingPeer
	StateReady
	StateSending
	StateResolving
	StateConnecting
	StateConnected
	StateReceiving
	StateScanning
	StateDisconnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAwaitingCode:
		return "AWAITING_CODE"
	case StateAwaitingPeer:
		return "AWAITING_PEER"
	case StateReady:
		return "READY"
	case StateSending:
		return "SENDING"
	case StateResolving:
		return "RESOLVING"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReceiving:
		return "RECEIVING"
	case StateScanning:
		return "SCANNING"
	case StateDisconnected:
		return "DISCONNECTED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Status is one observable snapshot of a session. Progress is only
// meaningful in StateSending and StateReceiving.
type Status struct {
	State    State
	Message  string
	Progress int
}

// StatusFunc receives every status change. Callbacks arrive from the
// session's own goroutines and should return quickly.
type StatusFunc func(Status)

// Rendezvous is the slice of the rendezvous client a session needs.
type Rendezvous interface {
	CreateSession(ctx context.Context) (string, error)
	ResolveSession(ctx context.Context, code string) (string, error)
	JoinRoom(ctx context.Context, peer protocol.PeerInfo) (<-chan rendezvous.PresenceEvent, error)
	LeaveRoom() error
}
