// Package rendezvous implements the client side of the rendezvous
// service: session codes, room presence, and signal relay over one
// persistent TCP connection.
package rendezvous

import (
	"io"
	"net"
	"reflect"
	"sync"

	"github.com/beamlink/beamlink/internal/protocol"
	"github.com/sirupsen/logrus"
)

// MessageRouter reads framed messages off a connection and fans them
// out to typed channels based on a match function per route.
type MessageRouter struct {
	conn   net.Conn
	codec  *protocol.Codec
	logger *logrus.Logger

	routes  map[interface{}]func(protocol.Message) bool
	onClose func()

	done      chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex
}

func NewMessageRouter(conn net.Conn, logger *logrus.Logger) *MessageRouter {
	return &MessageRouter{
		conn:   conn,
		codec:  protocol.NewCodec(),
		logger: logger,
		routes: make(map[interface{}]func(protocol.Message) bool),
		done:   make(chan struct{}),
	}
}

// AddRoute registers a typed channel for messages matched by matchFn.
// All routes must be added before Start.
func (r *MessageRouter) AddRoute(ch interface{}, matchFn func(protocol.Message) bool) {
	if reflect.TypeOf(ch).Kind() != reflect.Chan {
		r.logger.Fatal("AddRoute: argument must be a channel")
	}
	r.routes[ch] = matchFn
}

// OnClose registers a callback invoked once when the read loop exits.
func (r *MessageRouter) OnClose(fn func()) {
	r.onClose = fn
}

func (r *MessageRouter) Start() {
	go r.listen()
}

func (r *MessageRouter) Stop() {
	r.closeOnce.Do(func() {
		close(r.done)
		_ = r.conn.Close()
	})
}

func (r *MessageRouter) listen() {
	defer func() {
		r.Stop()
		if r.onClose != nil {
			r.onClose()
		}
	}()

	for {
		select {
		case <-r.done:
			return
		default:
			msg, err := protocol.ReadFrame(r.conn, r.codec)
			if err != nil {
				if err != io.EOF {
					r.logger.Debugf("Rendezvous read loop ended: %v", err)
				}
				return
			}
			r.routeMessage(msg)
		}
	}
}

func (r *MessageRouter) WriteMessage(msg protocol.Message) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return protocol.WriteFrame(r.conn, r.codec, msg)
}

func (r *MessageRouter) routeMessage(msg protocol.Message) {
	concreteMsg := reflect.ValueOf(msg)

	for ch, matchFn := range r.routes {
		if !matchFn(msg) {
			continue
		}

		chVal := reflect.ValueOf(ch)
		if !concreteMsg.Type().AssignableTo(chVal.Type().Elem()) {
			continue
		}

		chVal.Send(concreteMsg)
		return
	}

	r.logger.Warnf("Unrouted rendezvous message: %s", msg.Type())
}
