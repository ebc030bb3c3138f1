package transfer

import (
	"bytes"

	"github.com/beamlink/beamlink/internal/artifact"
	"github.com/beamlink/beamlink/internal/protocol"
	"github.com/sirupsen/logrus"
)

// ReceiverCallbacks observe the receive side of a transfer. Any field
// may be nil.
type ReceiverCallbacks struct {
	OnMetadata func(meta protocol.Metadata)
	OnProgress ProgressFunc
	OnComplete func(meta protocol.Metadata)
	OnError    func(meta protocol.Metadata, err error)
}

// Receiver reassembles incoming transfers. It is driven entirely by the
// channel's delivery callbacks: one Handle call per message, never
// concurrently, so the buffer needs no locking.
type Receiver struct {
	codec  *protocol.Codec
	logger *logrus.Logger
	sink   artifact.Sink
	cb     ReceiverCallbacks

	meta     *protocol.Metadata
	buf      bytes.Buffer
	received uint64
}

func NewReceiver(sink artifact.Sink, logger *logrus.Logger, cb ReceiverCallbacks) *Receiver {
	return &Receiver{
		codec:  protocol.NewCodec(),
		logger: logger,
		sink:   sink,
		cb:     cb,
	}
}

// HandleRaw decodes one message off the wire and dispatches it.
// Undecodable data is logged and dropped.
func (r *Receiver) HandleRaw(data []byte) {
	msg, err := r.codec.DecodeFromBytes(data)
	if err != nil {
		r.logger.Warnf("Dropping undecodable message (%d bytes): %v", len(data), err)
		return
	}
	r.Handle(msg)
}

func (r *Receiver) Handle(msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.Metadata:
		r.handleMetadata(m)
	case *protocol.Chunk:
		r.handleChunk(m)
	case *protocol.End:
		r.handleEnd()
	default:
		r.logger.Warnf("Unexpected message type on data channel: %s", msg.Type())
	}
}

// InProgress reports whether a transfer has started but not yet ended.
func (r *Receiver) InProgress() bool {
	return r.meta != nil
}

// Reset discards any partially received transfer. Called when the
// channel closes mid-stream; the partial buffer never reaches the sink.
func (r *Receiver) Reset() {
	if r.meta != nil {
		r.logger.Warnf("Discarding %d buffered bytes of %s", r.buf.Len(), r.meta.FileName)
	}
	r.meta = nil
	r.buf.Reset()
	r.received = 0
}

// handleMetadata starts a new cycle. A Metadata arriving while a prior
// cycle is still open discards that cycle's buffer and starts fresh.
func (r *Receiver) handleMetadata(meta *protocol.Metadata) {
	if r.meta != nil {
		r.logger.Warnf("New metadata for %s before end of %s, discarding buffer", meta.FileName, r.meta.FileName)
	}
	r.buf.Reset()
	r.received = 0
	r.meta = meta

	r.logger.Infof("Receiving %s (%d bytes, %s)", meta.FileName, meta.FileSize, meta.MimeType)
	if r.cb.OnMetadata != nil {
		r.cb.OnMetadata(*meta)
	}
	if r.cb.OnProgress != nil {
		r.cb.OnProgress(0)
	}
}

func (r *Receiver) handleChunk(chunk *protocol.Chunk) {
	if r.meta == nil {
		r.logger.Warnf("Protocol violation: chunk of %d bytes with no metadata, ignoring", len(chunk.Data))
		return
	}

	r.buf.Write(chunk.Data)
	r.received += uint64(len(chunk.Data))
	if r.cb.OnProgress != nil {
		r.cb.OnProgress(percent(r.received, r.meta.FileSize))
	}
}

func (r *Receiver) handleEnd() {
	if r.meta == nil {
		r.logger.Warn("Protocol violation: end with no metadata, ignoring")
		return
	}

	meta := *r.meta
	data := make([]byte, r.buf.Len())
	copy(data, r.buf.Bytes())

	r.meta = nil
	r.buf.Reset()
	r.received = 0

	if err := r.sink.Save(data, meta.FileName, meta.MimeType); err != nil {
		r.logger.Errorf("Failed to deliver %s: %v", meta.FileName, err)
		if r.cb.OnError != nil {
			r.cb.OnError(meta, err)
		}
		return
	}

	if r.cb.OnProgress != nil {
		r.cb.OnProgress(100)
	}
	if r.cb.OnComplete != nil {
		r.cb.OnComplete(meta)
	}
}
