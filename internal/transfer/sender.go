// Package transfer implements the chunked file transfer protocol: one
// Metadata message, a stream of fixed-size Chunks, then End. It runs
// over any open channel.Channel and does not care how that channel was
// negotiated.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/beamlink/beamlink/internal/channel"
	"github.com/beamlink/beamlink/internal/protocol"
	"github.com/sirupsen/logrus"
)

// ErrTransferInProgress is returned when SendFile is called while a
// previous transfer on the same sender has not finished. Transfers over
// one channel are strictly sequential so the receiver's single
// reassembly buffer stays unambiguous.
var ErrTransferInProgress = errors.New("a transfer is already in progress")

// File describes one file to send.
type File struct {
	Name     string
	Size     uint64
	MimeType string
	Reader   io.Reader
}

// ProgressFunc receives percentages in [0,100], non-decreasing within
// one file.
type ProgressFunc func(percent int)

type Sender struct {
	ch     channel.Channel
	codec  *protocol.Codec
	logger *logrus.Logger

	onProgress ProgressFunc
	sending    atomic.Bool

	highWatermark uint64
	pollInterval  time.Duration
	chunkSize     int
}

func NewSender(ch channel.Channel, logger *logrus.Logger, onProgress ProgressFunc) *Sender {
	return &Sender{
		ch:            ch,
		codec:         protocol.NewCodec(),
		logger:        logger,
		onProgress:    onProgress,
		highWatermark: protocol.HighWatermark,
		pollInterval:  protocol.BufferPollInterval,
		chunkSize:     protocol.ChunkSize,
	}
}

// SendFile streams one file over the channel. It blocks until the final
// End message is enqueued or the context is canceled. Multiple files are
// sent by calling SendFile repeatedly; concurrent calls are rejected.
func (s *Sender) SendFile(ctx context.Context, file File) error {
	if !s.sending.CompareAndSwap(false, true) {
		return ErrTransferInProgress
	}
	defer s.sending.Store(false)

	s.logger.Infof("Sending %s (%d bytes)", file.Name, file.Size)

	meta := &protocol.Metadata{
		FileName: file.Name,
		FileSize: file.Size,
		MimeType: file.MimeType,
	}
	if err := s.send(meta); err != nil {
		return fmt.Errorf("failed to send metadata: %w", err)
	}

	var offset uint64
	buf := make([]byte, s.chunkSize)
	for offset < file.Size {
		if err := s.waitForDrain(ctx); err != nil {
			return err
		}

		// Never read past the declared size; the file may have grown
		// on disk since it was stated.
		want := buf
		if remaining := file.Size - offset; remaining < uint64(len(buf)) {
			want = buf[:remaining]
		}
		n, err := io.ReadFull(file.Reader, want)
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			if n == 0 {
				return fmt.Errorf("file ended %d bytes short", file.Size-offset)
			}
		} else if err != nil {
			return fmt.Errorf("failed to read chunk: %w", err)
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		if err := s.send(&protocol.Chunk{Data: payload}); err != nil {
			return fmt.Errorf("failed to send chunk: %w", err)
		}

		offset += uint64(n)
		s.reportProgress(offset, file.Size)
	}

	if err := s.send(&protocol.End{}); err != nil {
		return fmt.Errorf("failed to send end: %w", err)
	}

	s.reportProgress(file.Size, file.Size)
	s.logger.Infof("Sent %s", file.Name)
	return nil
}

// waitForDrain pauses while the channel's outbound buffer is above the
// high watermark. Cooperative polling keeps the caller responsive to
// cancellation; a disconnect mid-send surfaces as a context cancel or a
// Send error on the next chunk.
func (s *Sender) waitForDrain(ctx context.Context) error {
	for s.ch.BufferedAmount() > s.highWatermark {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
	return nil
}

func (s *Sender) send(msg protocol.Message) error {
	data, err := s.codec.EncodeToBytes(msg)
	if err != nil {
		return err
	}
	return s.ch.Send(data)
}

func (s *Sender) reportProgress(sent, total uint64) {
	if s.onProgress == nil {
		return
	}
	s.onProgress(percent(sent, total))
}

func percent(done, total uint64) int {
	if total == 0 || done >= total {
		return 100
	}
	return int((done*100 + total/2) / total)
}
