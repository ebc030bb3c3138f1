package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/beamlink/beamlink/internal/protocol"
	"github.com/sirupsen/logrus"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeChannel records sends and simulates a draining outbound buffer.
// When onSend is set every sent frame is forwarded to it synchronously,
// which lets a test wire a Sender directly into a Receiver.
type fakeChannel struct {
	mu        sync.Mutex
	sent      [][]byte
	buffered  uint64
	drainStep uint64
	watermark uint64
	violated  bool

	onSend func(data []byte)
	recvCh chan []byte
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{recvCh: make(chan []byte, 64)}
}

func (c *fakeChannel) Send(data []byte) error {
	c.mu.Lock()
	if c.watermark > 0 && c.buffered > c.watermark {
		c.violated = true
	}
	c.buffered += uint64(len(data))
	c.sent = append(c.sent, data)
	onSend := c.onSend
	c.mu.Unlock()

	if onSend != nil {
		onSend(data)
	}
	return nil
}

func (c *fakeChannel) Recv() <-chan []byte { return c.recvCh }

func (c *fakeChannel) BufferedAmount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buffered > c.drainStep {
		c.buffered -= c.drainStep
	} else {
		c.buffered = 0
	}
	return c.buffered
}

func (c *fakeChannel) RemoteAddress() string { return "fake-remote" }

func (c *fakeChannel) Close() error { return nil }

type failingSink struct {
	err error
}

func (s *failingSink) Save(data []byte, fileName, mimeType string) error {
	return s.err
}

type savedArtifact struct {
	name string
	mime string
	data []byte
}

type fakeSink struct {
	saves []savedArtifact
}

func (s *fakeSink) Save(data []byte, fileName, mimeType string) error {
	s.saves = append(s.saves, savedArtifact{name: fileName, mime: mimeType, data: data})
	return nil
}

func TestTransferRoundTrip(t *testing.T) {
	sink := &fakeSink{}
	receiver := NewReceiver(sink, newTestLogger(), ReceiverCallbacks{})

	ch := newFakeChannel()
	ch.onSend = receiver.HandleRaw

	sender := NewSender(ch, newTestLogger(), nil)
	sender.chunkSize = 16

	payload := []byte("exactly thirty three bytes here!!")
	if len(payload) != 33 {
		t.Fatalf("Test payload must be 33 bytes, got %d", len(payload))
	}

	err := sender.SendFile(context.Background(), File{
		Name:     "report.pdf",
		Size:     uint64(len(payload)),
		MimeType: "application/pdf",
		Reader:   bytes.NewReader(payload),
	})
	if err != nil {
		t.Fatalf("SendFile failed: %v", err)
	}

	if len(sink.saves) != 1 {
		t.Fatalf("Expected 1 saved artifact, got %d", len(sink.saves))
	}
	got := sink.saves[0]
	if got.name != "report.pdf" {
		t.Errorf("Expected name 'report.pdf', got %q", got.name)
	}
	if got.mime != "application/pdf" {
		t.Errorf("Expected mime 'application/pdf', got %q", got.mime)
	}
	if !bytes.Equal(got.data, payload) {
		t.Error("Received bytes differ from sent bytes")
	}
	// 33 bytes at a 16-byte chunk size is Metadata + 3 chunks + End.
	if len(ch.sent) != 5 {
		t.Errorf("Expected 5 frames on the wire, got %d", len(ch.sent))
	}
}

func TestSenderProgressMonotone(t *testing.T) {
	var progress []int
	ch := newFakeChannel()
	sender := NewSender(ch, newTestLogger(), func(percent int) {
		progress = append(progress, percent)
	})
	sender.chunkSize = 16

	payload := make([]byte, 100)
	err := sender.SendFile(context.Background(), File{
		Name:   "blob.bin",
		Size:   uint64(len(payload)),
		Reader: bytes.NewReader(payload),
	})
	if err != nil {
		t.Fatalf("SendFile failed: %v", err)
	}

	if len(progress) == 0 {
		t.Fatal("Expected progress reports")
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Fatalf("Progress went backwards: %d after %d", progress[i], progress[i-1])
		}
	}
	if last := progress[len(progress)-1]; last != 100 {
		t.Errorf("Expected final progress 100, got %d", last)
	}
}

func TestSenderEmptyFile(t *testing.T) {
	var progress []int
	ch := newFakeChannel()
	sender := NewSender(ch, newTestLogger(), func(percent int) {
		progress = append(progress, percent)
	})

	err := sender.SendFile(context.Background(), File{
		Name:   "empty.txt",
		Size:   0,
		Reader: bytes.NewReader(nil),
	})
	if err != nil {
		t.Fatalf("SendFile failed: %v", err)
	}

	// Metadata + End, no chunks.
	if len(ch.sent) != 2 {
		t.Errorf("Expected 2 frames, got %d", len(ch.sent))
	}
	if len(progress) != 1 || progress[0] != 100 {
		t.Errorf("Expected single progress report of 100, got %v", progress)
	}
}

func TestSenderBackpressure(t *testing.T) {
	ch := newFakeChannel()
	ch.watermark = 64
	ch.drainStep = 48

	sender := NewSender(ch, newTestLogger(), nil)
	sender.chunkSize = 16
	sender.highWatermark = 64
	sender.pollInterval = time.Millisecond

	payload := make([]byte, 1024)
	for i := range payload {
		payload[i] = byte(i)
	}

	err := sender.SendFile(context.Background(), File{
		Name:   "big.bin",
		Size:   uint64(len(payload)),
		Reader: bytes.NewReader(payload),
	})
	if err != nil {
		t.Fatalf("SendFile failed: %v", err)
	}

	if ch.violated {
		t.Error("Sender enqueued a chunk while the buffer was above the high watermark")
	}
}

func TestSenderCancellation(t *testing.T) {
	ch := newFakeChannel()
	ch.buffered = 10 * 1024 * 1024
	ch.drainStep = 0

	sender := NewSender(ch, newTestLogger(), nil)
	sender.pollInterval = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := sender.SendFile(ctx, File{
		Name:   "stuck.bin",
		Size:   1024,
		Reader: bytes.NewReader(make([]byte, 1024)),
	})
	if err == nil {
		t.Fatal("Expected cancellation error on a stuck buffer")
	}
}

func TestSenderRejectsConcurrentTransfer(t *testing.T) {
	ch := newFakeChannel()
	sender := NewSender(ch, newTestLogger(), nil)
	sender.sending.Store(true)

	err := sender.SendFile(context.Background(), File{
		Name:   "second.txt",
		Size:   1,
		Reader: bytes.NewReader([]byte{1}),
	})
	if err != ErrTransferInProgress {
		t.Fatalf("Expected ErrTransferInProgress, got %v", err)
	}
}

func TestSenderStopsAtDeclaredSize(t *testing.T) {
	sink := &fakeSink{}
	var progress []int
	receiver := NewReceiver(sink, newTestLogger(), ReceiverCallbacks{})

	ch := newFakeChannel()
	ch.onSend = receiver.HandleRaw

	sender := NewSender(ch, newTestLogger(), func(percent int) {
		progress = append(progress, percent)
	})
	sender.chunkSize = 16

	// The reader holds more bytes than the declared size, as if the
	// file grew on disk after it was stated.
	payload := make([]byte, 64)
	for i := range payload {
		payload[i] = byte(i)
	}

	err := sender.SendFile(context.Background(), File{
		Name:   "growing.bin",
		Size:   33,
		Reader: bytes.NewReader(payload),
	})
	if err != nil {
		t.Fatalf("SendFile failed: %v", err)
	}

	if len(sink.saves) != 1 {
		t.Fatalf("Expected 1 artifact, got %d", len(sink.saves))
	}
	if len(sink.saves[0].data) != 33 {
		t.Errorf("Expected exactly 33 declared bytes, got %d", len(sink.saves[0].data))
	}
	if !bytes.Equal(sink.saves[0].data, payload[:33]) {
		t.Error("Delivered bytes differ from the first 33 bytes of the reader")
	}
	for i, pct := range progress {
		if pct > 100 {
			t.Fatalf("Progress exceeded 100: %v", progress)
		}
		if i > 0 && pct < progress[i-1] {
			t.Fatalf("Progress went backwards: %v", progress)
		}
	}
}

func TestReceiverClampsOverdeliveredProgress(t *testing.T) {
	var progress []int
	sink := &fakeSink{}
	receiver := NewReceiver(sink, newTestLogger(), ReceiverCallbacks{
		OnProgress: func(percent int) { progress = append(progress, percent) },
	})

	// A peer announcing 10 bytes and then sending 25 is a protocol
	// violation; progress must stay capped, not explode past 100.
	receiver.Handle(&protocol.Metadata{FileName: "liar.bin", FileSize: 10, MimeType: "application/octet-stream"})
	receiver.Handle(&protocol.Chunk{Data: make([]byte, 25)})
	receiver.Handle(&protocol.End{})

	for _, pct := range progress {
		if pct > 100 {
			t.Fatalf("Progress exceeded 100: %v", progress)
		}
	}
	if len(sink.saves) != 1 || len(sink.saves[0].data) != 25 {
		t.Error("Expected the over-delivered bytes to still be saved")
	}
}

func TestReceiverReportsSaveFailure(t *testing.T) {
	var gotErr error
	var completed bool

	sink := &failingSink{err: errors.New("disk full")}
	receiver := NewReceiver(sink, newTestLogger(), ReceiverCallbacks{
		OnComplete: func(meta protocol.Metadata) { completed = true },
		OnError:    func(meta protocol.Metadata, err error) { gotErr = err },
	})

	receiver.Handle(&protocol.Metadata{FileName: "notes.md", FileSize: 5, MimeType: "text/markdown"})
	receiver.Handle(&protocol.Chunk{Data: []byte("hello")})
	receiver.Handle(&protocol.End{})

	if gotErr == nil {
		t.Fatal("Expected OnError for a failed save")
	}
	if completed {
		t.Error("OnComplete must not fire when the save fails")
	}
	if receiver.InProgress() {
		t.Error("Expected cycle closed after a failed save")
	}
}

func TestSenderShortRead(t *testing.T) {
	ch := newFakeChannel()
	sender := NewSender(ch, newTestLogger(), nil)

	err := sender.SendFile(context.Background(), File{
		Name:   "truncated.bin",
		Size:   100,
		Reader: bytes.NewReader(make([]byte, 33)),
	})
	if err == nil {
		t.Fatal("Expected error when the reader ends short of the declared size")
	}
}

func TestReceiverIgnoresChunkWithoutMetadata(t *testing.T) {
	sink := &fakeSink{}
	receiver := NewReceiver(sink, newTestLogger(), ReceiverCallbacks{})

	receiver.Handle(&protocol.Chunk{Data: []byte("stray")})
	receiver.Handle(&protocol.End{})

	if len(sink.saves) != 0 {
		t.Fatalf("Expected no artifacts from a violating stream, got %d", len(sink.saves))
	}

	// The receiver must still accept a well-formed cycle afterwards.
	receiver.Handle(&protocol.Metadata{FileName: "ok.txt", FileSize: 5, MimeType: "text/plain"})
	receiver.Handle(&protocol.Chunk{Data: []byte("hello")})
	receiver.Handle(&protocol.End{})

	if len(sink.saves) != 1 {
		t.Fatalf("Expected 1 artifact after recovery, got %d", len(sink.saves))
	}
	if !bytes.Equal(sink.saves[0].data, []byte("hello")) {
		t.Error("Recovered transfer delivered wrong bytes")
	}
}

func TestReceiverMetadataRestartsCycle(t *testing.T) {
	sink := &fakeSink{}
	receiver := NewReceiver(sink, newTestLogger(), ReceiverCallbacks{})

	receiver.Handle(&protocol.Metadata{FileName: "first.txt", FileSize: 100, MimeType: "text/plain"})
	receiver.Handle(&protocol.Chunk{Data: []byte("partial data")})

	// A fresh Metadata abandons the incomplete cycle.
	receiver.Handle(&protocol.Metadata{FileName: "second.txt", FileSize: 5, MimeType: "text/plain"})
	receiver.Handle(&protocol.Chunk{Data: []byte("fresh")})
	receiver.Handle(&protocol.End{})

	if len(sink.saves) != 1 {
		t.Fatalf("Expected 1 artifact, got %d", len(sink.saves))
	}
	if sink.saves[0].name != "second.txt" {
		t.Errorf("Expected 'second.txt', got %q", sink.saves[0].name)
	}
	if !bytes.Equal(sink.saves[0].data, []byte("fresh")) {
		t.Error("Second cycle delivered stale bytes from the abandoned cycle")
	}
}

func TestReceiverResetDiscardsPartial(t *testing.T) {
	sink := &fakeSink{}
	receiver := NewReceiver(sink, newTestLogger(), ReceiverCallbacks{})

	receiver.Handle(&protocol.Metadata{FileName: "doomed.txt", FileSize: 100, MimeType: "text/plain"})
	receiver.Handle(&protocol.Chunk{Data: []byte("partial")})
	if !receiver.InProgress() {
		t.Fatal("Expected transfer in progress")
	}

	receiver.Reset()

	if receiver.InProgress() {
		t.Error("Expected no transfer in progress after reset")
	}
	if len(sink.saves) != 0 {
		t.Errorf("Partial transfer must never reach the sink, got %d artifacts", len(sink.saves))
	}
}

func TestReceiverCallbacks(t *testing.T) {
	var gotMeta *protocol.Metadata
	var gotProgress []int
	var completed bool

	sink := &fakeSink{}
	receiver := NewReceiver(sink, newTestLogger(), ReceiverCallbacks{
		OnMetadata: func(meta protocol.Metadata) { gotMeta = &meta },
		OnProgress: func(percent int) { gotProgress = append(gotProgress, percent) },
		OnComplete: func(meta protocol.Metadata) { completed = true },
	})

	receiver.Handle(&protocol.Metadata{FileName: "notes.md", FileSize: 10, MimeType: "text/markdown"})
	receiver.Handle(&protocol.Chunk{Data: []byte("12345")})
	receiver.Handle(&protocol.Chunk{Data: []byte("67890")})
	receiver.Handle(&protocol.End{})

	if gotMeta == nil || gotMeta.FileName != "notes.md" {
		t.Error("OnMetadata not invoked with the announced metadata")
	}
	if !completed {
		t.Error("OnComplete not invoked")
	}
	if len(gotProgress) == 0 || gotProgress[len(gotProgress)-1] != 100 {
		t.Errorf("Expected progress ending at 100, got %v", gotProgress)
	}
	for i := 1; i < len(gotProgress); i++ {
		if gotProgress[i] < gotProgress[i-1] {
			t.Fatalf("Progress went backwards: %v", gotProgress)
		}
	}
}

func TestPercent(t *testing.T) {
	cases := []struct {
		done, total uint64
		want        int
	}{
		{0, 100, 0},
		{50, 100, 50},
		{100, 100, 100},
		{16, 33, 48},
		{32, 33, 97},
		{33, 33, 100},
		{0, 0, 100},
		{25, 10, 100},
		{200, 100, 100},
	}
	for _, c := range cases {
		if got := percent(c.done, c.total); got != c.want {
			t.Errorf("percent(%d, %d) = %d, want %d", c.done, c.total, got, c.want)
		}
	}
}
