// Package event implements the acquisition worker: a cooperative loop that
// reads packets from a source, enqueues them into a buffer, triggers
// flushes, and invokes a per-packet user hook.
package event

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lucabaldini/baldaquin/buf"
	"github.com/lucabaldini/baldaquin/errors"
	"github.com/lucabaldini/baldaquin/log"
	"github.com/lucabaldini/baldaquin/pkt"
)

// Statistics tracks the three independent counters the worker and the
// buffer update: packets read off the source, packets enqueued
// ("processed"), and packets/bytes actually written, accumulated over
// every flush since the last Reset. Keeping read and processed distinct (supplementing spec.md's
// two-counter view) lets wait_pending_packets diagnostics distinguish "we
// never got the bytes" from "we got them but never enqueued them".
type Statistics struct {
	mu              sync.Mutex
	PacketsRead     int64
	PacketsProcessed int64
	PacketsWritten  int64
	BytesWritten    int64
}

// Reset zeroes every counter.
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PacketsRead = 0
	s.PacketsProcessed = 0
	s.PacketsWritten = 0
	s.BytesWritten = 0
}

// Snapshot returns a copy of the current counters, safe to read
// concurrently with updates.
func (s *Statistics) Snapshot() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Statistics{
		PacketsRead:      s.PacketsRead,
		PacketsProcessed: s.PacketsProcessed,
		PacketsWritten:   s.PacketsWritten,
		BytesWritten:     s.BytesWritten,
	}
}

func (s *Statistics) addRead() {
	s.mu.Lock()
	s.PacketsRead++
	s.mu.Unlock()
}

func (s *Statistics) addProcessed() {
	s.mu.Lock()
	s.PacketsProcessed++
	s.mu.Unlock()
}

func (s *Statistics) addWritten(packets, bytes int) {
	s.mu.Lock()
	s.PacketsWritten += int64(packets)
	s.BytesWritten += int64(bytes)
	s.mu.Unlock()
}

// Source is the only blocking I/O point in the acquisition loop: it reads
// exactly one packet's worth of bytes from the underlying device or file.
type Source interface {
	ReadPacket() ([]byte, error)
}

// Decoder turns the raw bytes a Source produces into a packet instance.
type Decoder func([]byte) (pkt.Packet, error)

// Processor receives every successfully decoded packet for user-domain
// side effects (histograms, strip charts, and the like). It must be total
// and non-panicking under normal operation, matching the "must be total
// and non-throwing" contract in §4.5.
type Processor func(pkt.Packet)

// Handler is the acquisition worker: it owns exactly one buffer and one
// Statistics record, per §4.5.
type Handler struct {
	Buffer    buf.Buffer
	Source    Source
	Decode    Decoder
	Process   Processor

	stats   Statistics
	running int32
	done    chan struct{}
}

// New returns a Handler wired to the given buffer, source and decode/
// process hooks.
func New(buffer buf.Buffer, source Source, decode Decoder, process Processor) *Handler {
	return &Handler{Buffer: buffer, Source: source, Decode: decode, Process: process}
}

// Statistics returns the handler's statistics record.
func (h *Handler) Statistics() *Statistics {
	return &h.stats
}

// SetCanonicalSink wires the buffer's canonical (binary, unprojected)
// sink to path, per §4.5's set_output_file lifecycle hook. It must be
// called before any projection sink, since the buffer requires its first
// attached sink to be canonical.
func (h *Handler) SetCanonicalSink(path string) error {
	sink, err := buf.NewSink(path, buf.Binary, nil, nil)
	if err != nil {
		return err
	}
	return h.Buffer.AddSink(sink)
}

// AddCustomSink wires a text projection sink to path, per §4.5's
// add_custom_sink lifecycle hook. The canonical sink must already be
// attached.
func (h *Handler) AddCustomSink(path string, projection buf.Projection, header []byte) error {
	sink, err := buf.NewSink(path, buf.Text, projection, header)
	if err != nil {
		return err
	}
	return h.Buffer.AddSink(sink)
}

// FlushBuffer delegates to the buffer and folds the result into the
// handler's statistics.
func (h *Handler) FlushBuffer() (int, int, error) {
	n, nbytes, err := h.Buffer.Flush()
	h.stats.addWritten(n, nbytes)
	return n, nbytes, err
}

// acquirePacket performs one iteration of the loop body described in §4.5:
// read, decode, enqueue, maybe-flush, process.
func (h *Handler) acquirePacket() error {
	data, err := h.Source.ReadPacket()
	if err != nil {
		return err
	}
	h.stats.addRead()
	p, err := h.Decode(data)
	if err != nil {
		log.Error.Printf("event: dropping packet: %v", err)
		return nil
	}
	if err := h.Buffer.Put(p); err != nil {
		return err
	}
	h.stats.addProcessed()
	if h.Buffer.FlushNeeded() {
		if _, _, err := h.FlushBuffer(); err != nil {
			log.Error.Printf("event: flush failed: %v", err)
		}
	}
	if h.Process != nil {
		h.Process(p)
	}
	return nil
}

// Run is the acquisition loop: it clears any residual packets left over
// from a previous run, then reads and processes packets until Stop is
// called or the source returns an error. Run blocks the calling goroutine
// and is meant to be launched with `go h.Run()`.
func (h *Handler) Run() error {
	if h.Buffer.Size() > 0 {
		log.Error.Printf("event: buffer not empty at start of run, clearing it")
		h.Buffer.Clear()
	}
	atomic.StoreInt32(&h.running, 1)
	h.done = make(chan struct{})
	defer close(h.done)
	var runErr error
	for atomic.LoadInt32(&h.running) == 1 {
		if err := h.acquirePacket(); err != nil {
			if errors.Is(errors.Canceled, err) {
				break
			}
			runErr = err
			break
		}
	}
	if _, _, err := h.FlushBuffer(); err != nil {
		log.Error.Printf("event: final flush failed: %v", err)
	}
	return runErr
}

// Stop requests cooperative cancellation: it does not interrupt an
// in-progress ReadPacket call, so termination latency is bounded by the
// source's own read timeout.
func (h *Handler) Stop() {
	atomic.StoreInt32(&h.running, 0)
	if fifo, ok := h.Buffer.(*buf.FIFO); ok {
		fifo.Unblock()
	}
}

// Join blocks until Run returns or timeout elapses, whichever comes
// first. It reports WorkerJoinTimeout if the worker fails to stop in time.
func (h *Handler) Join(timeout time.Duration) error {
	if h.done == nil {
		return nil
	}
	select {
	case <-h.done:
		return nil
	case <-time.After(timeout):
		return errors.E(errors.WorkerJoinTimeout)
	}
}

// WaitPendingPackets drains the trailing bytes a source emits after a stop
// command: it sleeps for one sampling interval, reads the residual bytes,
// enqueues whole packets from them, and then expects the source's
// end-of-run marker byte. It fails with RunEndMarkerMismatch if the
// expected marker byte does not appear.
func (h *Handler) WaitPendingPackets(samplingInterval time.Duration, packetSize int, endMarker byte, residual func() ([]byte, error)) error {
	time.Sleep(samplingInterval)
	data, err := residual()
	if err != nil {
		return err
	}
	for off := 0; off+packetSize <= len(data); off += packetSize {
		p, err := h.Decode(data[off : off+packetSize])
		if err != nil {
			log.Error.Printf("event: dropping trailing packet: %v", err)
			continue
		}
		if err := h.Buffer.Put(p); err != nil {
			return err
		}
		h.stats.addProcessed()
	}
	tail := len(data) - (len(data)/packetSize)*packetSize
	if tail == 0 {
		return errors.E(errors.RunEndMarkerMismatch, "no trailing marker byte found")
	}
	marker := data[len(data)-1]
	if marker != endMarker {
		return errors.E(errors.RunEndMarkerMismatch)
	}
	return nil
}
