package buf

import (
	"sync"
	"time"

	"github.com/lucabaldini/baldaquin/errors"
	"github.com/lucabaldini/baldaquin/pkt"
)

// Buffer is the interface both queue disciplines (FIFO, Circular) satisfy.
// Sinks are value objects held in an ordered list; the first sink attached
// must be canonical.
type Buffer interface {
	// Put enqueues a packet. Its blocking behavior on a full queue is the
	// one way FIFO and Circular differ.
	Put(p pkt.Packet) error
	// AddSink attaches a new sink. The first sink ever attached must be
	// canonical (AddSink fails with FirstSinkMustBeCanonical otherwise).
	AddSink(s *Sink) error
	// Disconnect detaches every sink.
	Disconnect()
	// Size returns the number of packets currently queued.
	Size() int
	// AlmostFull reports whether Size() has reached the flush watermark.
	AlmostFull() bool
	// TimeSinceLastFlush reports elapsed time since the last Flush call.
	TimeSinceLastFlush() time.Duration
	// FlushNeeded reports whether a flush is due, by watermark or by time.
	FlushNeeded() bool
	// Flush drains a snapshot of the queue to every attached sink,
	// returning the number of packets written and the number of bytes
	// written to the canonical (first) sink.
	Flush() (int, int, error)
	// Clear empties the queue without touching any sink.
	Clear()
}

// core holds the state and locking discipline shared by every Buffer
// implementation: the packet queue, the sink list, and flush bookkeeping,
// all guarded by a single mutex. §5 allows either a single lock around
// enqueue/snapshot or an SPSC ring with a separate flush lock; this
// implementation picks the single lock, which keeps Size() trivially
// consistent with the queue it reports on.
type core struct {
	mu            sync.Mutex
	cond          *sync.Cond
	queue         []pkt.Packet
	maxSize       int
	flushSize     int
	flushInterval time.Duration
	lastFlush     time.Time
	sinks         []*Sink
	closed        bool
}

func newCore(maxSize, flushSize int, flushInterval time.Duration) (core, error) {
	if maxSize > 0 && flushSize > 0 && maxSize <= flushSize {
		return core{}, errors.E(errors.BufferSizingError)
	}
	c := core{
		maxSize:       maxSize,
		flushSize:     flushSize,
		flushInterval: flushInterval,
		lastFlush:     time.Now(),
	}
	c.cond = sync.NewCond(&c.mu)
	return c, nil
}

// AddSink implements the first-sink-canonical invariant shared by both
// queue disciplines. It must be called only while the worker is stopped
// or paused, per the sink-list shared-resource policy.
func (c *core) AddSink(s *Sink) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sinks) == 0 && !s.IsCanonical() {
		return errors.E(errors.FirstSinkMustBeCanonical)
	}
	c.sinks = append(c.sinks, s)
	return nil
}

// Disconnect implements Buffer.Disconnect.
func (c *core) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = nil
}

// Size implements Buffer.Size.
func (c *core) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// AlmostFull implements Buffer.AlmostFull.
func (c *core) AlmostFull() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushSize > 0 && len(c.queue) >= c.flushSize
}

// TimeSinceLastFlush implements Buffer.TimeSinceLastFlush.
func (c *core) TimeSinceLastFlush() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastFlush)
}

// FlushNeeded implements Buffer.FlushNeeded.
func (c *core) FlushNeeded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flushSize > 0 && len(c.queue) >= c.flushSize {
		return true
	}
	return c.flushInterval > 0 && time.Since(c.lastFlush) > c.flushInterval
}

// Clear implements Buffer.Clear.
func (c *core) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = nil
}

// Flush runs the fan-out algorithm in §4.4: snapshot n = len(queue)
// packets at call time (packets enqueued during the flush wait for the
// next call), write every packet to every sink (canonical sink's payload,
// projection sinks' rendering), then evict exactly those n packets from
// the live queue. Writing every sink from one immutable snapshot is
// observably identical to the canonical sink popping while projection
// sinks peek by index, since nothing can observe the queue mid-flush.
func (c *core) Flush() (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastFlush = time.Now()
	n := len(c.queue)
	if len(c.sinks) == 0 {
		if n > 0 {
			return 0, 0, errors.E(errors.NoSinks)
		}
		return 0, 0, nil
	}
	if n == 0 {
		return 0, 0, nil
	}
	packets := append([]pkt.Packet(nil), c.queue[:n]...)

	writers := make([]*writer, len(c.sinks))
	for i, s := range c.sinks {
		w, err := openWriter(s)
		if err != nil {
			for _, opened := range writers[:i] {
				if opened != nil {
					opened.close()
				}
			}
			return 0, 0, err
		}
		writers[i] = w
	}
	defer func() {
		for _, w := range writers {
			w.close()
		}
	}()

	bytesWritten := 0
	for wi, w := range writers {
		for _, p := range packets {
			nb, err := w.write(p)
			if err != nil {
				return len(packets), bytesWritten, err
			}
			if wi == 0 {
				bytesWritten += nb
			}
		}
	}
	c.queue = c.queue[n:]
	if len(c.queue) == 0 {
		c.queue = nil
	}
	c.cond.Broadcast()
	return len(packets), bytesWritten, nil
}

func (c *core) putFIFO(p pkt.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.maxSize > 0 && len(c.queue) >= c.maxSize && !c.closed {
		c.cond.Wait()
	}
	c.queue = append(c.queue, p)
	return nil
}

func (c *core) putCircular(p pkt.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.maxSize > 0 && len(c.queue) >= c.maxSize {
		c.queue = c.queue[1:]
	}
	c.queue = append(c.queue, p)
	return nil
}

// unblock wakes any goroutine blocked in putFIFO, used when the worker is
// being torn down so a full FIFO buffer never deadlocks a stop request.
func (c *core) unblock() {
	c.mu.Lock()
	c.closed = true
	c.cond.Broadcast()
	c.mu.Unlock()
}
