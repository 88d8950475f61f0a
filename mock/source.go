package mock

import (
	"io"
	"sync"
)

// Source is a fake event.Source that emits count packets built from
// successive Counter values, then blocks until Stop is called, so a
// run-control test can deterministically drive the acquisition loop
// through a cooperative stop rather than racing a real device.
type Source struct {
	mu      sync.Mutex
	remain  int
	next    uint32
	stop    chan struct{}
	stopped bool
}

// NewSource returns a Source that yields count packets before blocking.
func NewSource(count int) *Source {
	return &Source{remain: count, stop: make(chan struct{})}
}

// ReadPacket implements event.Source.
func (s *Source) ReadPacket() ([]byte, error) {
	s.mu.Lock()
	if s.remain > 0 {
		s.remain--
		counter := s.next
		s.next++
		s.mu.Unlock()
		p, err := newSamplePacket(counter, uint16(counter%1024))
		if err != nil {
			return nil, err
		}
		return p.Payload(), nil
	}
	s.mu.Unlock()
	<-s.stop
	return nil, io.EOF
}

// Stop unblocks a pending ReadPacket call once the source has exhausted its
// pre-seeded packets. It is safe to call more than once.
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.stop)
}
