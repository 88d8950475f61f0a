package buf_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lucabaldini/baldaquin/buf"
	"github.com/lucabaldini/baldaquin/errors"
	"github.com/lucabaldini/baldaquin/pkt"
)

// fakePacket is a minimal pkt.Packet used to exercise the buffer without
// depending on a concrete descriptor-backed packet type.
type fakePacket struct {
	pkt.Base
}

func newFake(ms, adc int) *fakePacket {
	p := &fakePacket{}
	p.SetPayload([]byte(fmt.Sprintf("%03d,%03d\n", ms, adc)[:7]))
	return p
}

func textProjection(p pkt.Packet) []byte {
	fp := p.(*fakePacket)
	return fp.Payload()
}

func TestFanOutFlush(t *testing.T) {
	dir := t.TempDir()
	b, err := buf.NewFIFO(10, 5, 60*time.Second)
	if err != nil {
		t.Fatalf("NewFIFO: %v", err)
	}
	canonical, err := buf.NewSink(filepath.Join(dir, "data.dat"), buf.Binary, nil, nil)
	if err != nil {
		t.Fatalf("NewSink canonical: %v", err)
	}
	if err := b.AddSink(canonical); err != nil {
		t.Fatalf("AddSink canonical: %v", err)
	}
	projection, err := buf.NewSink(filepath.Join(dir, "data.txt"), buf.Text, textProjection, []byte("# header\n"))
	if err != nil {
		t.Fatalf("NewSink projection: %v", err)
	}
	if err := b.AddSink(projection); err != nil {
		t.Fatalf("AddSink projection: %v", err)
	}

	packets := []*fakePacket{newFake(100, 1), newFake(200, 2), newFake(300, 3)}
	for _, p := range packets {
		if err := b.Put(p); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	n, nbytes, err := b.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if n != 3 {
		t.Fatalf("Flush n = %d, want 3", n)
	}
	if nbytes != 21 {
		t.Fatalf("Flush bytes = %d, want 21", nbytes)
	}
	if got := b.Size(); got != 0 {
		t.Fatalf("Size() = %d, want 0", got)
	}

	dat, err := os.ReadFile(filepath.Join(dir, "data.dat"))
	if err != nil {
		t.Fatalf("read data.dat: %v", err)
	}
	if len(dat) != 21 {
		t.Fatalf("data.dat has %d bytes, want 21", len(dat))
	}
	txt, err := os.ReadFile(filepath.Join(dir, "data.txt"))
	if err != nil {
		t.Fatalf("read data.txt: %v", err)
	}
	if len(txt) != len("# header\n")+21 {
		t.Fatalf("data.txt has %d bytes, want %d", len(txt), len("# header\n")+21)
	}
}

func TestFlushNeededByWatermark(t *testing.T) {
	b, err := buf.NewFIFO(10, 5, 60*time.Second)
	if err != nil {
		t.Fatalf("NewFIFO: %v", err)
	}
	for i := 0; i < 4; i++ {
		if err := b.Put(newFake(i, i)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if b.FlushNeeded() {
		t.Fatalf("FlushNeeded() = true after 4 packets, want false")
	}
	if err := b.Put(newFake(5, 5)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !b.FlushNeeded() {
		t.Fatalf("FlushNeeded() = false after 5 packets, want true")
	}
}

func TestBufferSizingError(t *testing.T) {
	_, err := buf.NewFIFO(5, 5, time.Second)
	if !errors.Is(errors.BufferSizingError, err) {
		t.Fatalf("expected BufferSizingError, got %v", err)
	}
}

func TestFirstSinkMustBeCanonical(t *testing.T) {
	dir := t.TempDir()
	b, err := buf.NewFIFO(10, 5, time.Minute)
	if err != nil {
		t.Fatalf("NewFIFO: %v", err)
	}
	projection, err := buf.NewSink(filepath.Join(dir, "data.txt"), buf.Text, textProjection, nil)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	if err := b.AddSink(projection); !errors.Is(errors.FirstSinkMustBeCanonical, err) {
		t.Fatalf("expected FirstSinkMustBeCanonical, got %v", err)
	}
	canonical, err := buf.NewSink(filepath.Join(dir, "data.dat"), buf.Binary, nil, nil)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	if err := b.AddSink(canonical); err != nil {
		t.Fatalf("AddSink canonical: %v", err)
	}
	if err := b.AddSink(projection); err != nil {
		t.Fatalf("AddSink projection after canonical: %v", err)
	}
}

func TestFlushNoSinks(t *testing.T) {
	b, err := buf.NewFIFO(10, 5, time.Minute)
	if err != nil {
		t.Fatalf("NewFIFO: %v", err)
	}
	if err := b.Put(newFake(1, 1)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	_, _, err = b.Flush()
	if !errors.Is(errors.NoSinks, err) {
		t.Fatalf("expected NoSinks, got %v", err)
	}
}

func TestSinkNonOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.dat")
	if _, err := buf.NewSink(path, buf.Binary, nil, nil); err != nil {
		t.Fatalf("first NewSink: %v", err)
	}
	_, err := buf.NewSink(path, buf.Binary, nil, nil)
	if !errors.Is(errors.FileExists, err) {
		t.Fatalf("expected FileExists, got %v", err)
	}
}

func TestCircularOverwritesOldest(t *testing.T) {
	b, err := buf.NewCircular(3, 2, time.Minute)
	if err != nil {
		t.Fatalf("NewCircular: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := b.Put(newFake(i, i)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if got := b.Size(); got != 3 {
		t.Fatalf("Size() = %d, want 3 (ring capacity)", got)
	}
}
