// Package buf implements baldaquin's buffered acquisition pipeline: a
// bounded, concurrent packet queue with time- and size-triggered flushing
// to a fan-out of typed sinks.
package buf

import (
	"os"

	"github.com/lucabaldini/baldaquin/errors"
	"github.com/lucabaldini/baldaquin/pkt"
)

// WriteMode selects how a Sink renders a packet to disk.
type WriteMode int

const (
	// Binary writes a packet's raw payload (the canonical sink always uses
	// this mode).
	Binary WriteMode = iota
	// Text writes the output of a Sink's Projection function, expected to
	// already be human-readable bytes.
	Text
)

// Projection renders a packet into the bytes a non-canonical sink writes;
// the canonical sink uses the identity rendering (its packet's own
// payload) and carries a nil Projection.
type Projection func(pkt.Packet) []byte

// Sink is one named destination a Buffer fans out to: a file path, a write
// mode, and an optional projection. The zero value is not usable; build
// one with NewSink.
type Sink struct {
	Path       string
	Mode       WriteMode
	Projection Projection
	Header     []byte

	path string
	// wrap, when non-nil, interposes a flushWriter (e.g. a flate.Writer)
	// between the sink's rendered bytes and the append-mode file handle.
	// Set only by NewCompressedProjectionSink.
	wrap func(*os.File) (flushWriter, error)
}

// NewSink creates the file at path and, if non-nil, writes header to it
// immediately. It fails with FileExists if path already exists: sinks
// never overwrite. The file handle is closed once the header is written;
// subsequent writes reopen it on demand in append mode.
func NewSink(path string, mode WriteMode, projection Projection, header []byte) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.E(errors.FileExists, path)
		}
		return nil, err
	}
	if len(header) > 0 {
		if _, err := f.Write(header); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, err
		}
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return &Sink{Path: path, Mode: mode, Projection: projection, Header: header, path: path}, nil
}

// IsCanonical reports whether s is a canonical (non-projecting) sink.
func (s *Sink) IsCanonical() bool {
	return s.Projection == nil
}

// render returns the bytes that should be written for packet p: its raw
// payload for a canonical sink, or the sink's projection otherwise.
func (s *Sink) render(p pkt.Packet) []byte {
	if s.IsCanonical() {
		return p.Payload()
	}
	return s.Projection(p)
}

// writer holds a sink's file open across a single flush pass, so that a
// flush appends once rather than reopening per packet.
type writer struct {
	sink *Sink
	f    *os.File
	fw   flushWriter
}

func openWriter(s *Sink) (*writer, error) {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	w := &writer{sink: s, f: f}
	if s.wrap != nil {
		fw, err := s.wrap(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		w.fw = fw
	}
	return w, nil
}

func (w *writer) write(p pkt.Packet) (int, error) {
	b := w.sink.render(p)
	if w.fw != nil {
		return w.fw.Write(b)
	}
	return w.f.Write(b)
}

func (w *writer) close() error {
	if w.fw != nil {
		if err := w.fw.Close(); err != nil {
			w.f.Close()
			return err
		}
	}
	return w.f.Close()
}
