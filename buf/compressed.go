package buf

import (
	"os"

	"github.com/klauspost/compress/flate"

	"github.com/lucabaldini/baldaquin/errors"
)

// NewCompressedProjectionSink returns a projection sink whose rendered
// bytes are flate-compressed before being appended to path, adapting the
// transformer idea from recordio's block compression to baldaquin's
// unframed sinks: every flush reopens the file, wraps it in a fresh flate
// writer, and closes the writer (flushing its trailer) before the
// underlying file is closed. It is never used for the canonical sink: the
// external-interface contract for the canonical file is an exact,
// uncompressed byte-for-byte record stream.
//
// level is a flate compression level as accepted by flate.NewWriter
// (flate.DefaultCompression if zero).
func NewCompressedProjectionSink(path string, projection Projection, header []byte, level int) (*Sink, error) {
	if level == 0 {
		level = flate.DefaultCompression
	}
	return newSinkWithWriter(path, projection, header, func(f *os.File) (flushWriter, error) {
		return flate.NewWriter(f, level)
	})
}

// flushWriter is satisfied by any writer that must be explicitly closed to
// flush trailing compressed bytes; *flate.Writer implements it.
type flushWriter interface {
	Write(p []byte) (int, error)
	Close() error
}

// newSinkWithWriter is a variant of NewSink whose append-mode writes pass
// through an intermediate flushWriter (e.g. a flate.Writer) rather than
// going straight to the file. The sink file itself is still created with
// O_EXCL so the non-overwrite invariant holds identically to NewSink.
func newSinkWithWriter(path string, projection Projection, header []byte, wrap func(*os.File) (flushWriter, error)) (*Sink, error) {
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
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return &Sink{Path: path, Mode: Text, Projection: projection, Header: header, path: path, wrap: wrap}, nil
}
