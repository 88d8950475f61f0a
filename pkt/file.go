package pkt

import (
	"fmt"
	"io"
	"os"

	"github.com/lucabaldini/baldaquin/errors"
)

// Decoder turns a fixed-size byte record into a packet instance of type T.
// It is typically a thin wrapper around a Descriptor's Unpack plus the
// packet type's derived-field post-initialization.
type Decoder[T Packet] func([]byte) (T, error)

// PacketFile is an append-only, iterable container of a single packet
// type, parameterized by T so that the packet class need not be passed as
// a runtime value (see the generic-container design note). It is not safe
// for concurrent use by multiple goroutines.
type PacketFile[T Packet] struct {
	f      *os.File
	size   int
	decode Decoder[T]
}

// Create opens a new packet file for writing. It fails with FileExists if
// path already exists, matching the sink non-overwrite invariant used
// throughout the core.
func Create[T Packet](path string, size int, decode Decoder[T]) (*PacketFile[T], error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.E(errors.FileExists, path)
		}
		return nil, err
	}
	return &PacketFile[T]{f: f, size: size, decode: decode}, nil
}

// Open opens an existing packet file for reading.
func Open[T Packet](path string, size int, decode Decoder[T]) (*PacketFile[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &PacketFile[T]{f: f, size: size, decode: decode}, nil
}

// Write appends a packet's payload to the file.
func (pf *PacketFile[T]) Write(p T) (int, error) {
	return pf.f.Write(p.Payload())
}

// Next reads and decodes the next packet in the file. It returns io.EOF
// when the file is exhausted on a record boundary, and TruncatedFile if a
// partial record (0 < n < size) is found at the end of the file.
func (pf *PacketFile[T]) Next() (T, error) {
	var zero T
	buf := make([]byte, pf.size)
	n, err := io.ReadFull(pf.f, buf)
	switch {
	case err == io.EOF:
		return zero, io.EOF
	case err == io.ErrUnexpectedEOF:
		return zero, errors.E(errors.TruncatedFile, fmt.Sprintf("read %d of %d bytes", n, pf.size))
	case err != nil:
		return zero, err
	}
	return pf.decode(buf)
}

// ReadAll drains the remainder of the file into an in-memory slice, in
// file order.
func (pf *PacketFile[T]) ReadAll() ([]T, error) {
	var packets []T
	for {
		p, err := pf.Next()
		if err == io.EOF {
			return packets, nil
		}
		if err != nil {
			return packets, err
		}
		packets = append(packets, p)
	}
}

// Close releases the underlying file handle.
func (pf *PacketFile[T]) Close() error {
	return pf.f.Close()
}
