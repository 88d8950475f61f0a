package pkt_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/lucabaldini/baldaquin/errors"
	"github.com/lucabaldini/baldaquin/pkt"
)

// samplePacket mirrors the 7-byte big-endian scenario from the core
// testable properties: a 1-byte header magic, a 4-byte millisecond
// timestamp and a 2-byte ADC reading, plus a derived seconds field.
type samplePacket struct {
	pkt.Base
	Header  uint8
	Ms      uint32
	Adc     uint16
	Seconds float64
}

var sampleDescriptor = pkt.MustNewDescriptor(pkt.BigEndian,
	pkt.Field{Name: "header", Format: pkt.Uint8, Expect: uint64(0xAA)},
	pkt.Field{Name: "ms", Format: pkt.Uint32},
	pkt.Field{Name: "adc", Format: pkt.Uint16},
)

func newSamplePacket(ms uint32, adc uint16) (*samplePacket, error) {
	payload, err := sampleDescriptor.Pack([]interface{}{uint64(0xAA), uint64(ms), uint64(adc)})
	if err != nil {
		return nil, err
	}
	p := &samplePacket{Header: 0xAA, Ms: ms, Adc: adc}
	p.SetPayload(payload)
	p.Seconds = float64(p.Ms) / 1000
	return p, nil
}

func unpackSamplePacket(data []byte) (*samplePacket, error) {
	values, err := sampleDescriptor.Unpack(data)
	if err != nil {
		return nil, err
	}
	p := &samplePacket{
		Header: uint8(values[0].(uint64)),
		Ms:     uint32(values[1].(uint64)),
		Adc:    uint16(values[2].(uint64)),
	}
	p.SetPayload(append([]byte(nil), data...))
	p.Seconds = float64(p.Ms) / 1000
	return p, nil
}

func TestRoundTripBigEndianPacket(t *testing.T) {
	p, err := newSamplePacket(1000, 127)
	if err != nil {
		t.Fatalf("newSamplePacket: %v", err)
	}
	want := []byte{0xAA, 0x00, 0x00, 0x03, 0xE8, 0x00, 0x7F}
	if diff := cmp.Diff(want, p.Payload()); diff != "" {
		t.Fatalf("unexpected payload (-want +got):\n%s", diff)
	}
	if got, want := sampleDescriptor.Size(), 7; got != want {
		t.Fatalf("Size() = %d, want %d", got, want)
	}

	unpacked, err := unpackSamplePacket(p.Payload())
	if err != nil {
		t.Fatalf("unpackSamplePacket: %v", err)
	}
	if diff := cmp.Diff(p, unpacked, cmpopts.IgnoreUnexported(pkt.Base{})); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	if unpacked.Seconds != 1.0 {
		t.Fatalf("Seconds = %v, want 1.0", unpacked.Seconds)
	}
}

func TestHeaderMismatch(t *testing.T) {
	data := []byte{0xAB, 0x00, 0x00, 0x03, 0xE8, 0x00, 0x7F}
	original := append([]byte(nil), data...)
	_, err := unpackSamplePacket(data)
	if !errors.Is(errors.FieldMismatch, err) {
		t.Fatalf("expected FieldMismatch, got %v", err)
	}
	if diff := cmp.Diff(original, data); diff != "" {
		t.Fatalf("input bytes were mutated (-want +got):\n%s", diff)
	}
}

func TestSizeMismatch(t *testing.T) {
	_, err := unpackSamplePacket([]byte{0xAA, 0x00})
	if !errors.Is(errors.SizeMismatch, err) {
		t.Fatalf("expected SizeMismatch, got %v", err)
	}
}

func TestPacketFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.dat")
	wf, err := pkt.Create[*samplePacket](path, sampleDescriptor.Size(), unpackSamplePacket)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	var written []*samplePacket
	for i := uint32(0); i < 5; i++ {
		p, err := newSamplePacket(100*(i+1), uint16(i+1))
		if err != nil {
			t.Fatalf("newSamplePacket: %v", err)
		}
		if _, err := wf.Write(p); err != nil {
			t.Fatalf("Write: %v", err)
		}
		written = append(written, p)
	}
	if err := wf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rf, err := pkt.Open[*samplePacket](path, sampleDescriptor.Size(), unpackSamplePacket)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rf.Close()
	got, err := rf.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if diff := cmp.Diff(written, got, cmpopts.IgnoreUnexported(pkt.Base{})); diff != "" {
		t.Fatalf("file round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPacketFileTruncated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.dat")
	wf, err := pkt.Create[*samplePacket](path, sampleDescriptor.Size(), unpackSamplePacket)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	p, _ := newSamplePacket(100, 1)
	wf.Write(p)
	wf.Close()

	// Truncate the file by one byte to simulate a partial trailing record.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if err := os.WriteFile(path, data[:len(data)-1], 0o644); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	rf, err := pkt.Open[*samplePacket](path, sampleDescriptor.Size(), unpackSamplePacket)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rf.Close()
	_, err = rf.Next()
	if !errors.Is(errors.TruncatedFile, err) {
		t.Fatalf("expected TruncatedFile, got %v", err)
	}
}
