// Package mock provides a self-contained demo application: a fake counting
// source, a fixed-layout packet type, and a UserApplication wiring them
// through an event.Handler under a runctrl.FSM. It exists to exercise the
// full run-control lifecycle end to end without any real hardware.
package mock

import (
	"github.com/lucabaldini/baldaquin/pkt"
)

// samplePacket is a 7-byte big-endian packet: a header magic, a 4-byte
// sample counter and a 2-byte fake ADC reading.
type samplePacket struct {
	pkt.Base
	Counter uint32
	Value   uint16
}

var sampleDescriptor = pkt.MustNewDescriptor(pkt.BigEndian,
	pkt.Field{Name: "header", Format: pkt.Uint8, Expect: uint64(0xCA)},
	pkt.Field{Name: "counter", Format: pkt.Uint32},
	pkt.Field{Name: "value", Format: pkt.Uint16},
)

func newSamplePacket(counter uint32, value uint16) (*samplePacket, error) {
	payload, err := sampleDescriptor.Pack([]interface{}{uint64(0xCA), uint64(counter), uint64(value)})
	if err != nil {
		return nil, err
	}
	p := &samplePacket{Counter: counter, Value: value}
	p.SetPayload(payload)
	return p, nil
}

func decodeSamplePacket(data []byte) (pkt.Packet, error) {
	values, err := sampleDescriptor.Unpack(data)
	if err != nil {
		return nil, err
	}
	p := &samplePacket{
		Counter: uint32(values[1].(uint64)),
		Value:   uint16(values[2].(uint64)),
	}
	p.SetPayload(append([]byte(nil), data...))
	return p, nil
}
