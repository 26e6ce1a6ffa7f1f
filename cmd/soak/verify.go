package main

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pion/rtcp"

	"github.com/thesyncim/tmmbn/pkg/tmmbn"
)

var errUnexpectedNotification = errors.New("unexpected notification")

// verifier decodes datagrams and checks the notifications in them against
// the entries they were built from, in order.
type verifier struct {
	expected [][]tmmbn.Entry
}

func (v *verifier) reset(expected [][]tmmbn.Entry) {
	v.expected = expected
}

// done fails if a notification was never seen in any datagram.
func (v *verifier) done() error {
	if len(v.expected) > 0 {
		return fmt.Errorf("%d notifications missing from output", len(v.expected))
	}
	return nil
}

func (v *verifier) verify(datagram []byte) error {
	pkts, err := rtcp.Unmarshal(datagram)
	if err != nil {
		return fmt.Errorf("datagram does not parse: %w", err)
	}

	for _, pkt := range pkts {
		raw, ok := pkt.(*rtcp.RawPacket)
		if !ok {
			continue
		}
		h := raw.Header()
		if h.Type != rtcp.TypeTransportSpecificFeedback || h.Count != 4 {
			continue
		}
		if len(v.expected) == 0 {
			return errUnexpectedNotification
		}
		want := v.expected[0]
		v.expected = v.expected[1:]
		if err := checkEntries(*raw, want); err != nil {
			return err
		}
	}
	return nil
}

func checkEntries(raw []byte, want []tmmbn.Entry) error {
	const fixed = 12
	if got := (len(raw) - fixed) / 8; got != len(want) {
		return fmt.Errorf("notification carries %d entries, want %d", got, len(want))
	}

	for k, e := range want {
		b := raw[fixed+8*k:]
		ssrc := binary.BigEndian.Uint32(b)
		exp := b[4] >> 2
		mantissa := uint64(b[4]&0x03)<<15 | uint64(b[5])<<7 | uint64(b[6])>>1
		overhead := uint16(b[6]&0x01)<<8 | uint16(b[7])

		q, ok := tmmbn.Quantize(uint64(e.BitrateKbps)*1000, tmmbn.MantissaBits)
		if !ok {
			return fmt.Errorf("entry %d: bitrate %d kbps does not quantize", k, e.BitrateKbps)
		}
		if ssrc != e.SSRC || overhead != e.Overhead || mantissa<<exp != q.Value() {
			return fmt.Errorf("entry %d: got ssrc=%x bitrate=%d overhead=%d, want ssrc=%x bitrate=%d overhead=%d",
				k, ssrc, mantissa<<exp, overhead, e.SSRC, q.Value(), e.Overhead)
		}
	}
	return nil
}
