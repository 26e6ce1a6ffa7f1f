package tmmbn

import (
	"fmt"
	"strings"

	"github.com/pion/logging"

	"github.com/thesyncim/tmmbn/pkg/tmmbn/internal/byteio"
)

// TMMBN accumulates the entries of one Temporary Maximum Media Stream Bit Rate
// Notification and serializes them.
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|V=2|P|  FMT=4  |   PT = 205    |          length               |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|                  SSRC of packet sender                        |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|                  SSRC of media source (unused) = 0            |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|                              SSRC                             |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	| MxTBR Exp |  MxTBR Mantissa                 |Measured Overhead|
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|  ...                                                          |
//
// The zero value is ready to use. A TMMBN is not safe for concurrent use.
type TMMBN struct {
	// SenderSSRC is the SSRC of the media sender issuing the notification.
	SenderSSRC uint32

	entries []Entry
	log     logging.LeveledLogger
}

// Option configures a TMMBN created with NewTMMBN.
type Option func(*TMMBN)

// WithLoggerFactory sets the factory the builder takes its "tmmbn" logger from.
func WithLoggerFactory(f logging.LoggerFactory) Option {
	return func(p *TMMBN) {
		p.log = f.NewLogger("tmmbn")
	}
}

// NewTMMBN creates an empty notification from senderSSRC.
func NewTMMBN(senderSSRC uint32, opts ...Option) *TMMBN {
	p := &TMMBN{SenderSSRC: senderSSRC}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *TMMBN) logger() logging.LeveledLogger {
	if p.log == nil {
		p.log = logging.NewDefaultLoggerFactory().NewLogger("tmmbn")
	}
	return p.log
}

// AddEntry appends a bounding-set tuple owned by ssrc.
//
// Entries are written in the order they were added. Once MaxEntries entries
// are held, AddEntry logs a warning and returns ErrTooManyEntries without
// changing the packet. overhead must fit the 9-bit field; larger values are a
// programming error and panic.
func (p *TMMBN) AddEntry(ssrc, bitrateKbps uint32, overhead uint16) error {
	if overhead > MaxOverhead {
		panic(fmt.Sprintf("tmmbn: overhead %d exceeds %d", overhead, MaxOverhead))
	}
	if len(p.entries) >= MaxEntries {
		p.logger().Warnf("Max TMMBN size reached, dropping entry for ssrc %d", ssrc)
		return ErrTooManyEntries
	}
	p.entries = append(p.entries, Entry{
		SSRC:        ssrc,
		BitrateKbps: bitrateKbps,
		Overhead:    overhead,
	})
	return nil
}

// Entries returns a copy of the entries in wire order.
func (p *TMMBN) Entries() []Entry {
	return append([]Entry(nil), p.entries...)
}

// Reset drops all entries so the builder can be reused for a new notification.
func (p *TMMBN) Reset() {
	p.entries = p.entries[:0]
}

// BlockLength returns the size of the serialized packet in bytes.
func (p *TMMBN) BlockLength() int {
	return headerLength + 2*ssrcLength + len(p.entries)*entryLength
}

// headerLengthWords is the RTCP length field: 2 + 2N 32-bit words.
func (p *TMMBN) headerLengthWords() uint16 {
	return uint16((p.BlockLength() - headerLength) / 4) //nolint:gosec // at most 2+2*MaxEntries
}

// Create writes the packet at buf[*index:] and advances index.
//
// While the packet does not fit below maxLength, handler is asked to flush
// the buffer. If it fails, Create returns an error wrapping ErrBufferFull,
// nothing of this packet has been written and the entries are untouched, so
// the call can be retried. maxLength must not exceed len(buf); a larger
// value panics.
func (p *TMMBN) Create(buf []byte, index *int, maxLength int, handler BufferFullHandler) error {
	if maxLength > len(buf) {
		panic(fmt.Sprintf("tmmbn: max length %d exceeds buffer size %d", maxLength, len(buf)))
	}

	for *index+p.BlockLength() > maxLength {
		if err := handler.OnBufferFull(buf, index); err != nil {
			return fmt.Errorf("%w: %w", ErrBufferFull, err)
		}
	}

	if err := writeHeader(formatTMMBN, typeRTPFB, p.headerLengthWords(), buf, index); err != nil {
		return err
	}

	byteio.WriteUint32(buf, index, p.SenderSSRC)
	byteio.WriteUint32(buf, index, unusedMediaSSRC)
	for _, e := range p.entries {
		writeEntry(e, buf, index)
	}
	return nil
}

// Marshal returns the packet in a buffer of exactly BlockLength bytes.
func (p *TMMBN) Marshal() ([]byte, error) {
	return Marshal(p)
}

// writeEntry serializes one 8-byte FCI entry.
//
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|                              SSRC                             |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	| MxTBR Exp |  MxTBR Mantissa                 |Measured Overhead|
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
func writeEntry(e Entry, buf []byte, index *int) {
	// kbps*1000 stays below 2^42, well inside a 17-bit mantissa with a 6-bit
	// exponent, so ok is always true here.
	q, _ := Quantize(uint64(e.BitrateKbps)*1000, MantissaBits)

	byteio.WriteUint32(buf, index, e.SSRC)
	byteio.WriteUint8(buf, index, q.Exponent<<2|uint8(q.Mantissa>>15)&0x03)
	byteio.WriteUint8(buf, index, uint8(q.Mantissa>>7))
	byteio.WriteUint8(buf, index, uint8(q.Mantissa<<1)|uint8(e.Overhead>>8)&0x01)
	byteio.WriteUint8(buf, index, uint8(e.Overhead))
}

// DestinationSSRC returns the owners of the entries.
func (p *TMMBN) DestinationSSRC() []uint32 {
	ssrcs := make([]uint32, len(p.entries))
	for i, e := range p.entries {
		ssrcs[i] = e.SSRC
	}
	return ssrcs
}

// String prints the notification in a human-readable format.
func (p *TMMBN) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "TMMBN from %x:\n", p.SenderSSRC)
	for i, e := range p.entries {
		fmt.Fprintf(&sb, " entry %d: owner=%x, bitrate=%d kb/s, overhead=%d\n", i, e.SSRC, e.BitrateKbps, e.Overhead)
	}
	return sb.String()
}
