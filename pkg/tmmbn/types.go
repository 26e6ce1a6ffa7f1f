// Package tmmbn builds RTCP Temporary Maximum Media Stream Bit Rate
// Notification (TMMBN) feedback packets as defined in RFC 5104, section 4.2.2.
//
// A media sender answers TMMBR requests with a TMMBN that lists the current
// bounding set: the (bitrate, overhead) tuples that together limit its media
// rate. This package quantizes those tuples, lays them out on the wire and
// cooperates with a caller-owned datagram buffer that may already carry other
// RTCP packets.
package tmmbn

import (
	"errors"

	"github.com/pion/rtcp"
)

const (
	// MaxEntries is the maximum number of FCI entries one TMMBN may carry.
	MaxEntries = 50

	// MaxOverhead is the largest value the 9-bit measured overhead field holds.
	MaxOverhead = 0x1ff

	// MaxPacketSize bounds scratch buffers allocated by Build.
	MaxPacketSize = 1500

	// MantissaBits is the width of the MxTBR mantissa.
	MantissaBits = 17

	headerLength = 4
	ssrcLength   = 4
	entryLength  = 8

	formatTMMBR = 3
	formatTMMBN = 4

	// unusedMediaSSRC fills the "SSRC of media source" field, which RFC 5104
	// requires to be zero for TMMBR and TMMBN.
	unusedMediaSSRC = 0

	typeRTPFB = rtcp.TypeTransportSpecificFeedback
)

var (
	// ErrTooManyEntries is returned by AddEntry once MaxEntries entries are held.
	ErrTooManyEntries = errors.New("tmmbn: max number of entries reached")

	// ErrBufferFull is returned by Create when the buffer-full handler could
	// not make room for the packet.
	ErrBufferFull = errors.New("tmmbn: buffer full")

	// ErrPacketTooLarge is returned when a packet does not fit even into an
	// empty buffer.
	ErrPacketTooLarge = errors.New("tmmbn: packet larger than max length")

	// ErrPacketTooShort is returned when a TMMBR buffer is truncated.
	ErrPacketTooShort = errors.New("tmmbn: packet too short")

	// ErrWrongType is returned when parsing something that is not a TMMBR.
	ErrWrongType = errors.New("tmmbn: wrong packet type")

	// ErrBadLength is returned when the header length disagrees with the FCI.
	ErrBadLength = errors.New("tmmbn: invalid length")
)

// Entry is one acknowledged bandwidth limit.
type Entry struct {
	// SSRC identifies the owner of the tuple, i.e. the sender of the TMMBR
	// that introduced it.
	SSRC uint32

	// BitrateKbps is the maximum total media bitrate in kbit/s.
	BitrateKbps uint32

	// Overhead is the measured per-packet overhead in bytes, 0..MaxOverhead.
	Overhead uint16
}
