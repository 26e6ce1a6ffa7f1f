package tmmbn

import (
	"encoding/binary"
	"fmt"

	"github.com/pion/rtcp"
)

// Request is a parsed Temporary Maximum Media Stream Bit Rate Request
// (RFC 5104, section 4.2.1). A media sender answers it with a TMMBN.
type Request struct {
	// SenderSSRC is the requester and becomes the owner of every tuple the
	// request introduces.
	SenderSSRC uint32

	Entries []RequestEntry
}

// RequestEntry is one TMMBR FCI entry.
type RequestEntry struct {
	// MediaSSRC is the media sender the limit is requested from.
	MediaSSRC uint32

	// Bitrate is the requested maximum total media bitrate.
	Bitrate Quantized

	// Overhead is the requester's measured per-packet overhead in bytes.
	Overhead uint16
}

// ParseTMMBR decodes a single TMMBR packet. raw may be longer than the packet;
// trailing bytes are ignored.
func ParseTMMBR(raw []byte) (*Request, error) {
	if len(raw) < headerLength+2*ssrcLength {
		return nil, ErrPacketTooShort
	}

	var h rtcp.Header
	if err := h.Unmarshal(raw); err != nil {
		return nil, err
	}
	if h.Type != typeRTPFB || h.Count != formatTMMBR {
		return nil, fmt.Errorf("%w: type=%d fmt=%d", ErrWrongType, h.Type, h.Count)
	}

	size := (int(h.Length) + 1) * 4
	if len(raw) < size {
		return nil, ErrPacketTooShort
	}
	fci := size - headerLength - 2*ssrcLength
	if fci < 0 || fci%entryLength != 0 {
		return nil, ErrBadLength
	}

	req := &Request{
		SenderSSRC: binary.BigEndian.Uint32(raw[headerLength:]),
		Entries:    make([]RequestEntry, 0, fci/entryLength),
	}
	for offset := headerLength + 2*ssrcLength; offset < size; offset += entryLength {
		req.Entries = append(req.Entries, parseRequestEntry(raw[offset:offset+entryLength]))
	}
	return req, nil
}

func parseRequestEntry(b []byte) RequestEntry {
	return RequestEntry{
		MediaSSRC: binary.BigEndian.Uint32(b[0:4]),
		Bitrate: Quantized{
			Exponent: b[4] >> 2,
			Mantissa: uint32(b[4]&0x03)<<15 | uint32(b[5])<<7 | uint32(b[6]>>1),
		},
		Overhead: uint16(b[6]&0x01)<<8 | uint16(b[7]),
	}
}

// IsTMMBR reports whether h describes a TMMBR packet.
func IsTMMBR(h rtcp.Header) bool {
	return h.Type == typeRTPFB && h.Count == formatTMMBR
}
