package tmmbn

import (
	"github.com/pion/rtcp"
)

// writeHeader writes the common RTCP header at buf[*index:] and advances index.
//
// count carries the feedback message type (FMT) for feedback packets and
// length is the packet size in 32-bit words minus one.
func writeHeader(count uint8, packetType rtcp.PacketType, length uint16, buf []byte, index *int) error {
	h := rtcp.Header{
		Count:  count,
		Type:   packetType,
		Length: length,
	}
	raw, err := h.Marshal()
	if err != nil {
		return err
	}
	*index += copy(buf[*index:], raw)
	return nil
}
