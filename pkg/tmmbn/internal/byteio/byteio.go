// Package byteio writes fixed-width fields into RTCP packet buffers at a
// tracked offset.
//
// None of the writers check bounds. Callers size the buffer up front from the
// packet's block length and only then start writing.
package byteio

import "encoding/binary"

// WriteUint8 writes v at buf[*offset] and advances offset by 1.
func WriteUint8(buf []byte, offset *int, v uint8) {
	buf[*offset] = v
	*offset++
}

// WriteUint32 writes v in network byte order at buf[*offset:] and advances
// offset by 4.
func WriteUint32(buf []byte, offset *int, v uint32) {
	binary.BigEndian.PutUint32(buf[*offset:], v)
	*offset += 4
}
