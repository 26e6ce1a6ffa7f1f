package tmmbn

import (
	"fmt"
)

// Packet is an RTCP packet that can serialize itself into a shared buffer.
type Packet interface {
	// BlockLength returns the serialized size in bytes, header included.
	BlockLength() int

	// Create writes the packet at buf[*index:] and advances index. Whenever
	// *index + BlockLength() exceeds maxLength, handler is asked to make room
	// first.
	Create(buf []byte, index *int, maxLength int, handler BufferFullHandler) error
}

// BufferFullHandler frees space in a datagram buffer that is too full to hold
// the next packet.
//
// OnBufferFull is called with the buffer and the current write offset. On
// success it must have lowered *index, usually by sending buf[:*index] and
// resetting it to 0. A non-nil error aborts the packet being built.
type BufferFullHandler interface {
	OnBufferFull(buf []byte, index *int) error
}

// BufferFullFunc adapts a function to BufferFullHandler.
type BufferFullFunc func(buf []byte, index *int) error

// OnBufferFull calls f(buf, index).
func (f BufferFullFunc) OnBufferFull(buf []byte, index *int) error {
	return f(buf, index)
}

// PacketReadyFunc receives a completed datagram. The slice is only valid for
// the duration of the call.
type PacketReadyFunc func(packet []byte)

// FlushTo returns a BufferFullHandler that hands the pending bytes to ready
// and rewinds the buffer. An empty buffer cannot be flushed, which means the
// packet is larger than the buffer itself; that yields ErrPacketTooLarge.
func FlushTo(ready PacketReadyFunc) BufferFullHandler {
	return BufferFullFunc(func(buf []byte, index *int) error {
		if *index == 0 {
			return ErrPacketTooLarge
		}
		ready(buf[:*index])
		*index = 0
		return nil
	})
}

// Build serializes p into a scratch buffer of maxLength bytes and delivers
// every completed datagram to ready. maxLength is capped at MaxPacketSize.
func Build(p Packet, maxLength int, ready PacketReadyFunc) error {
	if maxLength > MaxPacketSize {
		maxLength = MaxPacketSize
	}
	return BuildInto(p, make([]byte, maxLength), ready)
}

// BuildInto is Build with a caller-owned buffer. The whole of buf is usable.
func BuildInto(p Packet, buf []byte, ready PacketReadyFunc) error {
	index := 0
	if err := p.Create(buf, &index, len(buf), FlushTo(ready)); err != nil {
		return err
	}
	if index > 0 {
		ready(buf[:index])
	}
	return nil
}

// Marshal serializes p into a buffer of exactly p.BlockLength() bytes.
func Marshal(p Packet) ([]byte, error) {
	size := p.BlockLength()
	buf := make([]byte, size)
	index := 0

	err := p.Create(buf, &index, size, BufferFullFunc(func([]byte, *int) error {
		return ErrPacketTooLarge
	}))
	if err != nil {
		return nil, err
	}
	if index != size {
		return nil, fmt.Errorf("%w: wrote %d of %d bytes", ErrBadLength, index, size)
	}
	return buf, nil
}

// Compound is a sequence of packets written back to back. Each packet checks
// for space on its own, so a compound larger than one datagram is split on
// packet boundaries by the buffer-full handler.
type Compound struct {
	packets []Packet
}

// Append adds p after the packets already in c.
func (c *Compound) Append(p Packet) {
	c.packets = append(c.packets, p)
}

// Len returns the number of appended packets.
func (c *Compound) Len() int {
	return len(c.packets)
}

// BlockLength returns the summed size of all appended packets.
func (c *Compound) BlockLength() int {
	n := 0
	for _, p := range c.packets {
		n += p.BlockLength()
	}
	return n
}

// Create writes every appended packet in order.
func (c *Compound) Create(buf []byte, index *int, maxLength int, handler BufferFullHandler) error {
	for _, p := range c.packets {
		if err := p.Create(buf, index, maxLength, handler); err != nil {
			return err
		}
	}
	return nil
}
