package tmmbn

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeEntry reads one 8-byte FCI entry back into its fields.
func decodeEntry(b []byte) (ssrc uint32, q Quantized, overhead uint16) {
	ssrc = binary.BigEndian.Uint32(b[0:4])
	q.Exponent = b[4] >> 2
	q.Mantissa = uint32(b[4]&0x03)<<15 | uint32(b[5])<<7 | uint32(b[6]>>1)
	overhead = uint16(b[6]&0x01)<<8 | uint16(b[7])
	return ssrc, q, overhead
}

func newTestLoggerFactory(buf *bytes.Buffer) *logging.DefaultLoggerFactory {
	return &logging.DefaultLoggerFactory{
		Writer:          buf,
		DefaultLogLevel: logging.LogLevelWarn,
		ScopeLevels:     map[string]logging.LogLevel{},
	}
}

func TestTMMBN_MarshalSingleEntry(t *testing.T) {
	p := NewTMMBN(0x12345678)
	require.NoError(t, p.AddEntry(0x11223344, 1000, 40))

	out, err := p.Marshal()
	require.NoError(t, err)

	// 1000 kbps -> 1000000 bps -> exp=3, mantissa=125000
	expected := []byte{
		0x84, 0xCD, 0x00, 0x04, // V=2, FMT=4, PT=205, length=4
		0x12, 0x34, 0x56, 0x78, // sender SSRC
		0x00, 0x00, 0x00, 0x00, // media SSRC, always 0
		0x11, 0x22, 0x33, 0x44, 0x0F, 0xD0, 0x90, 0x28,
	}
	assert.Equal(t, expected, out)
}

func TestTMMBN_MarshalMultipleEntries(t *testing.T) {
	p := NewTMMBN(1)
	require.NoError(t, p.AddEntry(0x11223344, 1000, 40))
	require.NoError(t, p.AddEntry(0xAABBCCDD, 300, 300))
	require.NoError(t, p.AddEntry(0x01020304, 0, MaxOverhead))

	out, err := p.Marshal()
	require.NoError(t, err)

	expected := []byte{
		0x84, 0xCD, 0x00, 0x08,
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x00,
		0x11, 0x22, 0x33, 0x44, 0x0F, 0xD0, 0x90, 0x28,
		// 300 kbps -> exp=2, mantissa=75000; overhead 300 -> 0x12C
		0xAA, 0xBB, 0xCC, 0xDD, 0x0A, 0x49, 0xF1, 0x2C,
		0x01, 0x02, 0x03, 0x04, 0x00, 0x00, 0x01, 0xFF,
	}
	assert.Equal(t, expected, out)
}

func TestTMMBN_NoEntries(t *testing.T) {
	p := NewTMMBN(0xCAFEBABE)

	out, err := p.Marshal()
	require.NoError(t, err)

	expected := []byte{
		0x84, 0xCD, 0x00, 0x02,
		0xCA, 0xFE, 0xBA, 0xBE,
		0x00, 0x00, 0x00, 0x00,
	}
	assert.Equal(t, expected, out)
}

func TestTMMBN_EntryRoundTrip(t *testing.T) {
	entries := []Entry{
		{SSRC: 0x11223344, BitrateKbps: 1000, Overhead: 40},
		{SSRC: 0xFFFFFFFF, BitrateKbps: 1, Overhead: 0},
		{SSRC: 0, BitrateKbps: 4_294_967_295, Overhead: MaxOverhead},
		{SSRC: 0xDEADBEEF, BitrateKbps: 8927, Overhead: 256},
	}

	p := NewTMMBN(7)
	for _, e := range entries {
		require.NoError(t, p.AddEntry(e.SSRC, e.BitrateKbps, e.Overhead))
	}
	out, err := p.Marshal()
	require.NoError(t, err)

	for i, e := range entries {
		offset := headerLength + 2*ssrcLength + i*entryLength
		ssrc, q, overhead := decodeEntry(out[offset : offset+entryLength])

		want, ok := Quantize(uint64(e.BitrateKbps)*1000, MantissaBits)
		require.True(t, ok)

		assert.Equal(t, e.SSRC, ssrc, "entry %d", i)
		assert.Equal(t, want, q, "entry %d", i)
		assert.Equal(t, e.Overhead, overhead, "entry %d", i)
	}
}

func TestTMMBN_BlockLength(t *testing.T) {
	p := NewTMMBN(0)
	assert.Equal(t, 12, p.BlockLength())

	require.NoError(t, p.AddEntry(1, 1, 1))
	assert.Equal(t, 20, p.BlockLength())

	require.NoError(t, p.AddEntry(2, 2, 2))
	require.NoError(t, p.AddEntry(3, 3, 3))
	assert.Equal(t, 36, p.BlockLength())
	assert.Equal(t, uint16(8), p.headerLengthWords())
}

func TestTMMBN_AddEntryCapacity(t *testing.T) {
	var logs bytes.Buffer
	p := NewTMMBN(1, WithLoggerFactory(newTestLoggerFactory(&logs)))

	for i := 0; i < MaxEntries; i++ {
		require.NoError(t, p.AddEntry(uint32(i), 100, 10))
	}
	before := p.Entries()

	for i := 0; i < 3; i++ {
		err := p.AddEntry(0xFFFF, 200, 20)
		assert.ErrorIs(t, err, ErrTooManyEntries)
	}

	assert.Equal(t, before, p.Entries())
	assert.Len(t, p.Entries(), MaxEntries)
	assert.Contains(t, logs.String(), "Max TMMBN size reached")
}

func TestTMMBN_AddEntryOverheadPanics(t *testing.T) {
	p := NewTMMBN(1)
	assert.Panics(t, func() { _ = p.AddEntry(1, 100, MaxOverhead+1) })
	assert.Empty(t, p.Entries())
}

func TestTMMBN_ZeroValueUsable(t *testing.T) {
	var p TMMBN
	p.SenderSSRC = 9
	require.NoError(t, p.AddEntry(1, 64, 0))

	out, err := p.Marshal()
	require.NoError(t, err)
	assert.Len(t, out, 20)
}

func TestTMMBN_Reset(t *testing.T) {
	p := NewTMMBN(1)
	require.NoError(t, p.AddEntry(1, 100, 0))
	p.Reset()

	assert.Empty(t, p.Entries())
	assert.Equal(t, 12, p.BlockLength())
}

func TestTMMBN_EntriesIsCopy(t *testing.T) {
	p := NewTMMBN(1)
	require.NoError(t, p.AddEntry(1, 100, 0))

	e := p.Entries()
	e[0].SSRC = 99
	assert.Equal(t, uint32(1), p.Entries()[0].SSRC)
}

func TestTMMBN_CreateAtOffset(t *testing.T) {
	p := NewTMMBN(0x12345678)
	require.NoError(t, p.AddEntry(0x11223344, 1000, 40))

	buf := make([]byte, 64)
	buf[0], buf[1], buf[2], buf[3] = 0xEE, 0xEE, 0xEE, 0xEE
	index := 4

	err := p.Create(buf, &index, len(buf), FlushTo(func([]byte) {
		t.Fatal("flush should not be needed")
	}))
	require.NoError(t, err)

	assert.Equal(t, 4+p.BlockLength(), index)
	assert.Equal(t, []byte{0xEE, 0xEE, 0xEE, 0xEE}, buf[:4])
	assert.Equal(t, []byte{0x84, 0xCD, 0x00, 0x04}, buf[4:8])
	// Never more than BlockLength bytes.
	assert.Equal(t, make([]byte, len(buf)-index), buf[index:])
}

func TestTMMBN_CreateFlushesWhenFull(t *testing.T) {
	p := NewTMMBN(0x12345678)
	require.NoError(t, p.AddEntry(0x11223344, 1000, 40))

	buf := make([]byte, 32)
	for i := range buf {
		buf[i] = 0xAA
	}
	index := 20

	var flushed [][]byte
	err := p.Create(buf, &index, len(buf), FlushTo(func(pkt []byte) {
		flushed = append(flushed, append([]byte(nil), pkt...))
	}))
	require.NoError(t, err)

	require.Len(t, flushed, 1)
	assert.Equal(t, bytes.Repeat([]byte{0xAA}, 20), flushed[0])
	assert.Equal(t, 20, index)

	want, err := p.Marshal()
	require.NoError(t, err)
	assert.Equal(t, want, buf[:20])
}

func TestTMMBN_CreateAbortsWhenHandlerGivesUp(t *testing.T) {
	p := NewTMMBN(0x12345678)
	require.NoError(t, p.AddEntry(0x11223344, 1000, 40))
	require.NoError(t, p.AddEntry(0x55667788, 2000, 0))
	entries := p.Entries()

	buf := make([]byte, 40)
	index := 30
	errGiveUp := errors.New("transport closed")

	calls := 0
	handler := BufferFullFunc(func(b []byte, i *int) error {
		calls++
		assert.Equal(t, 30, *i)
		if calls == 2 {
			return errGiveUp
		}
		// Pretend to flush without freeing anything.
		return nil
	})

	err := p.Create(buf, &index, len(buf), handler)
	assert.ErrorIs(t, err, ErrBufferFull)
	assert.ErrorIs(t, err, errGiveUp)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 30, index)
	assert.Equal(t, make([]byte, len(buf)), buf, "nothing may be written")
	assert.Equal(t, entries, p.Entries())
}

func TestTMMBN_CreatePacketTooLarge(t *testing.T) {
	p := NewTMMBN(1)
	for i := 0; i < 4; i++ {
		require.NoError(t, p.AddEntry(uint32(i), 100, 0))
	}

	buf := make([]byte, 40)
	index := 0
	err := p.Create(buf, &index, len(buf), FlushTo(func([]byte) {
		t.Fatal("nothing to flush")
	}))
	assert.ErrorIs(t, err, ErrBufferFull)
	assert.ErrorIs(t, err, ErrPacketTooLarge)
	assert.Equal(t, 0, index)
}

func TestTMMBN_CreateMaxLengthBeyondBuffer(t *testing.T) {
	p := NewTMMBN(1)
	index := 0
	assert.Panics(t, func() {
		_ = p.Create(make([]byte, 8), &index, 16, FlushTo(func([]byte) {}))
	})
	assert.Equal(t, 0, index)
}

func TestTMMBN_DestinationSSRC(t *testing.T) {
	p := NewTMMBN(1)
	require.NoError(t, p.AddEntry(1000, 1, 0))
	require.NoError(t, p.AddEntry(2000, 1, 0))
	require.NoError(t, p.AddEntry(3000, 1, 0))

	assert.Equal(t, []uint32{1000, 2000, 3000}, p.DestinationSSRC())
}

func TestTMMBN_String(t *testing.T) {
	p := NewTMMBN(0x12345678)
	require.NoError(t, p.AddEntry(0xABCDEF00, 8927, 28))

	str := p.String()
	assert.Contains(t, str, "TMMBN")
	assert.Contains(t, str, "12345678")
	assert.Contains(t, str, "abcdef00")
	assert.Contains(t, str, "8927 kb/s")
}

func BenchmarkTMMBN_Create(b *testing.B) {
	p := NewTMMBN(0x12345678)
	for i := 0; i < 10; i++ {
		_ = p.AddEntry(uint32(i), 1000+uint32(i), 40)
	}
	buf := make([]byte, MaxPacketSize)
	handler := FlushTo(func([]byte) {})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		index := 0
		_ = p.Create(buf, &index, len(buf), handler)
	}
}
