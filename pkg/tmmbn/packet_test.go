package tmmbn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTMMBN(t *testing.T, sender uint32, n int) *TMMBN {
	t.Helper()

	p := NewTMMBN(sender)
	for i := 0; i < n; i++ {
		require.NoError(t, p.AddEntry(uint32(i+1), uint32(100*(i+1)), uint16(i)))
	}
	return p
}

func collect(out *[][]byte) PacketReadyFunc {
	return func(pkt []byte) {
		*out = append(*out, append([]byte(nil), pkt...))
	}
}

func TestBuild_SingleDatagram(t *testing.T) {
	p := newTestTMMBN(t, 1, 2)

	var out [][]byte
	require.NoError(t, Build(p, 1200, collect(&out)))

	want, err := p.Marshal()
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, want, out[0])
}

func TestBuild_PacketTooLarge(t *testing.T) {
	p := newTestTMMBN(t, 1, 5) // 52 bytes

	var out [][]byte
	err := Build(p, 40, collect(&out))
	assert.ErrorIs(t, err, ErrPacketTooLarge)
	assert.Empty(t, out)
}

func TestBuild_MaxLengthCapped(t *testing.T) {
	p := newTestTMMBN(t, 1, MaxEntries) // 412 bytes

	var out [][]byte
	require.NoError(t, Build(p, 1<<20, collect(&out)))
	require.Len(t, out, 1)
	assert.Len(t, out[0], p.BlockLength())
}

func TestBuildInto_CallerBuffer(t *testing.T) {
	p := newTestTMMBN(t, 7, 1)
	buf := make([]byte, 64)

	var out [][]byte
	require.NoError(t, BuildInto(p, buf, collect(&out)))
	require.Len(t, out, 1)
	assert.Len(t, out[0], 20)
}

func TestMarshal_ExactSize(t *testing.T) {
	p := newTestTMMBN(t, 7, 3)

	out, err := Marshal(p)
	require.NoError(t, err)
	assert.Len(t, out, p.BlockLength())
}

func TestCompound_BackToBack(t *testing.T) {
	a := newTestTMMBN(t, 1, 1)
	b := newTestTMMBN(t, 2, 2)

	var c Compound
	c.Append(a)
	c.Append(b)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 20+28, c.BlockLength())

	out, err := Marshal(&c)
	require.NoError(t, err)

	wantA, err := a.Marshal()
	require.NoError(t, err)
	wantB, err := b.Marshal()
	require.NoError(t, err)
	assert.Equal(t, append(wantA, wantB...), out)
}

func TestCompound_SplitsOnPacketBoundaries(t *testing.T) {
	a := newTestTMMBN(t, 1, 1) // 20 bytes
	b := newTestTMMBN(t, 2, 1) // 20 bytes
	d := newTestTMMBN(t, 3, 2) // 28 bytes

	var c Compound
	c.Append(a)
	c.Append(b)
	c.Append(d)

	var out [][]byte
	require.NoError(t, Build(&c, 48, collect(&out)))

	wantA, _ := a.Marshal()
	wantB, _ := b.Marshal()
	wantD, _ := d.Marshal()

	require.Len(t, out, 2)
	assert.Equal(t, append(wantA, wantB...), out[0])
	assert.Equal(t, wantD, out[1])
}

func TestCompound_ErrorStopsBuild(t *testing.T) {
	var c Compound
	c.Append(newTestTMMBN(t, 1, 1))
	c.Append(newTestTMMBN(t, 2, 10)) // 92 bytes, larger than the buffer

	var out [][]byte
	err := Build(&c, 64, collect(&out))
	assert.ErrorIs(t, err, ErrPacketTooLarge)
	// The first packet was flushed to make room before the second one failed.
	require.Len(t, out, 1)
	assert.Len(t, out[0], 20)
}

func TestBufferFullFunc(t *testing.T) {
	called := false
	var h BufferFullHandler = BufferFullFunc(func(buf []byte, index *int) error {
		called = true
		*index = 0
		return nil
	})

	index := 10
	require.NoError(t, h.OnBufferFull(make([]byte, 16), &index))
	assert.True(t, called)
	assert.Equal(t, 0, index)
}
