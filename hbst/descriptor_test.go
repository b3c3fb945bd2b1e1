package hbst

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorBits(t *testing.T) {
	d := NewDescriptor(256)
	require.Equal(t, 256, d.Bits())
	require.Len(t, d.Words(), 4)
	for _, b := range []int{0, 63, 64, 200, 255} {
		assert.False(t, d.Bit(b))
		d.Set(b)
		assert.True(t, d.Bit(b))
	}
	assert.Equal(t, 5, d.Count())
	d.Clear(63)
	d.Flip(64)
	assert.False(t, d.Bit(63))
	assert.False(t, d.Bit(64))
	assert.Equal(t, 3, d.Count())
}

func TestDescriptorBytes(t *testing.T) {
	raw := []byte{0x01, 0x80, 0x00, 0xff, 0, 0, 0, 0, 0x10}
	d := DescriptorFromBytes(raw)
	require.Equal(t, 72, d.Bits())
	assert.True(t, d.Bit(0))
	assert.True(t, d.Bit(15))
	assert.True(t, d.Bit(24))
	assert.True(t, d.Bit(31))
	assert.True(t, d.Bit(68))
	assert.Equal(t, 1+1+8+1, d.Count())
	assert.Equal(t, raw, d.Bytes())
}

func TestDescriptorDistance(t *testing.T) {
	a := NewDescriptor(256)
	b := NewDescriptor(256)
	assert.Zero(t, a.Distance(a))
	a.Set(3)
	a.Set(130)
	b.Set(130)
	b.Set(255)
	assert.Equal(t, uint32(2), a.Distance(b))
	assert.Equal(t, a.Distance(b), b.Distance(a))
	assert.False(t, a.Equal(b))
	assert.True(t, a.Equal(a.Clone()))

	c := a.Clone()
	c.Set(7)
	assert.False(t, a.Bit(7))
}

func TestFullDescriptor(t *testing.T) {
	d := NewFullDescriptor(72)
	assert.Equal(t, 72, d.Count())
	assert.Equal(t, uint64(0xff), d.Words()[1])
	assert.Equal(t, 256, NewFullDescriptor(256).Count())
}
