package hbst

import (
	"encoding/binary"
	"math"
)

// PayloadCodec encodes the payload attached to a matchable for persistence.
// Size must be constant for a codec.
type PayloadCodec[T any] interface {
	Size() int
	Put(dst []byte, v T)
	Get(src []byte) T
}

// Uint64Codec stores payloads as 8 little-endian bytes (keypoint or descriptor index).
type Uint64Codec struct{}

func (Uint64Codec) Size() int                { return 8 }
func (Uint64Codec) Put(dst []byte, v uint64) { binary.LittleEndian.PutUint64(dst, v) }
func (Uint64Codec) Get(src []byte) uint64    { return binary.LittleEndian.Uint64(src) }

// Uint32Codec stores payloads as 4 little-endian bytes.
type Uint32Codec struct{}

func (Uint32Codec) Size() int                { return 4 }
func (Uint32Codec) Put(dst []byte, v uint32) { binary.LittleEndian.PutUint32(dst, v) }
func (Uint32Codec) Get(src []byte) uint32    { return binary.LittleEndian.Uint32(src) }

// Keypoint is a 2D image location a descriptor was computed at.
type Keypoint struct {
	X, Y float32
}

// KeypointCodec stores a Keypoint as two little-endian float32 values.
type KeypointCodec struct{}

func (KeypointCodec) Size() int { return 8 }

func (KeypointCodec) Put(dst []byte, v Keypoint) {
	binary.LittleEndian.PutUint32(dst[0:4], math.Float32bits(v.X))
	binary.LittleEndian.PutUint32(dst[4:8], math.Float32bits(v.Y))
}

func (KeypointCodec) Get(src []byte) Keypoint {
	return Keypoint{
		X: math.Float32frombits(binary.LittleEndian.Uint32(src[0:4])),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(src[4:8])),
	}
}
