package math

import (
	"encoding/binary"
	gomath "math"
)

// Bytes returns the matrix as 64 little-endian bytes, ready for a push
// constant range.
func (mt Mat4) Bytes() []byte {
	out := make([]byte, 0, 64)
	for _, f := range mt.Data {
		out = binary.LittleEndian.AppendUint32(out, gomath.Float32bits(f))
	}
	return out
}

// AppendVertex2D appends the Vertex2DSize byte encoding of each vertex to dst.
func AppendVertex2D(dst []byte, vertices ...Vertex2D) []byte {
	for _, v := range vertices {
		for _, f := range [8]float32{
			v.Position.X, v.Position.Y,
			v.Texcoord.X, v.Texcoord.Y,
			v.Colour.X, v.Colour.Y, v.Colour.Z, v.Colour.W,
		} {
			dst = binary.LittleEndian.AppendUint32(dst, gomath.Float32bits(f))
		}
	}
	return dst
}

func AppendUint16(dst []byte, values ...uint16) []byte {
	for _, v := range values {
		dst = binary.LittleEndian.AppendUint16(dst, v)
	}
	return dst
}
