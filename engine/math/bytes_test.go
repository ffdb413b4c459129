package math

import (
	"encoding/binary"
	gomath "math"
	"testing"
)

func TestMat4Bytes(t *testing.T) {
	b := NewMat4Translation(NewVec2(3, 4)).Bytes()
	if len(b) != 64 {
		t.Fatalf("have %d bytes, want 64", len(b))
	}
	if have := gomath.Float32frombits(binary.LittleEndian.Uint32(b[12*4:])); have != 3 {
		t.Fatalf("element 12: have %v, want 3", have)
	}
	if have := gomath.Float32frombits(binary.LittleEndian.Uint32(b[15*4:])); have != 1 {
		t.Fatalf("element 15: have %v, want 1", have)
	}
}

func TestAppendVertex2D(t *testing.T) {
	v := Vertex2D{Position: NewVec2(1, 2), Texcoord: NewVec2(0.5, 0.25), Colour: NewVec4(1, 0, 0, 1)}
	b := AppendVertex2D(nil, v, v)
	if len(b) != 2*Vertex2DSize {
		t.Fatalf("have %d bytes, want %d", len(b), 2*Vertex2DSize)
	}
	at := func(off int) float32 { return gomath.Float32frombits(binary.LittleEndian.Uint32(b[off:])) }
	if at(Vertex2DPositionOffset+4) != 2 {
		t.Fatalf("position y: have %v", at(Vertex2DPositionOffset+4))
	}
	if at(Vertex2DSize+Vertex2DTexcoordOffset) != 0.5 {
		t.Fatalf("second texcoord x: have %v", at(Vertex2DSize+Vertex2DTexcoordOffset))
	}
	if at(Vertex2DColourOffset+12) != 1 {
		t.Fatalf("colour alpha: have %v", at(Vertex2DColourOffset+12))
	}
}

func TestAppendUint16(t *testing.T) {
	b := AppendUint16([]byte{9}, 1, 0x0203)
	want := []byte{9, 1, 0, 3, 2}
	if string(b) != string(want) {
		t.Fatalf("have %v, want %v", b, want)
	}
}
