package math

import "testing"

func TestAlignUp(t *testing.T) {
	cases := []struct{ v, align, want uint64 }{
		{0, 16, 0},
		{1, 16, 16},
		{16, 16, 16},
		{17, 16, 32},
		{5, 0, 5},
		{5, 1, 5},
		{100, 256, 256},
	}
	for _, c := range cases {
		if have := AlignUp(c.v, c.align); have != c.want {
			t.Errorf("AlignUp(%d, %d): have %d, want %d", c.v, c.align, have, c.want)
		}
	}
}

func TestClamp(t *testing.T) {
	if Clamp(1, 2, 4) != 2 || Clamp(9, 2, 4) != 4 || Clamp(3, 2, 4) != 3 {
		t.Fatal("Clamp int")
	}
	if Clamp[uint32](1, 2, 0xFFFFFFFF) != 2 {
		t.Fatal("Clamp uint32")
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, v := range []uint32{1, 2, 64, 1 << 31} {
		if !IsPowerOfTwo(v) {
			t.Errorf("%d should be a power of two", v)
		}
	}
	for _, v := range []uint32{0, 3, 100} {
		if IsPowerOfTwo(v) {
			t.Errorf("%d should not be a power of two", v)
		}
	}
}

func TestOrthographicMapsCorners(t *testing.T) {
	m := NewMat4Orthographic(0, 800, 0, 600, -1, 1)
	tl := m.TransformPoint(NewVec2(0, 0))
	br := m.TransformPoint(NewVec2(800, 600))
	if tl.X != -1 || tl.Y != -1 {
		t.Fatalf("top left: have %+v, want (-1,-1)", tl)
	}
	if br.X != 1 || br.Y != 1 {
		t.Fatalf("bottom right: have %+v, want (1,1)", br)
	}
}

func TestMat4Mul(t *testing.T) {
	tr := NewMat4Translation(NewVec2(10, 20))
	if tr.Mul(NewMat4Identity()) != tr {
		t.Fatal("identity must be neutral")
	}
	p := NewMat4Scale(NewVec2(2, 2)).Mul(tr).TransformPoint(NewVec2(1, 1))
	if p.X != 12 || p.Y != 22 {
		t.Fatalf("scale then translate: have %+v, want (12,22)", p)
	}
}
