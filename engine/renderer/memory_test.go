package renderer

import (
	"io"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu/gputest"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	m.Run()
}

func TestMemoryBlockAlignment(t *testing.T) {
	dev := gputest.NewDevice()
	b, err := NewMemoryBlock(dev, 4096, gpu.MemoryDeviceLocal, 256)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Destroy()

	tests := []struct {
		req  gpu.MemoryRequirements
		want uint64
	}{
		{gpu.MemoryRequirements{Size: 100, Alignment: 16}, 0},
		{gpu.MemoryRequirements{Size: 100, Alignment: 512}, 512},
		// the block minimum wins over a smaller requirement
		{gpu.MemoryRequirements{Size: 100, Alignment: 4}, 768},
	}
	for i, tt := range tests {
		off, err := b.Allocate(tt.req)
		if err != nil {
			t.Fatalf("allocation %d: %v", i, err)
		}
		if off != tt.want {
			t.Fatalf("allocation %d: have offset %d, want %d", i, off, tt.want)
		}
	}
	if b.Used() != 868 {
		t.Fatalf("Used: have %d, want 868", b.Used())
	}

	_, err = b.Allocate(gpu.MemoryRequirements{Size: 4000, Alignment: 1})
	if !core.IsCapacity(err) || !errors.Is(err, core.ErrAllocatorExhausted) {
		t.Fatalf("overflow: have %v, want allocator exhausted", err)
	}
	if b.Used() != 868 {
		t.Fatal("failed allocation moved the cursor")
	}
}

func TestBlockSizeFor(t *testing.T) {
	reqs := []gpu.MemoryRequirements{
		{Size: 1000, Alignment: 256},
		{Size: 10, Alignment: 256},
		{Size: 10, Alignment: 2048},
	}
	// 0..1000, 1024..1034, 2048..2058
	if have := blockSizeFor(reqs, 1); have != 2058 {
		t.Fatalf("have %d, want 2058", have)
	}
	if have := blockSizeFor(nil, 1); have != 0 {
		t.Fatalf("empty: have %d", have)
	}
}

func TestLinearAllocatorOwnsResources(t *testing.T) {
	dev := gputest.NewDevice()
	a, err := NewLinearAllocator(dev, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	buf, off, err := a.NewBuffer(100, gpu.BufferUsageVertex)
	if err != nil {
		t.Fatal(err)
	}
	if off != 0 || buf.Size() != 100 {
		t.Fatalf("buffer: offset %d size %d", off, buf.Size())
	}
	img, off, err := a.NewImage(gpu.ImageDesc{Format: gpu.FormatRGBA8Unorm, Extent: gpu.Extent2D{Width: 4, Height: 4}, Samples: 1})
	if err != nil {
		t.Fatal(err)
	}
	// BufferImageGranularity of the fake device is 1024
	if off != 1024 {
		t.Fatalf("image offset: have %d, want 1024", off)
	}
	if img.(*gputest.Image).Mem == nil {
		t.Fatal("image was not bound")
	}

	a.Destroy()
	if n := dev.LiveTotal(); n != 0 {
		t.Fatalf("%d objects alive after Destroy", n)
	}
	want := []string{"image", "buffer", "memory"}
	for i, k := range want {
		if dev.DestroyLog[i] != k {
			t.Fatalf("destroy order: have %v, want %v", dev.DestroyLog, want)
		}
	}
}

func TestLinearAllocatorExhaustion(t *testing.T) {
	dev := gputest.NewDevice()
	a, err := NewLinearAllocator(dev, 256)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Destroy()
	if _, _, err := a.NewBuffer(200, gpu.BufferUsageVertex); err != nil {
		t.Fatal(err)
	}
	_, _, err = a.NewBuffer(200, gpu.BufferUsageIndex)
	if !errors.Is(err, core.ErrAllocatorExhausted) {
		t.Fatalf("have %v, want allocator exhausted", err)
	}
	// the buffer that did not fit is not leaked
	if n := dev.Live("buffer"); n != 1 {
		t.Fatalf("live buffers: have %d, want 1", n)
	}
}

func TestMappedAllocator(t *testing.T) {
	dev := gputest.NewDevice()
	a, err := NewMappedAllocator(dev, 1000)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Destroy()
	if a.Capacity() != 1000 {
		t.Fatalf("Capacity: have %d", a.Capacity())
	}

	off, err := a.Allocate(3, 1)
	if err != nil {
		t.Fatal(err)
	}
	a.Write(off, []byte{1, 2, 3})
	off, err = a.Allocate(4, 16)
	if err != nil {
		t.Fatal(err)
	}
	if off != 16 {
		t.Fatalf("aligned offset: have %d, want 16", off)
	}
	a.Write(off, []byte{9, 9, 9, 9})
	if a.Bytes()[1] != 2 || a.Bytes()[17] != 9 {
		t.Fatal("writes did not land in the mapping")
	}

	_, err = a.Allocate(990, 1)
	if !errors.Is(err, core.ErrStagingExhausted) || !core.IsCapacity(err) {
		t.Fatalf("overflow: have %v", err)
	}
	a.Reset()
	if a.Used() != 0 {
		t.Fatal("Reset did not rewind")
	}
	if _, err := a.Allocate(1000, 1); err != nil {
		t.Fatalf("full-size allocation after reset: %v", err)
	}
}

func TestSlotAllocator(t *testing.T) {
	dev := gputest.NewDevice()
	a, err := NewSlotAllocator(dev, 3, 100)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Destroy()
	// rounded up to the storage offset alignment of 64
	if a.SlotSize() != 128 {
		t.Fatalf("SlotSize: have %d, want 128", a.SlotSize())
	}
	for i := uint32(0); i < 3; i++ {
		s, err := a.Allocate()
		if err != nil {
			t.Fatal(err)
		}
		if s.Index != i || s.Offset != uint64(i)*128 || s.Size != 128 {
			t.Fatalf("slot %d: have %+v", i, s)
		}
	}
	if _, err := a.Allocate(); !errors.Is(err, core.ErrAllocatorExhausted) {
		t.Fatalf("fourth slot: have %v", err)
	}
	if a.Buffer().Size() != 384 {
		t.Fatalf("buffer size: have %d", a.Buffer().Size())
	}
}
