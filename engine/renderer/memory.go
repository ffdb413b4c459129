package renderer

import (
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

// MemoryBlock hands out aligned sub-ranges of one device allocation with a
// bump cursor. Ranges are never freed individually; Destroy releases the block.
type MemoryBlock struct {
	mem      gpu.Memory
	cursor   uint64
	minAlign uint64
}

func NewMemoryBlock(device gpu.Device, size uint64, kind gpu.MemoryKind, minAlign uint64) (*MemoryBlock, error) {
	mem, err := device.AllocateMemory(size, kind)
	if err != nil {
		return nil, core.WrapError(err, core.KindInit, "allocating %d bytes of %s memory", size, kind)
	}
	return &MemoryBlock{mem: mem, minAlign: minAlign}, nil
}

// Allocate reserves req.Size bytes aligned to max(req.Alignment, the block
// minimum) and returns their offset.
func (b *MemoryBlock) Allocate(req gpu.MemoryRequirements) (uint64, error) {
	align := max(req.Alignment, b.minAlign)
	offset := math.AlignUp(b.cursor, align)
	if offset+req.Size > b.mem.Size() {
		return 0, core.Raise(core.ErrAllocatorExhausted, core.KindCapacity,
			"%d bytes at offset %d do not fit in a block of %d", req.Size, offset, b.mem.Size())
	}
	b.cursor = offset + req.Size
	return offset, nil
}

func (b *MemoryBlock) Memory() gpu.Memory { return b.mem }

func (b *MemoryBlock) Size() uint64 { return b.mem.Size() }

func (b *MemoryBlock) Used() uint64 { return b.cursor }

func (b *MemoryBlock) Destroy() {
	if b.mem != nil {
		b.mem.Destroy()
		b.mem = nil
	}
}

// blockSizeFor returns the smallest block that fits reqs allocated in order.
func blockSizeFor(reqs []gpu.MemoryRequirements, minAlign uint64) uint64 {
	var size uint64
	for _, r := range reqs {
		size = math.AlignUp(size, max(r.Alignment, minAlign)) + r.Size
	}
	return size
}

// LinearAllocator owns a device-local block and every buffer and image bound into it.
type LinearAllocator struct {
	device gpu.Device
	block  *MemoryBlock
	owned  []gpu.Destroyer
}

func NewLinearAllocator(device gpu.Device, size uint64) (*LinearAllocator, error) {
	block, err := NewMemoryBlock(device, size, gpu.MemoryDeviceLocal, device.Limits().BufferImageGranularity)
	if err != nil {
		return nil, err
	}
	return &LinearAllocator{device: device, block: block}, nil
}

// NewBuffer creates a buffer and binds it at the next free offset.
func (a *LinearAllocator) NewBuffer(size uint64, usage gpu.BufferUsage) (gpu.Buffer, uint64, error) {
	buf, err := a.device.NewBuffer(size, usage)
	if err != nil {
		return nil, 0, core.WrapError(err, core.KindInit, "creating buffer of %d bytes", size)
	}
	offset, err := a.bind(buf.Requirements(), buf.Bind)
	if err != nil {
		buf.Destroy()
		return nil, 0, err
	}
	a.owned = append(a.owned, buf)
	return buf, offset, nil
}

// NewImage creates an image and binds it at the next free offset.
func (a *LinearAllocator) NewImage(desc gpu.ImageDesc) (gpu.Image, uint64, error) {
	img, err := a.device.NewImage(desc)
	if err != nil {
		return nil, 0, core.WrapError(err, core.KindInit, "creating %dx%d %s image", desc.Extent.Width, desc.Extent.Height, desc.Format)
	}
	offset, err := a.bind(img.Requirements(), img.Bind)
	if err != nil {
		img.Destroy()
		return nil, 0, err
	}
	a.owned = append(a.owned, img)
	return img, offset, nil
}

func (a *LinearAllocator) bind(req gpu.MemoryRequirements, bind func(gpu.Memory, uint64) error) (uint64, error) {
	offset, err := a.block.Allocate(req)
	if err != nil {
		return 0, err
	}
	if err := bind(a.block.Memory(), offset); err != nil {
		return 0, core.WrapError(err, core.KindInit, "binding memory at offset %d", offset)
	}
	return offset, nil
}

func (a *LinearAllocator) Used() uint64 { return a.block.Used() }

// Destroy releases every resource created through the allocator, then the block.
func (a *LinearAllocator) Destroy() {
	for i := len(a.owned) - 1; i >= 0; i-- {
		a.owned[i].Destroy()
	}
	a.owned = nil
	a.block.Destroy()
}

// MappedAllocator is a host-visible block kept mapped for its whole life, with
// one transfer-source buffer spanning it and a cursor rewound by Reset.
type MappedAllocator struct {
	block  *MemoryBlock
	buffer gpu.Buffer
	data   []byte
	cursor uint64
	atom   uint64
}

func NewMappedAllocator(device gpu.Device, size uint64) (*MappedAllocator, error) {
	buf, err := device.NewBuffer(size, gpu.BufferUsageTransferSrc)
	if err != nil {
		return nil, core.WrapError(err, core.KindInit, "creating staging buffer of %d bytes", size)
	}
	req := buf.Requirements()
	block, err := NewMemoryBlock(device, req.Size, gpu.MemoryHostVisible, device.Limits().NonCoherentAtomSize)
	if err != nil {
		buf.Destroy()
		return nil, err
	}
	if err := buf.Bind(block.Memory(), 0); err != nil {
		buf.Destroy()
		block.Destroy()
		return nil, core.WrapError(err, core.KindInit, "binding staging buffer")
	}
	data, err := block.Memory().Map()
	if err != nil {
		buf.Destroy()
		block.Destroy()
		return nil, core.WrapError(err, core.KindInit, "mapping staging memory")
	}
	return &MappedAllocator{
		block:  block,
		buffer: buf,
		data:   data[:size],
		atom:   device.Limits().NonCoherentAtomSize,
	}, nil
}

// Allocate reserves size bytes at an offset that is a multiple of align.
func (a *MappedAllocator) Allocate(size, align uint64) (uint64, error) {
	offset := math.AlignUp(a.cursor, align)
	if offset+size > uint64(len(a.data)) {
		return 0, core.Raise(core.ErrStagingExhausted, core.KindCapacity,
			"%d bytes at offset %d exceed a staging region of %d", size, offset, len(a.data))
	}
	a.cursor = offset + size
	return offset, nil
}

// Write copies data into the mapped memory at offset.
func (a *MappedAllocator) Write(offset uint64, data []byte) {
	copy(a.data[offset:], data)
}

func (a *MappedAllocator) Bytes() []byte { return a.data }

func (a *MappedAllocator) Buffer() gpu.Buffer { return a.buffer }

func (a *MappedAllocator) Used() uint64 { return a.cursor }

func (a *MappedAllocator) Capacity() uint64 { return uint64(len(a.data)) }

func (a *MappedAllocator) Reset() { a.cursor = 0 }

func (a *MappedAllocator) Destroy() {
	a.buffer.Destroy()
	a.block.Destroy()
	a.data = nil
}

type Slot struct {
	Index  uint32
	Offset uint64
	Size   uint64
}

// SlotAllocator splits one device-local storage buffer into equal slots.
type SlotAllocator struct {
	alloc    *LinearAllocator
	buffer   gpu.Buffer
	slotSize uint64
	count    uint32
	next     uint32
}

// NewSlotAllocator rounds slotSize up to the storage offset alignment so every
// slot can be bound as a dynamic storage buffer.
func NewSlotAllocator(device gpu.Device, count uint32, slotSize uint64) (*SlotAllocator, error) {
	slotSize = math.AlignUp(slotSize, device.Limits().MinStorageBufferOffsetAlignment)
	total := slotSize * uint64(count)

	sizing, err := device.NewBuffer(total, gpu.BufferUsageStorage|gpu.BufferUsageTransferDst)
	if err != nil {
		return nil, core.WrapError(err, core.KindInit, "creating storage buffer of %d bytes", total)
	}
	req := sizing.Requirements()
	sizing.Destroy()

	alloc, err := NewLinearAllocator(device, blockSizeFor([]gpu.MemoryRequirements{req}, device.Limits().BufferImageGranularity))
	if err != nil {
		return nil, err
	}
	buf, _, err := alloc.NewBuffer(total, gpu.BufferUsageStorage|gpu.BufferUsageTransferDst)
	if err != nil {
		alloc.Destroy()
		return nil, err
	}
	return &SlotAllocator{alloc: alloc, buffer: buf, slotSize: slotSize, count: count}, nil
}

func (a *SlotAllocator) Allocate() (Slot, error) {
	if a.next == a.count {
		return Slot{}, core.Raise(core.ErrAllocatorExhausted, core.KindCapacity, "all %d storage slots are in use", a.count)
	}
	s := Slot{Index: a.next, Offset: uint64(a.next) * a.slotSize, Size: a.slotSize}
	a.next++
	return s, nil
}

func (a *SlotAllocator) Buffer() gpu.Buffer { return a.buffer }

func (a *SlotAllocator) SlotSize() uint64 { return a.slotSize }

func (a *SlotAllocator) Destroy() {
	a.alloc.Destroy()
}
