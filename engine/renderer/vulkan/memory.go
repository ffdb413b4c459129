package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

type memory struct {
	ctx       *Context
	handle    vk.DeviceMemory
	size      uint64
	kind      gpu.MemoryKind
	typeIndex uint32
	mapped    []byte
}

func memoryProperties(kind gpu.MemoryKind) vk.MemoryPropertyFlagBits {
	if kind == gpu.MemoryHostVisible {
		return vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	}
	return vk.MemoryPropertyDeviceLocalBit
}

// AllocateMemory picks the first memory type with the kind's properties. Bind
// rejects resources that cannot live in that type.
func (c *Context) AllocateMemory(size uint64, kind gpu.MemoryKind) (gpu.Memory, error) {
	index := c.FindMemoryIndex(^uint32(0), memoryProperties(kind))
	if index < 0 {
		return nil, core.NewError(core.KindInit, "no %s memory type", kind)
	}
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: uint32(index),
	}
	m := &memory{ctx: c, size: size, kind: kind, typeIndex: uint32(index)}
	res := vk.AllocateMemory(c.device, &info, nil, &m.handle)
	if res == vk.ErrorOutOfDeviceMemory || res == vk.ErrorOutOfHostMemory {
		return nil, core.Raise(core.ErrAllocatorExhausted, core.KindCapacity, "allocating %d bytes of %s memory: %s", size, kind, VulkanResultString(res))
	}
	if err := check(res, core.KindInit, "vkAllocateMemory"); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *memory) Size() uint64         { return m.size }
func (m *memory) Kind() gpu.MemoryKind { return m.kind }

func (m *memory) Map() ([]byte, error) {
	if m.kind != gpu.MemoryHostVisible {
		return nil, core.NewError(core.KindUsage, "mapping %s memory", m.kind)
	}
	if m.mapped != nil {
		return m.mapped, nil
	}
	var ptr unsafe.Pointer
	if err := check(vk.MapMemory(m.ctx.device, m.handle, 0, vk.DeviceSize(m.size), 0, &ptr), core.KindInit, "vkMapMemory"); err != nil {
		return nil, err
	}
	m.mapped = unsafe.Slice((*byte)(ptr), m.size)
	return m.mapped, nil
}

func (m *memory) Destroy() {
	if m.handle == vk.NullDeviceMemory {
		return
	}
	if m.mapped != nil {
		vk.UnmapMemory(m.ctx.device, m.handle)
		m.mapped = nil
	}
	vk.FreeMemory(m.ctx.device, m.handle, nil)
	m.handle = vk.NullDeviceMemory
}

func (m *memory) accepts(typeBits uint32) error {
	if typeBits&(1<<m.typeIndex) == 0 {
		return core.NewError(core.KindUsage, "resource cannot be bound to memory type %d", m.typeIndex)
	}
	return nil
}

type buffer struct {
	ctx      *Context
	handle   vk.Buffer
	size     uint64
	reqs     gpu.MemoryRequirements
	typeBits uint32
}

func (c *Context) NewBuffer(size uint64, usage gpu.BufferUsage) (gpu.Buffer, error) {
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vkBufferUsage(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	b := &buffer{ctx: c, size: size}
	if err := check(vk.CreateBuffer(c.device, &info, nil, &b.handle), core.KindInit, "vkCreateBuffer"); err != nil {
		return nil, err
	}
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(c.device, b.handle, &reqs)
	reqs.Deref()
	b.reqs = gpu.MemoryRequirements{Size: uint64(reqs.Size), Alignment: uint64(reqs.Alignment)}
	b.typeBits = reqs.MemoryTypeBits
	return b, nil
}

func (b *buffer) Size() uint64                         { return b.size }
func (b *buffer) Requirements() gpu.MemoryRequirements { return b.reqs }

func (b *buffer) Bind(mem gpu.Memory, offset uint64) error {
	m := mem.(*memory)
	if err := m.accepts(b.typeBits); err != nil {
		return err
	}
	return check(vk.BindBufferMemory(b.ctx.device, b.handle, m.handle, vk.DeviceSize(offset)), core.KindInit, "vkBindBufferMemory")
}

func (b *buffer) Destroy() {
	if b.handle != vk.NullBuffer {
		vk.DestroyBuffer(b.ctx.device, b.handle, nil)
		b.handle = vk.NullBuffer
	}
}
