package gputest

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

type Memory struct {
	handle
	size uint64
	kind gpu.MemoryKind
	data []byte
}

func (m *Memory) Size() uint64         { return m.size }
func (m *Memory) Kind() gpu.MemoryKind { return m.kind }
func (m *Memory) Map() ([]byte, error) {
	if m.kind != gpu.MemoryHostVisible {
		return nil, errors.New("gputest: mapping device local memory")
	}
	return m.data, nil
}

// Bytes exposes the backing store of host-visible memory.
func (m *Memory) Bytes() []byte { return m.data }

type binding struct {
	Mem    gpu.Memory
	Offset uint64
}

func bind(b *binding, mem gpu.Memory, offset, size, align uint64) error {
	if b.Mem != nil {
		return errors.New("gputest: resource bound twice")
	}
	if align > 0 && offset%align != 0 {
		return errors.Newf("gputest: offset %d is not aligned to %d", offset, align)
	}
	if offset+size > mem.Size() {
		return errors.Newf("gputest: binding [%d, %d) exceeds memory of %d bytes", offset, offset+size, mem.Size())
	}
	b.Mem, b.Offset = mem, offset
	return nil
}

type Buffer struct {
	handle
	binding
	size  uint64
	Usage gpu.BufferUsage
	align uint64
}

func (b *Buffer) Size() uint64 { return b.size }
func (b *Buffer) Requirements() gpu.MemoryRequirements {
	return gpu.MemoryRequirements{Size: b.size, Alignment: b.align}
}
func (b *Buffer) Bind(mem gpu.Memory, offset uint64) error {
	return bind(&b.binding, mem, offset, b.size, b.align)
}

type Image struct {
	handle
	binding
	Desc      gpu.ImageDesc
	align     uint64
	swapchain bool
}

func (i *Image) Format() gpu.Format   { return i.Desc.Format }
func (i *Image) Extent() gpu.Extent2D { return i.Desc.Extent }
func (i *Image) Requirements() gpu.MemoryRequirements {
	samples := uint64(i.Desc.Samples)
	if samples == 0 {
		samples = 1
	}
	size := uint64(i.Desc.Extent.Width) * uint64(i.Desc.Extent.Height) * uint64(i.Desc.Format.BytesPerPixel()) * samples
	return gpu.MemoryRequirements{Size: size, Alignment: i.align}
}
func (i *Image) Bind(mem gpu.Memory, offset uint64) error {
	return bind(&i.binding, mem, offset, i.Requirements().Size, i.align)
}
func (i *Image) NewView() (gpu.ImageView, error) {
	if !i.swapchain && i.Mem == nil {
		return nil, errors.New("gputest: view of an unbound image")
	}
	return &ImageView{handle: i.dev.newHandle("image-view"), image: i}, nil
}
func (i *Image) Destroy() {
	if i.swapchain {
		panic("gputest: swapchain images are owned by the swapchain")
	}
	i.handle.Destroy()
}

type ImageView struct {
	handle
	image *Image
}

func (v *ImageView) Image() gpu.Image { return v.image }

type Sampler struct {
	handle
	Desc gpu.SamplerDesc
}

type DescriptorSetLayout struct {
	handle
	bindings []gpu.DescriptorBinding
}

func (l *DescriptorSetLayout) Bindings() []gpu.DescriptorBinding { return l.bindings }

type DescriptorPool struct {
	handle
	MaxSets   uint32
	Sizes     map[gpu.DescriptorType]uint32
	allocated uint32
	used      map[gpu.DescriptorType]uint32
}

func (p *DescriptorPool) Allocate(layout gpu.DescriptorSetLayout, count int) ([]gpu.DescriptorSet, error) {
	if p.used == nil {
		p.used = make(map[gpu.DescriptorType]uint32)
	}
	if p.allocated+uint32(count) > p.MaxSets {
		return nil, errors.Newf("gputest: pool of %d sets cannot allocate %d more", p.MaxSets, count)
	}
	for _, b := range layout.Bindings() {
		need := b.Count * uint32(count)
		if p.used[b.Type]+need > p.Sizes[b.Type] {
			return nil, errors.Newf("gputest: pool out of descriptors of type %d", b.Type)
		}
		p.used[b.Type] += need
	}
	sets := make([]gpu.DescriptorSet, count)
	for i := range sets {
		sets[i] = &DescriptorSet{layout: layout, Index: int(p.allocated) + i}
	}
	p.allocated += uint32(count)
	return sets, nil
}

type DescriptorSet struct {
	layout gpu.DescriptorSetLayout
	// Position in pool allocation order.
	Index int
}

func (s *DescriptorSet) Layout() gpu.DescriptorSetLayout { return s.layout }

func (s *DescriptorSet) String() string { return fmt.Sprintf("set#%d", s.Index) }

type ShaderModule struct {
	handle
	stage gpu.ShaderStage
}

func (m *ShaderModule) Stage() gpu.ShaderStage { return m.stage }

type PipelineLayout struct {
	handle
	Sets          []gpu.DescriptorSetLayout
	PushConstants []gpu.PushConstantRange
}

type PipelineCache struct {
	handle
}

func (c *PipelineCache) Data() ([]byte, error) {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	return append([]byte(nil), c.dev.CacheData...), nil
}

type Pipeline struct {
	handle
}

type Semaphore struct {
	handle
}

type Timeline struct {
	Semaphore
	value uint64
}

func (t *Timeline) Wait(value uint64) error {
	t.dev.mu.Lock()
	defer t.dev.mu.Unlock()
	if t.value < value {
		return errors.Newf("gputest: waiting for timeline %d would block forever, counter is %d", value, t.value)
	}
	return nil
}

func (t *Timeline) Value() (uint64, error) {
	t.dev.mu.Lock()
	defer t.dev.mu.Unlock()
	return t.value, nil
}

func (t *Timeline) signal(v uint64) error {
	t.dev.mu.Lock()
	defer t.dev.mu.Unlock()
	if v <= t.value {
		return errors.Newf("gputest: timeline signal %d does not increase counter %d", v, t.value)
	}
	t.value = v
	return nil
}

type Surface struct {
	handle
}

func (s *Surface) Support() (gpu.SurfaceSupport, error) {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	return s.dev.Support, nil
}

type Swapchain struct {
	handle
	desc   gpu.SwapchainDesc
	images []*Image
	next   uint32
}

func (s *Swapchain) Images() []gpu.Image {
	out := make([]gpu.Image, len(s.images))
	for i, img := range s.images {
		out[i] = img
	}
	return out
}

func (s *Swapchain) Format() gpu.SurfaceFormat { return s.desc.Format }
func (s *Swapchain) Extent() gpu.Extent2D      { return s.desc.Extent }
func (s *Swapchain) Desc() gpu.SwapchainDesc   { return s.desc }

func (s *Swapchain) Acquire(sem gpu.Semaphore, timeout time.Duration) (uint32, gpu.PresentStatus, error) {
	if s.dead {
		return 0, gpu.PresentOutOfDate, errors.New("gputest: acquire on a destroyed swapchain")
	}
	status := s.dev.popAcquire()
	if status == gpu.PresentOutOfDate {
		return 0, status, nil
	}
	idx := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	return idx, status, nil
}

func (s *Swapchain) Present(index uint32, wait gpu.Semaphore) (gpu.PresentStatus, error) {
	if index >= uint32(len(s.images)) {
		return gpu.PresentOutOfDate, errors.Newf("gputest: present of image %d out of %d", index, len(s.images))
	}
	return s.dev.popPresent(index), nil
}

type Framebuffer struct {
	handle
	Desc gpu.FramebufferDesc
}

func (f *Framebuffer) Extent() gpu.Extent2D { return f.Desc.Extent }
