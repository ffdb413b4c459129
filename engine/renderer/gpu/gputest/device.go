// Package gputest implements gpu.Device in memory. Submissions complete
// immediately: timeline signals are applied when Submit returns.
package gputest

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

// Window is a fake platform window.
type Window struct {
	Width, Height int
}

func (w *Window) CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error) {
	return 1, nil
}

func (w *Window) GetFramebufferSize() (int, int) {
	return w.Width, w.Height
}

type Device struct {
	mu sync.Mutex

	limits  gpu.Limits
	Support gpu.SurfaceSupport
	// Image requirements alignment; buffers use BufferAlignment.
	ImageAlignment  uint64
	BufferAlignment uint64

	acquireStatus []gpu.PresentStatus
	presentStatus []gpu.PresentStatus
	nextID        int

	live       map[string]int
	DestroyLog []string

	Submits          [][]gpu.SubmitBatch
	Presents         []uint32
	Swapchains       []SwapchainRecord
	DescriptorWrites [][]gpu.DescriptorWrite
	Pipelines        []gpu.GraphicsPipelineInfo
	WaitIdleCount    int
	CacheInput       [][]byte
	CacheData        []byte
	// Fail the next pipeline cache creation that receives non-empty data.
	RejectCacheData bool
}

type SwapchainRecord struct {
	Desc    gpu.SwapchainDesc
	HadOld  bool
	Created *Swapchain
}

func NewDevice() *Device {
	return &Device{
		limits: gpu.Limits{
			BufferImageGranularity:           1024,
			NonCoherentAtomSize:              64,
			MinUniformBufferOffsetAlignment:  256,
			MinStorageBufferOffsetAlignment:  64,
			OptimalBufferCopyOffsetAlignment: 4,
			MaxImageDimension2D:              8192,
			MaxSamplerAnisotropy:             16,
		},
		Support: gpu.SurfaceSupport{
			Capabilities: gpu.SurfaceCapabilities{
				MinImageCount:           1,
				MaxImageCount:           8,
				CurrentExtent:           gpu.Extent2D{Width: gpu.UndefinedExtent, Height: gpu.UndefinedExtent},
				MinImageExtent:          gpu.Extent2D{Width: 1, Height: 1},
				MaxImageExtent:          gpu.Extent2D{Width: 8192, Height: 8192},
				SupportedCompositeAlpha: gpu.CompositeAlphaOpaque | gpu.CompositeAlphaInherit,
			},
			Formats: []gpu.SurfaceFormat{
				{Format: gpu.FormatBGRA8SRGB, ColorSpace: gpu.ColorSpaceSRGBNonlinear},
			},
			PresentModes: []gpu.PresentMode{gpu.PresentModeFIFO},
		},
		ImageAlignment:  256,
		BufferAlignment: 16,
		live:            make(map[string]int),
	}
}

func (d *Device) SetLimits(l gpu.Limits) {
	d.mu.Lock()
	d.limits = l
	d.mu.Unlock()
}

// QueueAcquireStatus makes the next swapchain acquires report the given statuses, one per call.
func (d *Device) QueueAcquireStatus(s ...gpu.PresentStatus) {
	d.mu.Lock()
	d.acquireStatus = append(d.acquireStatus, s...)
	d.mu.Unlock()
}

// QueuePresentStatus makes the next presents report the given statuses, one per call.
func (d *Device) QueuePresentStatus(s ...gpu.PresentStatus) {
	d.mu.Lock()
	d.presentStatus = append(d.presentStatus, s...)
	d.mu.Unlock()
}

// Live returns how many objects of kind were created and not destroyed.
func (d *Device) Live(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live[kind]
}

// LiveTotal returns how many objects of any kind are still alive.
func (d *Device) LiveTotal() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.live {
		n += c
	}
	return n
}

func (d *Device) LastSwapchain() *Swapchain {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Swapchains) == 0 {
		return nil
	}
	return d.Swapchains[len(d.Swapchains)-1].Created
}

func (d *Device) created(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live[kind]++
	d.nextID++
	return d.nextID
}

func (d *Device) destroyed(kind string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live[kind]--
	d.DestroyLog = append(d.DestroyLog, kind)
}

// handle is embedded in every fake object.
type handle struct {
	dev  *Device
	kind string
	id   int
	dead bool
}

func (d *Device) newHandle(kind string) handle {
	return handle{dev: d, kind: kind, id: d.created(kind)}
}

func (h *handle) Destroy() {
	if h.dead {
		panic(fmt.Sprintf("gputest: %s %d destroyed twice", h.kind, h.id))
	}
	h.dead = true
	h.dev.destroyed(h.kind)
}

func (h *handle) ID() int { return h.id }

func (h *handle) Destroyed() bool { return h.dead }

func (d *Device) Limits() gpu.Limits {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.limits
}

func (d *Device) AllocateMemory(size uint64, kind gpu.MemoryKind) (gpu.Memory, error) {
	m := &Memory{handle: d.newHandle("memory"), size: size, kind: kind}
	if kind == gpu.MemoryHostVisible {
		m.data = make([]byte, size)
	}
	return m, nil
}

func (d *Device) NewBuffer(size uint64, usage gpu.BufferUsage) (gpu.Buffer, error) {
	if size == 0 {
		return nil, errors.New("gputest: zero sized buffer")
	}
	return &Buffer{handle: d.newHandle("buffer"), size: size, Usage: usage, align: d.BufferAlignment}, nil
}

func (d *Device) NewImage(desc gpu.ImageDesc) (gpu.Image, error) {
	if desc.Extent.IsZero() {
		return nil, errors.New("gputest: zero sized image")
	}
	return &Image{handle: d.newHandle("image"), Desc: desc, align: d.ImageAlignment}, nil
}

func (d *Device) NewSampler(desc gpu.SamplerDesc) (gpu.Sampler, error) {
	return &Sampler{handle: d.newHandle("sampler"), Desc: desc}, nil
}

func (d *Device) NewDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	return &DescriptorSetLayout{handle: d.newHandle("descriptor-set-layout"), bindings: append([]gpu.DescriptorBinding(nil), bindings...)}, nil
}

func (d *Device) NewDescriptorPool(maxSets uint32, sizes []gpu.DescriptorPoolSize) (gpu.DescriptorPool, error) {
	p := &DescriptorPool{handle: d.newHandle("descriptor-pool"), MaxSets: maxSets, Sizes: make(map[gpu.DescriptorType]uint32)}
	for _, s := range sizes {
		p.Sizes[s.Type] += s.Count
	}
	return p, nil
}

func (d *Device) UpdateDescriptorSets(writes []gpu.DescriptorWrite) {
	d.mu.Lock()
	defer d.mu.Unlock()
	// deep copy, the caller reuses the info arrays after this call
	c := make([]gpu.DescriptorWrite, len(writes))
	for i, w := range writes {
		c[i] = w
		c[i].Images = append([]gpu.DescriptorImageInfo(nil), w.Images...)
		c[i].Buffers = append([]gpu.DescriptorBufferInfo(nil), w.Buffers...)
	}
	d.DescriptorWrites = append(d.DescriptorWrites, c)
}

func (d *Device) NewShaderModule(stage gpu.ShaderStage, code []byte) (gpu.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, errors.Newf("gputest: invalid SPIR-V size %d", len(code))
	}
	return &ShaderModule{handle: d.newHandle("shader-module"), stage: stage}, nil
}

func (d *Device) NewPipelineLayout(sets []gpu.DescriptorSetLayout, pushConstants []gpu.PushConstantRange) (gpu.PipelineLayout, error) {
	return &PipelineLayout{
		handle:        d.newHandle("pipeline-layout"),
		Sets:          append([]gpu.DescriptorSetLayout(nil), sets...),
		PushConstants: append([]gpu.PushConstantRange(nil), pushConstants...),
	}, nil
}

func (d *Device) NewPipelineCache(initial []byte) (gpu.PipelineCache, error) {
	d.mu.Lock()
	d.CacheInput = append(d.CacheInput, initial)
	reject := d.RejectCacheData && len(initial) > 0
	d.mu.Unlock()
	if reject {
		return nil, errors.New("gputest: pipeline cache data rejected")
	}
	return &PipelineCache{handle: d.newHandle("pipeline-cache")}, nil
}

func (d *Device) NewGraphicsPipelines(cache gpu.PipelineCache, infos []gpu.GraphicsPipelineInfo) ([]gpu.Pipeline, error) {
	out := make([]gpu.Pipeline, len(infos))
	for i, info := range infos {
		if info.Layout == nil || len(info.Stages) == 0 {
			return nil, errors.Newf("gputest: pipeline %d is missing a layout or shader stages", i)
		}
		d.mu.Lock()
		// deep copy, the caller's slices are only valid during this call
		c := info
		c.Stages = append([]gpu.ShaderModule(nil), info.Stages...)
		c.VertexInput.Attributes = append([]gpu.VertexAttribute(nil), info.VertexInput.Attributes...)
		c.Dynamic = append([]gpu.DynamicState(nil), info.Dynamic...)
		d.Pipelines = append(d.Pipelines, c)
		d.mu.Unlock()
		out[i] = &Pipeline{handle: d.newHandle("pipeline")}
	}
	return out, nil
}

func (d *Device) NewCommandBuffer() (gpu.CommandBuffer, error) {
	return &CommandBuffer{handle: d.newHandle("command-buffer")}, nil
}

func (d *Device) NewSemaphore() (gpu.Semaphore, error) {
	return &Semaphore{handle: d.newHandle("semaphore")}, nil
}

func (d *Device) NewTimeline(initial uint64) (gpu.Timeline, error) {
	return &Timeline{Semaphore: Semaphore{handle: d.newHandle("timeline")}, value: initial}, nil
}

func (d *Device) NewSurface(window gpu.Window) (gpu.Surface, error) {
	if _, err := window.CreateWindowSurface(nil, nil); err != nil {
		return nil, err
	}
	return &Surface{handle: d.newHandle("surface")}, nil
}

func (d *Device) NewSwapchain(desc gpu.SwapchainDesc, old gpu.Swapchain) (gpu.Swapchain, error) {
	sc := &Swapchain{handle: d.newHandle("swapchain"), desc: desc}
	for i := uint32(0); i < desc.ImageCount; i++ {
		sc.images = append(sc.images, &Image{
			handle:    handle{dev: d, kind: "swapchain-image"},
			Desc:      gpu.ImageDesc{Format: desc.Format.Format, Extent: desc.Extent, Usage: gpu.ImageUsageColorAttachment, Samples: 1},
			swapchain: true,
		})
	}
	d.mu.Lock()
	d.Swapchains = append(d.Swapchains, SwapchainRecord{Desc: desc, HadOld: old != nil, Created: sc})
	d.mu.Unlock()
	return sc, nil
}

func (d *Device) NewFramebuffer(desc gpu.FramebufferDesc) (gpu.Framebuffer, error) {
	want := 2
	if desc.Samples > 1 {
		want = 3
	}
	if len(desc.Attachments) != want {
		return nil, errors.Newf("gputest: framebuffer wants %d attachments, got %d", want, len(desc.Attachments))
	}
	return &Framebuffer{handle: d.newHandle("framebuffer"), Desc: desc}, nil
}

func (d *Device) Submit(batches ...gpu.SubmitBatch) error {
	for _, b := range batches {
		for _, cb := range b.Commands {
			c := cb.(*CommandBuffer)
			if c.recording {
				return errors.New("gputest: submitted a command buffer that is still recording")
			}
			c.Submitted++
		}
		for _, w := range b.Waits {
			if tl, ok := w.Semaphore.(*Timeline); ok {
				if v, _ := tl.Value(); v < w.Value {
					return errors.Newf("gputest: batch waits for timeline %d but nothing signals past %d", w.Value, v)
				}
			}
		}
		for _, s := range b.Signals {
			if tl, ok := s.Semaphore.(*Timeline); ok {
				if err := tl.signal(s.Value); err != nil {
					return err
				}
			}
		}
	}
	d.mu.Lock()
	d.Submits = append(d.Submits, append([]gpu.SubmitBatch(nil), batches...))
	d.mu.Unlock()
	return nil
}

func (d *Device) WaitIdle() error {
	d.mu.Lock()
	d.WaitIdleCount++
	d.mu.Unlock()
	return nil
}

func (d *Device) popAcquire() gpu.PresentStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.acquireStatus) == 0 {
		return gpu.PresentOptimal
	}
	s := d.acquireStatus[0]
	d.acquireStatus = d.acquireStatus[1:]
	return s
}

func (d *Device) popPresent(index uint32) gpu.PresentStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Presents = append(d.Presents, index)
	if len(d.presentStatus) == 0 {
		return gpu.PresentOptimal
	}
	s := d.presentStatus[0]
	d.presentStatus = d.presentStatus[1:]
	return s
}

var _ gpu.Device = (*Device)(nil)
