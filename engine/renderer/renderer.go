package renderer

import (
	"time"

	"github.com/google/uuid"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

const megabyte = 1 << 20

// Renderer ties the allocators, staging, descriptors, pipelines, targets and
// the frame cycle to one device. It is driven from a single goroutine.
type Renderer struct {
	device gpu.Device
	cfg    core.RendererConfig

	linear      *LinearAllocator
	slots       *SlotAllocator
	staging     *Staging
	pending     *PendingWrites
	descriptors *DescriptorAllocator
	targets     *Targets
	frames      *FrameController
	cache       gpu.PipelineCache

	pipelines []*PipelineBuilder
	samplers  []gpu.Sampler
	textures  map[uuid.UUID]*Texture
}

func New(device gpu.Device, cfg core.RendererConfig) (*Renderer, error) {
	r := &Renderer{
		device:   device,
		cfg:      cfg,
		pending:  NewPendingWrites(),
		textures: make(map[uuid.UUID]*Texture),
	}
	var err error
	if r.linear, err = NewLinearAllocator(device, uint64(cfg.DeviceMemoryMB)*megabyte); err != nil {
		return nil, core.WrapError(err, core.KindInit, "creating device memory")
	}
	if r.staging, err = NewStaging(device, uint64(cfg.StagingMemoryMB)*megabyte); err != nil {
		r.Shutdown()
		return nil, err
	}
	if r.slots, err = NewSlotAllocator(device, cfg.StorageSlots, uint64(cfg.StorageSlotSize)); err != nil {
		r.Shutdown()
		return nil, core.WrapError(err, core.KindInit, "creating storage slots")
	}
	r.targets = NewTargets(device, TargetConfig{
		Immediate:   cfg.Immediate,
		SampleCount: cfg.SampleCount,
		DepthFormat: device.Limits().DepthFormat,
	})
	r.frames, err = NewFrameController(device, r.targets, r.staging, r.pending, FrameConfig{
		AcquireTimeout: time.Duration(cfg.AcquireTimeoutMS) * time.Millisecond,
		ClearColor:     cfg.ClearColor,
	})
	if err != nil {
		r.Shutdown()
		return nil, err
	}
	if r.cache, err = OpenPipelineCache(device, cfg.PipelineCache); err != nil {
		r.Shutdown()
		return nil, err
	}
	core.LogInfo("renderer initialized: %d MB device memory, %d MB staging, %d storage slots",
		cfg.DeviceMemoryMB, cfg.StagingMemoryMB, cfg.StorageSlots)
	return r, nil
}

func (r *Renderer) Device() gpu.Device { return r.device }

// SetOutput attaches the renderer to a window of the given framebuffer size.
func (r *Renderer) SetOutput(window gpu.Window, width, height uint32) error {
	return r.targets.SetOutput(window, gpu.Extent2D{Width: width, Height: height})
}

func (r *Renderer) ResizeOutput(width, height uint32) {
	r.targets.Resize(width, height)
}

func (r *Renderer) Targets() *Targets { return r.targets }

func (r *Renderer) AcquireFrame() (FrameStatus, *Frame, error) {
	return r.frames.AcquireFrame()
}

// FrameReady reports whether the next AcquireFrame is expected to render.
// Staging uploads only when it is, or the copies pile up until a frame
// records them.
func (r *Renderer) FrameReady() bool { return r.frames.Ready() }

func (r *Renderer) SubmitFrame() error {
	return r.frames.SubmitFrame()
}

func (r *Renderer) Rebuild() error {
	return r.frames.Rebuild()
}

// TimelineValue is the frame timeline value the last submitted frame signals.
func (r *Renderer) TimelineValue() uint64 { return r.frames.TimelineValue() }

// DeclareDescriptors creates the descriptor pool and every set for the given
// layouts. It can only be called once.
func (r *Renderer) DeclareDescriptors(descs ...DescriptorLayoutDesc) error {
	if r.descriptors != nil {
		return core.Raise(core.ErrLayoutsDeclared, core.KindUsage, "descriptor layouts were already declared")
	}
	a, err := NewDescriptorAllocator(r.device, r.pending, descs)
	if err != nil {
		return err
	}
	r.descriptors = a
	return nil
}

// Descriptors returns nil until DeclareDescriptors has been called.
func (r *Renderer) Descriptors() *DescriptorAllocator { return r.descriptors }

// NewPipelineBuilder returns a builder for the current output: its color
// and depth formats and sample count are preset. The renderer destroys it
// at shutdown.
func (r *Renderer) NewPipelineBuilder() *PipelineBuilder {
	b := NewPipelineBuilder(r.device).
		SetColorFormat(r.targets.Format().Format).
		SetDepthFormat(r.targets.DepthFormat()).
		SetSampleCount(r.targets.SampleCount())
	r.pipelines = append(r.pipelines, b)
	return b
}

// CompilePipelines compiles builders through the pipeline cache. When one of
// them replaces a pipeline, in-flight frames are waited for first.
func (r *Renderer) CompilePipelines(builders ...*PipelineBuilder) error {
	for _, b := range builders {
		if b.Pipeline() != nil {
			if err := r.frames.Wait(); err != nil {
				return err
			}
			break
		}
	}
	return CompilePipelines(r.device, r.cache, builders...)
}

func (r *Renderer) NewVertexBuffer(size uint64) (gpu.Buffer, error) {
	buf, _, err := r.linear.NewBuffer(size, gpu.BufferUsageVertex|gpu.BufferUsageTransferDst)
	return buf, err
}

func (r *Renderer) NewIndexBuffer(size uint64) (gpu.Buffer, error) {
	buf, _, err := r.linear.NewBuffer(size, gpu.BufferUsageIndex|gpu.BufferUsageTransferDst)
	return buf, err
}

// NewStorageSlot hands out the next slot of the shared storage buffer.
func (r *Renderer) NewStorageSlot() (Slot, error) {
	return r.slots.Allocate()
}

func (r *Renderer) StorageBuffer() gpu.Buffer { return r.slots.Buffer() }

func (r *Renderer) Staging() *Staging { return r.staging }

// Shutdown waits for the device and destroys everything the renderer created,
// users of a resource before the resource. The device itself is left alone.
func (r *Renderer) Shutdown() {
	if err := r.device.WaitIdle(); err != nil {
		core.LogError("waiting for the device at shutdown: %v", err)
	}
	for _, b := range r.pipelines {
		b.Destroy()
	}
	r.pipelines = nil
	if r.descriptors != nil {
		r.descriptors.Destroy()
		r.descriptors = nil
	}
	if r.cache != nil {
		ClosePipelineCache(r.cache, r.cfg.PipelineCache)
		r.cache = nil
	}
	for _, s := range r.samplers {
		s.Destroy()
	}
	r.samplers = nil
	for id, tex := range r.textures {
		tex.View.Destroy()
		delete(r.textures, id)
	}
	if r.slots != nil {
		r.slots.Destroy()
		r.slots = nil
	}
	if r.linear != nil {
		r.linear.Destroy()
		r.linear = nil
	}
	if r.staging != nil {
		r.staging.Destroy()
		r.staging = nil
	}
	if r.frames != nil {
		r.frames.Destroy()
		r.frames = nil
	}
	if r.targets != nil {
		r.targets.Destroy()
		r.targets = nil
	}
	core.LogInfo("renderer shut down")
}
