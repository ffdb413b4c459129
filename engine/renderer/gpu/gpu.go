// Package gpu declares the device contract the renderer is written against.
// The vulkan package implements it; gputest provides an in-memory fake.
package gpu

import (
	"time"
	"unsafe"
)

// Window is the platform window a surface is created from. *glfw.Window satisfies it.
type Window interface {
	CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error)
	GetFramebufferSize() (int, int)
}

type Device interface {
	Limits() Limits

	AllocateMemory(size uint64, kind MemoryKind) (Memory, error)
	NewBuffer(size uint64, usage BufferUsage) (Buffer, error)
	NewImage(desc ImageDesc) (Image, error)
	NewSampler(desc SamplerDesc) (Sampler, error)

	NewDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, error)
	NewDescriptorPool(maxSets uint32, sizes []DescriptorPoolSize) (DescriptorPool, error)
	UpdateDescriptorSets(writes []DescriptorWrite)

	NewShaderModule(stage ShaderStage, code []byte) (ShaderModule, error)
	NewPipelineLayout(sets []DescriptorSetLayout, pushConstants []PushConstantRange) (PipelineLayout, error)
	NewPipelineCache(initial []byte) (PipelineCache, error)
	NewGraphicsPipelines(cache PipelineCache, infos []GraphicsPipelineInfo) ([]Pipeline, error)

	NewCommandBuffer() (CommandBuffer, error)
	NewSemaphore() (Semaphore, error)
	NewTimeline(initial uint64) (Timeline, error)

	NewSurface(window Window) (Surface, error)
	NewSwapchain(desc SwapchainDesc, old Swapchain) (Swapchain, error)
	NewFramebuffer(desc FramebufferDesc) (Framebuffer, error)

	// Submit hands all batches to the queue in one call; they start in order.
	Submit(batches ...SubmitBatch) error
	WaitIdle() error
}

type Destroyer interface {
	Destroy()
}

type Memory interface {
	Destroyer
	Size() uint64
	Kind() MemoryKind
	// Map returns the whole allocation. Only valid for MemoryHostVisible; the
	// mapping lives until Destroy.
	Map() ([]byte, error)
}

type Buffer interface {
	Destroyer
	Size() uint64
	Requirements() MemoryRequirements
	Bind(mem Memory, offset uint64) error
}

type Image interface {
	Destroyer
	Format() Format
	Extent() Extent2D
	Requirements() MemoryRequirements
	Bind(mem Memory, offset uint64) error
	NewView() (ImageView, error)
}

type ImageView interface {
	Destroyer
	Image() Image
}

type Sampler interface {
	Destroyer
}

type DescriptorSetLayout interface {
	Destroyer
	Bindings() []DescriptorBinding
}

type DescriptorPool interface {
	Destroyer
	Allocate(layout DescriptorSetLayout, count int) ([]DescriptorSet, error)
}

type DescriptorSet interface {
	Layout() DescriptorSetLayout
}

type ShaderModule interface {
	Destroyer
	Stage() ShaderStage
}

type PipelineLayout interface {
	Destroyer
}

type PipelineCache interface {
	Destroyer
	Data() ([]byte, error)
}

type Pipeline interface {
	Destroyer
}

type CommandBuffer interface {
	Destroyer
	Reset() error
	Begin() error
	End() error

	CopyBuffer(src, dst Buffer, regions ...BufferCopyRegion)
	Transition(barriers ...ImageBarrier)
	CopyBufferToImage(src Buffer, dst Image, regions ...BufferImageCopy)

	BeginPass(begin RenderPassBegin)
	EndPass()
	// SetViewport sets the dynamic viewport and scissor to cover extent.
	SetViewport(extent Extent2D)
	BindPipeline(p Pipeline)
	BindDescriptorSets(layout PipelineLayout, first uint32, sets ...DescriptorSet)
	BindVertexBuffer(buf Buffer, offset uint64)
	BindIndexBuffer(buf Buffer, offset uint64, kind IndexType)
	PushConstants(layout PipelineLayout, stages ShaderStage, offset uint32, data []byte)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
}

type Semaphore interface {
	Destroyer
}

// Timeline is a counting semaphore.
type Timeline interface {
	Semaphore
	// Wait blocks until the counter reaches value.
	Wait(value uint64) error
	Value() (uint64, error)
}

type Surface interface {
	Destroyer
	Support() (SurfaceSupport, error)
}

type Swapchain interface {
	Destroyer
	Images() []Image
	Format() SurfaceFormat
	Extent() Extent2D
	// Acquire signals sem once the returned image is ready to be rendered to.
	// Suboptimal and out-of-date are statuses, not errors.
	Acquire(sem Semaphore, timeout time.Duration) (uint32, PresentStatus, error)
	Present(index uint32, wait Semaphore) (PresentStatus, error)
}

type Framebuffer interface {
	Destroyer
	Extent() Extent2D
}
