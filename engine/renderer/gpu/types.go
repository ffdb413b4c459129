package gpu

// Format describes the texel layout of an image or the layout of a vertex attribute.
type Format int

const (
	FormatUndefined Format = iota
	FormatR8Unorm
	FormatRGBA8Unorm
	FormatRGBA8SRGB
	FormatBGRA8Unorm
	FormatBGRA8SRGB
	FormatD32Float
	FormatD24UnormS8Uint
	FormatRG32Float
	FormatRGB32Float
	FormatRGBA32Float
)

// BytesPerPixel returns the byte size of one texel (or one vertex attribute), 0 when undefined.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatR8Unorm:
		return 1
	case FormatRGBA8Unorm, FormatRGBA8SRGB, FormatBGRA8Unorm, FormatBGRA8SRGB, FormatD32Float, FormatD24UnormS8Uint:
		return 4
	case FormatRG32Float:
		return 8
	case FormatRGB32Float:
		return 12
	case FormatRGBA32Float:
		return 16
	default:
		return 0
	}
}

func (f Format) IsDepth() bool {
	return f == FormatD32Float || f == FormatD24UnormS8Uint
}

func (f Format) String() string {
	switch f {
	case FormatR8Unorm:
		return "R8_UNORM"
	case FormatRGBA8Unorm:
		return "R8G8B8A8_UNORM"
	case FormatRGBA8SRGB:
		return "R8G8B8A8_SRGB"
	case FormatBGRA8Unorm:
		return "B8G8R8A8_UNORM"
	case FormatBGRA8SRGB:
		return "B8G8R8A8_SRGB"
	case FormatD32Float:
		return "D32_SFLOAT"
	case FormatD24UnormS8Uint:
		return "D24_UNORM_S8_UINT"
	case FormatRG32Float:
		return "R32G32_SFLOAT"
	case FormatRGB32Float:
		return "R32G32B32_SFLOAT"
	case FormatRGBA32Float:
		return "R32G32B32A32_SFLOAT"
	default:
		return "UNDEFINED"
	}
}

type ColorSpace int

const (
	ColorSpaceSRGBNonlinear ColorSpace = iota
	ColorSpaceOther
)

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type PresentMode int

const (
	PresentModeFIFO PresentMode = iota
	PresentModeFIFORelaxed
	PresentModeMailbox
	PresentModeImmediate
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeFIFORelaxed:
		return "fifo-relaxed"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeImmediate:
		return "immediate"
	default:
		return "fifo"
	}
}

type CompositeAlpha uint32

const (
	CompositeAlphaOpaque CompositeAlpha = 1 << iota
	CompositeAlphaPreMultiplied
	CompositeAlphaPostMultiplied
	CompositeAlphaInherit
)

// UndefinedExtent is the current-extent value a surface reports when the
// swapchain decides the size.
const UndefinedExtent = 0xFFFFFFFF

type Extent2D struct {
	Width  uint32
	Height uint32
}

func (e Extent2D) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

type Offset2D struct {
	X int32
	Y int32
}

type SurfaceCapabilities struct {
	MinImageCount uint32
	// Zero means no upper bound.
	MaxImageCount           uint32
	CurrentExtent           Extent2D
	MinImageExtent          Extent2D
	MaxImageExtent          Extent2D
	SupportedCompositeAlpha CompositeAlpha
}

type SurfaceSupport struct {
	Capabilities SurfaceCapabilities
	Formats      []SurfaceFormat
	PresentModes []PresentMode
}

// Limits are the adapter values the allocators align to.
type Limits struct {
	BufferImageGranularity           uint64
	NonCoherentAtomSize              uint64
	MinUniformBufferOffsetAlignment  uint64
	MinStorageBufferOffsetAlignment  uint64
	OptimalBufferCopyOffsetAlignment uint64
	MaxImageDimension2D              uint32
	MaxSamplerAnisotropy             float32
	// Preferred depth attachment format; undefined lets the renderer pick.
	DepthFormat Format
}

type MemoryKind int

const (
	// Device local, not host visible.
	MemoryDeviceLocal MemoryKind = iota
	// Host visible and coherent, mapped persistently.
	MemoryHostVisible
)

func (k MemoryKind) String() string {
	if k == MemoryHostVisible {
		return "host-visible"
	}
	return "device-local"
}

type MemoryRequirements struct {
	Size      uint64
	Alignment uint64
}

type BufferUsage uint32

const (
	BufferUsageTransferSrc BufferUsage = 1 << iota
	BufferUsageTransferDst
	BufferUsageVertex
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
)

type ImageUsage uint32

const (
	ImageUsageTransferDst ImageUsage = 1 << iota
	ImageUsageSampled
	ImageUsageColorAttachment
	ImageUsageDepthStencilAttachment
	ImageUsageTransientAttachment
)

type ImageDesc struct {
	Format  Format
	Extent  Extent2D
	Usage   ImageUsage
	Samples uint32
}

type ImageLayout int

const (
	ImageLayoutUndefined ImageLayout = iota
	ImageLayoutTransferDst
	ImageLayoutShaderReadOnly
	ImageLayoutColorAttachment
	ImageLayoutDepthStencilAttachment
	ImageLayoutPresentSrc
)

func (l ImageLayout) String() string {
	switch l {
	case ImageLayoutTransferDst:
		return "transfer-dst"
	case ImageLayoutShaderReadOnly:
		return "shader-read-only"
	case ImageLayoutColorAttachment:
		return "color-attachment"
	case ImageLayoutDepthStencilAttachment:
		return "depth-stencil-attachment"
	case ImageLayoutPresentSrc:
		return "present-src"
	default:
		return "undefined"
	}
}

type Filter int

const (
	FilterNearest Filter = iota
	FilterLinear
)

type AddressMode int

const (
	AddressModeRepeat AddressMode = iota
	AddressModeMirroredRepeat
	AddressModeClampToEdge
	AddressModeClampToBorder
)

type SamplerDesc struct {
	Filter      Filter
	AddressMode AddressMode
	// Zero disables anisotropic filtering.
	Anisotropy float32
}

type ShaderStage uint32

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment

	ShaderStageAllGraphics = ShaderStageVertex | ShaderStageFragment
)

type DescriptorType int

const (
	DescriptorCombinedImageSampler DescriptorType = iota
	DescriptorSampledImage
	DescriptorSampler
	DescriptorUniformBuffer
	DescriptorStorageBuffer
	DescriptorUniformBufferDynamic
	DescriptorStorageBufferDynamic

	DescriptorTypeCount
)

// IsImage reports whether writes of this type carry image infos rather than buffer infos.
func (t DescriptorType) IsImage() bool {
	return t == DescriptorCombinedImageSampler || t == DescriptorSampledImage || t == DescriptorSampler
}

type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStage
}

type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

type DescriptorImageInfo struct {
	Sampler Sampler
	View    ImageView
	Layout  ImageLayout
}

type DescriptorBufferInfo struct {
	Buffer Buffer
	Offset uint64
	Range  uint64
}

// DescriptorWrite updates one binding of one set. Images is used for image
// types, Buffers for buffer types.
type DescriptorWrite struct {
	Set          DescriptorSet
	Binding      uint32
	ArrayElement uint32
	Type         DescriptorType
	Images       []DescriptorImageInfo
	Buffers      []DescriptorBufferInfo
}

type PipelineStage uint32

const (
	PipelineStageTopOfPipe PipelineStage = 1 << iota
	PipelineStageVertexInput
	PipelineStageFragmentShader
	PipelineStageEarlyFragmentTests
	PipelineStageColorAttachmentOutput
	PipelineStageTransfer
	PipelineStageBottomOfPipe
	PipelineStageAllCommands
)

type ImageBarrier struct {
	Image     Image
	OldLayout ImageLayout
	NewLayout ImageLayout
}

type BufferCopyRegion struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

type BufferImageCopy struct {
	BufferOffset uint64
	ImageOffset  Offset2D
	ImageExtent  Extent2D
}

type IndexType int

const (
	IndexTypeUint16 IndexType = iota
	IndexTypeUint32
)

type RenderPassBegin struct {
	Framebuffer Framebuffer
	ClearColor  [4]float32
	ClearDepth  float32
}

// SemaphoreWait makes a submission wait on a semaphore at a pipeline stage.
// Value is read only for timeline semaphores.
type SemaphoreWait struct {
	Semaphore Semaphore
	Value     uint64
	Stage     PipelineStage
}

type SemaphoreSignal struct {
	Semaphore Semaphore
	Value     uint64
}

type SubmitBatch struct {
	Commands []CommandBuffer
	Waits    []SemaphoreWait
	Signals  []SemaphoreSignal
}

type PresentStatus int

const (
	PresentOptimal PresentStatus = iota
	PresentSuboptimal
	PresentOutOfDate
)

func (s PresentStatus) String() string {
	switch s {
	case PresentSuboptimal:
		return "suboptimal"
	case PresentOutOfDate:
		return "out-of-date"
	default:
		return "optimal"
	}
}

type SwapchainDesc struct {
	Surface        Surface
	ImageCount     uint32
	Format         SurfaceFormat
	Extent         Extent2D
	PresentMode    PresentMode
	CompositeAlpha CompositeAlpha
}

// FramebufferDesc lists attachments in render pass order: color, depth, then
// the resolve target when Samples > 1.
type FramebufferDesc struct {
	ColorFormat Format
	DepthFormat Format
	Samples     uint32
	Attachments []ImageView
	Extent      Extent2D
}

type PushConstantRange struct {
	Stages ShaderStage
	Offset uint32
	Size   uint32
}
