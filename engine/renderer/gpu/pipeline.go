package gpu

type PrimitiveTopology int

const (
	TopologyTriangleList PrimitiveTopology = iota
	TopologyTriangleStrip
	TopologyLineList
	TopologyPointList
)

type PolygonMode int

const (
	PolygonModeFill PolygonMode = iota
	PolygonModeLine
	PolygonModePoint
)

type CullMode int

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
)

type FrontFace int

const (
	FrontFaceCounterClockwise FrontFace = iota
	FrontFaceClockwise
)

type CompareOp int

const (
	CompareNever CompareOp = iota
	CompareLess
	CompareLessOrEqual
	CompareAlways
)

type BlendFactor int

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcAlpha
	BlendOneMinusSrcAlpha
)

type BlendOp int

const (
	BlendOpAdd BlendOp = iota
	BlendOpSubtract
)

type DynamicState int

const (
	DynamicViewport DynamicState = iota
	DynamicScissor
)

type VertexAttribute struct {
	Location uint32
	Format   Format
	Offset   uint32
}

// VertexInputState describes the single packed vertex binding (binding 0).
type VertexInputState struct {
	Stride     uint32
	Attributes []VertexAttribute
}

type RasterizationState struct {
	PolygonMode PolygonMode
	CullMode    CullMode
	FrontFace   FrontFace
	LineWidth   float32
}

type MultisampleState struct {
	Samples uint32
}

type DepthStencilState struct {
	Test    bool
	Write   bool
	Compare CompareOp
}

type ColorBlendState struct {
	Enable   bool
	SrcColor BlendFactor
	DstColor BlendFactor
	ColorOp  BlendOp
	SrcAlpha BlendFactor
	DstAlpha BlendFactor
	AlphaOp  BlendOp
}

// GraphicsPipelineInfo is everything a backend needs to compile one pipeline.
// Slices alias the storage of whoever built it; do not keep it past the compile call.
type GraphicsPipelineInfo struct {
	Stages        []ShaderModule
	VertexInput   VertexInputState
	Topology      PrimitiveTopology
	Rasterization RasterizationState
	Multisample   MultisampleState
	DepthStencil  DepthStencilState
	Blend         ColorBlendState
	Dynamic       []DynamicState
	Layout        PipelineLayout
	ColorFormat   Format
	DepthFormat   Format
}
