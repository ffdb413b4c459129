package renderer

import (
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

type BlendMode int

const (
	BlendNone BlendMode = iota
	BlendAlpha
	BlendAdditive
	BlendPremultiplied
)

// PipelineBuilder holds the full state of one graphics pipeline. Setters
// overwrite what they configure. The builder owns its shader modules and the
// set layouts it created, and destroys them in Destroy.
type PipelineBuilder struct {
	device gpu.Device

	stages        []gpu.ShaderModule
	vertexInput   gpu.VertexInputState
	topology      gpu.PrimitiveTopology
	rasterization gpu.RasterizationState
	multisample   gpu.MultisampleState
	depthStencil  gpu.DepthStencilState
	blend         gpu.ColorBlendState
	dynamic       []gpu.DynamicState
	colorFormat   gpu.Format
	depthFormat   gpu.Format
	pushConstants []gpu.PushConstantRange
	setLayouts    []gpu.DescriptorSetLayout
	ownedLayouts  []gpu.DescriptorSetLayout

	pipeline gpu.Pipeline
	layout   gpu.PipelineLayout
	// set when the push constants or set layouts changed after the layout was built
	layoutStale bool
}

func NewPipelineBuilder(device gpu.Device) *PipelineBuilder {
	return &PipelineBuilder{
		device:   device,
		topology: gpu.TopologyTriangleList,
		rasterization: gpu.RasterizationState{
			PolygonMode: gpu.PolygonModeFill,
			CullMode:    gpu.CullModeNone,
			FrontFace:   gpu.FrontFaceCounterClockwise,
			LineWidth:   1.0,
		},
		multisample:  gpu.MultisampleState{Samples: 1},
		depthStencil: gpu.DepthStencilState{Compare: gpu.CompareLessOrEqual},
		dynamic:      []gpu.DynamicState{gpu.DynamicViewport, gpu.DynamicScissor},
	}
}

// SetShaderModules installs the vertex and fragment stages. Modules replaced
// by this call are destroyed.
func (b *PipelineBuilder) SetShaderModules(vert, frag gpu.ShaderModule) *PipelineBuilder {
	for _, old := range b.stages {
		if old != vert && old != frag {
			old.Destroy()
		}
	}
	b.stages = append(b.stages[:0], vert, frag)
	return b
}

// SetVertexFormat describes the single packed vertex binding.
func (b *PipelineBuilder) SetVertexFormat(stride uint32, attrs ...gpu.VertexAttribute) *PipelineBuilder {
	b.vertexInput.Stride = stride
	b.vertexInput.Attributes = append(b.vertexInput.Attributes[:0], attrs...)
	return b
}

func (b *PipelineBuilder) SetTopology(t gpu.PrimitiveTopology) *PipelineBuilder {
	b.topology = t
	return b
}

func (b *PipelineBuilder) Rasterization(polygon gpu.PolygonMode, cull gpu.CullMode, front gpu.FrontFace) *PipelineBuilder {
	b.rasterization.PolygonMode = polygon
	b.rasterization.CullMode = cull
	b.rasterization.FrontFace = front
	return b
}

func (b *PipelineBuilder) Blending(mode BlendMode) *PipelineBuilder {
	switch mode {
	case BlendAlpha:
		b.blend = gpu.ColorBlendState{
			Enable:   true,
			SrcColor: gpu.BlendSrcAlpha, DstColor: gpu.BlendOneMinusSrcAlpha, ColorOp: gpu.BlendOpAdd,
			SrcAlpha: gpu.BlendOne, DstAlpha: gpu.BlendOneMinusSrcAlpha, AlphaOp: gpu.BlendOpAdd,
		}
	case BlendAdditive:
		b.blend = gpu.ColorBlendState{
			Enable:   true,
			SrcColor: gpu.BlendSrcAlpha, DstColor: gpu.BlendOne, ColorOp: gpu.BlendOpAdd,
			SrcAlpha: gpu.BlendOne, DstAlpha: gpu.BlendOne, AlphaOp: gpu.BlendOpAdd,
		}
	case BlendPremultiplied:
		b.blend = gpu.ColorBlendState{
			Enable:   true,
			SrcColor: gpu.BlendOne, DstColor: gpu.BlendOneMinusSrcAlpha, ColorOp: gpu.BlendOpAdd,
			SrcAlpha: gpu.BlendOne, DstAlpha: gpu.BlendOneMinusSrcAlpha, AlphaOp: gpu.BlendOpAdd,
		}
	default:
		b.blend = gpu.ColorBlendState{}
	}
	return b
}

func (b *PipelineBuilder) SetDepthTesting(test, write bool) *PipelineBuilder {
	b.depthStencil.Test = test
	b.depthStencil.Write = write
	return b
}

func (b *PipelineBuilder) SetSampleCount(n uint32) *PipelineBuilder {
	b.multisample.Samples = max(n, 1)
	return b
}

func (b *PipelineBuilder) SetColorFormat(f gpu.Format) *PipelineBuilder {
	b.colorFormat = f
	return b
}

func (b *PipelineBuilder) SetDepthFormat(f gpu.Format) *PipelineBuilder {
	b.depthFormat = f
	return b
}

func (b *PipelineBuilder) SetPushConstants(ranges ...gpu.PushConstantRange) *PipelineBuilder {
	b.pushConstants = append(b.pushConstants[:0], ranges...)
	b.layoutStale = true
	return b
}

// SetDescriptorSetLayouts sets the layouts bound at set indices 0..n-1.
func (b *PipelineBuilder) SetDescriptorSetLayouts(layouts ...gpu.DescriptorSetLayout) *PipelineBuilder {
	b.setLayouts = append(b.setLayouts[:0], layouts...)
	b.layoutStale = true
	return b
}

// NewDescriptorSetLayout creates a layout owned by the builder and appends it
// to the pipeline's set layouts.
func (b *PipelineBuilder) NewDescriptorSetLayout(bindings ...gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	l, err := b.device.NewDescriptorSetLayout(bindings)
	if err != nil {
		return nil, core.WrapError(err, core.KindInit, "creating descriptor set layout")
	}
	b.ownedLayouts = append(b.ownedLayouts, l)
	b.setLayouts = append(b.setLayouts, l)
	b.layoutStale = true
	return l, nil
}

// CreateInfo returns a view of the builder's state. Its slices alias the
// builder and are only valid until the next setter call; pass it straight to
// the compile call.
func (b *PipelineBuilder) CreateInfo() gpu.GraphicsPipelineInfo {
	return gpu.GraphicsPipelineInfo{
		Stages:        b.stages,
		VertexInput:   b.vertexInput,
		Topology:      b.topology,
		Rasterization: b.rasterization,
		Multisample:   b.multisample,
		DepthStencil:  b.depthStencil,
		Blend:         b.blend,
		Dynamic:       b.dynamic,
		Layout:        b.layout,
		ColorFormat:   b.colorFormat,
		DepthFormat:   b.depthFormat,
	}
}

func (b *PipelineBuilder) Pipeline() gpu.Pipeline { return b.pipeline }

func (b *PipelineBuilder) Layout() gpu.PipelineLayout { return b.layout }

func (b *PipelineBuilder) SetLayouts() []gpu.DescriptorSetLayout { return b.setLayouts }

// Destroy releases the pipeline and its layout before the shader modules and
// set layouts they were built from.
func (b *PipelineBuilder) Destroy() {
	if b.pipeline != nil {
		b.pipeline.Destroy()
		b.pipeline = nil
	}
	if b.layout != nil {
		b.layout.Destroy()
		b.layout = nil
	}
	for _, m := range b.stages {
		m.Destroy()
	}
	b.stages = nil
	for _, l := range b.ownedLayouts {
		l.Destroy()
	}
	b.ownedLayouts = nil
	b.setLayouts = nil
}

// CompilePipelines builds the pipeline layouts that are missing or stale,
// then compiles every builder in one device call. Builders that already had
// a pipeline get the new one and the old pipeline and layout are destroyed;
// the caller makes sure the device no longer uses them.
func CompilePipelines(device gpu.Device, cache gpu.PipelineCache, builders ...*PipelineBuilder) error {
	if len(builders) == 0 {
		return nil
	}
	layouts := make([]gpu.PipelineLayout, len(builders))
	// layouts built here that never made it into a builder
	discard := func() {
		for i, l := range layouts {
			if l != nil && l != builders[i].layout {
				l.Destroy()
			}
		}
	}
	for i, b := range builders {
		if len(b.stages) != 2 {
			discard()
			return core.NewError(core.KindUsage, "pipeline %d has no shader modules", i)
		}
		if b.colorFormat == gpu.FormatUndefined {
			discard()
			return core.NewError(core.KindUsage, "pipeline %d has no color format", i)
		}
		layouts[i] = b.layout
		if b.layout == nil || b.layoutStale {
			layout, err := device.NewPipelineLayout(b.setLayouts, b.pushConstants)
			if err != nil {
				layouts[i] = nil
				discard()
				return core.WrapError(err, core.KindInit, "creating layout of pipeline %d", i)
			}
			layouts[i] = layout
		}
	}

	infos := make([]gpu.GraphicsPipelineInfo, len(builders))
	for i, b := range builders {
		infos[i] = b.CreateInfo()
		infos[i].Layout = layouts[i]
	}
	pipelines, err := device.NewGraphicsPipelines(cache, infos)
	if err != nil {
		discard()
		return core.WrapError(err, core.KindInit, "compiling %d pipelines", len(builders))
	}
	for i, b := range builders {
		if b.pipeline != nil {
			b.pipeline.Destroy()
		}
		b.pipeline = pipelines[i]
		if layouts[i] != b.layout && b.layout != nil {
			b.layout.Destroy()
		}
		b.layout = layouts[i]
		b.layoutStale = false
	}
	core.LogDebug("compiled %d graphics pipelines", len(builders))
	return nil
}
