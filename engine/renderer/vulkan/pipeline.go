package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

const maxPushConstantRanges = 32

type pipelineLayout struct {
	ctx    *Context
	handle vk.PipelineLayout
}

func (c *Context) NewPipelineLayout(sets []gpu.DescriptorSetLayout, pushConstants []gpu.PushConstantRange) (gpu.PipelineLayout, error) {
	if len(pushConstants) > maxPushConstantRanges {
		return nil, core.NewError(core.KindUsage, "cannot have more than %d push constant ranges, got %d", maxPushConstantRanges, len(pushConstants))
	}
	handles := make([]vk.DescriptorSetLayout, len(sets))
	for i, s := range sets {
		handles[i] = s.(*descriptorSetLayout).handle
	}
	ranges := make([]vk.PushConstantRange, len(pushConstants))
	for i, r := range pushConstants {
		ranges[i] = vk.PushConstantRange{
			StageFlags: vkShaderStages(r.Stages),
			Offset:     r.Offset,
			Size:       r.Size,
		}
	}
	info := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(handles)),
		PSetLayouts:            handles,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}
	l := &pipelineLayout{ctx: c}
	if err := check(vk.CreatePipelineLayout(c.device, &info, nil, &l.handle), core.KindInit, "vkCreatePipelineLayout"); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *pipelineLayout) Destroy() {
	if l.handle != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(l.ctx.device, l.handle, nil)
		l.handle = vk.NullPipelineLayout
	}
}

type pipelineCache struct {
	ctx    *Context
	handle vk.PipelineCache
}

func (c *Context) NewPipelineCache(initial []byte) (gpu.PipelineCache, error) {
	info := vk.PipelineCacheCreateInfo{SType: vk.StructureTypePipelineCacheCreateInfo}
	if len(initial) > 0 {
		info.InitialDataSize = uint(len(initial))
		info.PInitialData = unsafe.Pointer(&initial[0])
	}
	pc := &pipelineCache{ctx: c}
	if err := check(vk.CreatePipelineCache(c.device, &info, nil, &pc.handle), core.KindInit, "vkCreatePipelineCache"); err != nil {
		return nil, err
	}
	return pc, nil
}

func (pc *pipelineCache) Data() ([]byte, error) {
	var size uint
	if err := check(vk.GetPipelineCacheData(pc.ctx.device, pc.handle, &size, nil), core.KindSync, "vkGetPipelineCacheData"); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	data := make([]byte, size)
	if err := check(vk.GetPipelineCacheData(pc.ctx.device, pc.handle, &size, unsafe.Pointer(&data[0])), core.KindSync, "vkGetPipelineCacheData"); err != nil {
		return nil, err
	}
	return data[:size], nil
}

func (pc *pipelineCache) Destroy() {
	if pc.handle != vk.NullPipelineCache {
		vk.DestroyPipelineCache(pc.ctx.device, pc.handle, nil)
		pc.handle = vk.NullPipelineCache
	}
}

type pipeline struct {
	ctx    *Context
	handle vk.Pipeline
}

func (p *pipeline) Destroy() {
	if p.handle != vk.NullPipeline {
		vk.DestroyPipeline(p.ctx.device, p.handle, nil)
		p.handle = vk.NullPipeline
	}
}

// NewGraphicsPipelines compiles every info in one driver call. The render
// pass each pipeline is built against comes from the color format, depth
// format and sample count in the info.
func (c *Context) NewGraphicsPipelines(cache gpu.PipelineCache, infos []gpu.GraphicsPipelineInfo) ([]gpu.Pipeline, error) {
	if len(infos) == 0 {
		return nil, nil
	}
	createInfos := make([]vk.GraphicsPipelineCreateInfo, len(infos))
	for i := range infos {
		pass, err := c.passes.get(renderPassKey{
			color:   infos[i].ColorFormat,
			depth:   infos[i].DepthFormat,
			samples: infos[i].Multisample.Samples,
		})
		if err != nil {
			return nil, err
		}
		createInfos[i] = graphicsPipelineInfo(&infos[i], pass)
	}
	vcache := vk.NullPipelineCache
	if cache != nil {
		vcache = cache.(*pipelineCache).handle
	}

	handles := make([]vk.Pipeline, len(infos))
	err := c.locks.SafeCall(PipelineManagement, func() error {
		return check(vk.CreateGraphicsPipelines(c.device, vcache, uint32(len(createInfos)), createInfos, nil, handles),
			core.KindInit, "vkCreateGraphicsPipelines")
	})
	if err != nil {
		for _, h := range handles {
			if h != vk.NullPipeline {
				vk.DestroyPipeline(c.device, h, nil)
			}
		}
		return nil, err
	}
	out := make([]gpu.Pipeline, len(handles))
	for i, h := range handles {
		out[i] = &pipeline{ctx: c, handle: h}
	}
	core.LogDebug("%d graphics pipelines created.", len(out))
	return out, nil
}

func graphicsPipelineInfo(info *gpu.GraphicsPipelineInfo, pass vk.RenderPass) vk.GraphicsPipelineCreateInfo {
	stages := make([]vk.PipelineShaderStageCreateInfo, len(info.Stages))
	for i, s := range info.Stages {
		stages[i] = s.(*shaderModule).stageInfo()
	}

	attributes := make([]vk.VertexInputAttributeDescription, len(info.VertexInput.Attributes))
	for i, a := range info.VertexInput.Attributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   vkFormat(a.Format),
			Offset:   a.Offset,
		}
	}
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if info.VertexInput.Stride > 0 {
		vertexInput.VertexBindingDescriptionCount = 1
		vertexInput.PVertexBindingDescriptions = []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    info.VertexInput.Stride,
			InputRate: vk.VertexInputRateVertex,
		}}
		vertexInput.VertexAttributeDescriptionCount = uint32(len(attributes))
		vertexInput.PVertexAttributeDescriptions = attributes
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vkTopology(info.Topology),
	}

	// viewport and scissor are dynamic
	viewport := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	raster := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vkPolygonMode(info.Rasterization.PolygonMode),
		CullMode:    vkCullMode(info.Rasterization.CullMode),
		FrontFace:   vkFrontFace(info.Rasterization.FrontFace),
		LineWidth:   info.Rasterization.LineWidth,
	}

	samples := info.Multisample.Samples
	if samples == 0 {
		samples = 1
	}
	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vkSampleCount(samples),
		MinSampleShading:     1.0,
	}

	depth := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vkBool(info.DepthStencil.Test),
		DepthWriteEnable: vkBool(info.DepthStencil.Write),
		DepthCompareOp:   vkCompareOp(info.DepthStencil.Compare),
	}

	blend := info.Blend
	attachment := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vkBool(blend.Enable),
		SrcColorBlendFactor: vkBlendFactor(blend.SrcColor),
		DstColorBlendFactor: vkBlendFactor(blend.DstColor),
		ColorBlendOp:        vkBlendOp(blend.ColorOp),
		SrcAlphaBlendFactor: vkBlendFactor(blend.SrcAlpha),
		DstAlphaBlendFactor: vkBlendFactor(blend.DstAlpha),
		AlphaBlendOp:        vkBlendOp(blend.AlphaOp),
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{attachment},
	}

	dynamic := make([]vk.DynamicState, len(info.Dynamic))
	for i, d := range info.Dynamic {
		dynamic[i] = vkDynamicState(d)
	}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamic)),
		PDynamicStates:    dynamic,
	}

	return vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewport,
		PRasterizationState: &raster,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depth,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              info.Layout.(*pipelineLayout).handle,
		RenderPass:          pass,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}
}
