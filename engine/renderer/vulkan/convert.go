package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

var formats = map[gpu.Format]vk.Format{
	gpu.FormatR8Unorm:        vk.FormatR8Unorm,
	gpu.FormatRGBA8Unorm:     vk.FormatR8g8b8a8Unorm,
	gpu.FormatRGBA8SRGB:      vk.FormatR8g8b8a8Srgb,
	gpu.FormatBGRA8Unorm:     vk.FormatB8g8r8a8Unorm,
	gpu.FormatBGRA8SRGB:      vk.FormatB8g8r8a8Srgb,
	gpu.FormatD32Float:       vk.FormatD32Sfloat,
	gpu.FormatD24UnormS8Uint: vk.FormatD24UnormS8Uint,
	gpu.FormatRG32Float:      vk.FormatR32g32Sfloat,
	gpu.FormatRGB32Float:     vk.FormatR32g32b32Sfloat,
	gpu.FormatRGBA32Float:    vk.FormatR32g32b32a32Sfloat,
}

func vkFormat(f gpu.Format) vk.Format {
	if v, ok := formats[f]; ok {
		return v
	}
	return vk.FormatUndefined
}

// gpuFormat maps back; formats the renderer does not know become FormatUndefined.
func gpuFormat(f vk.Format) gpu.Format {
	for k, v := range formats {
		if v == f {
			return k
		}
	}
	return gpu.FormatUndefined
}

func vkColorSpace(cs gpu.ColorSpace) vk.ColorSpace {
	return vk.ColorSpaceSrgbNonlinear
}

func gpuColorSpace(cs vk.ColorSpace) gpu.ColorSpace {
	if cs == vk.ColorSpaceSrgbNonlinear {
		return gpu.ColorSpaceSRGBNonlinear
	}
	return gpu.ColorSpaceOther
}

func vkPresentMode(m gpu.PresentMode) vk.PresentMode {
	switch m {
	case gpu.PresentModeFIFORelaxed:
		return vk.PresentModeFifoRelaxed
	case gpu.PresentModeMailbox:
		return vk.PresentModeMailbox
	case gpu.PresentModeImmediate:
		return vk.PresentModeImmediate
	default:
		return vk.PresentModeFifo
	}
}

func gpuPresentMode(m vk.PresentMode) (gpu.PresentMode, bool) {
	switch m {
	case vk.PresentModeFifo:
		return gpu.PresentModeFIFO, true
	case vk.PresentModeFifoRelaxed:
		return gpu.PresentModeFIFORelaxed, true
	case vk.PresentModeMailbox:
		return gpu.PresentModeMailbox, true
	case vk.PresentModeImmediate:
		return gpu.PresentModeImmediate, true
	}
	return 0, false
}

func vkCompositeAlpha(a gpu.CompositeAlpha) vk.CompositeAlphaFlagBits {
	switch a {
	case gpu.CompositeAlphaPreMultiplied:
		return vk.CompositeAlphaPreMultipliedBit
	case gpu.CompositeAlphaPostMultiplied:
		return vk.CompositeAlphaPostMultipliedBit
	case gpu.CompositeAlphaInherit:
		return vk.CompositeAlphaInheritBit
	default:
		return vk.CompositeAlphaOpaqueBit
	}
}

func gpuCompositeAlpha(flags vk.CompositeAlphaFlags) gpu.CompositeAlpha {
	var a gpu.CompositeAlpha
	bits := vk.CompositeAlphaFlagBits(flags)
	if bits&vk.CompositeAlphaOpaqueBit != 0 {
		a |= gpu.CompositeAlphaOpaque
	}
	if bits&vk.CompositeAlphaPreMultipliedBit != 0 {
		a |= gpu.CompositeAlphaPreMultiplied
	}
	if bits&vk.CompositeAlphaPostMultipliedBit != 0 {
		a |= gpu.CompositeAlphaPostMultiplied
	}
	if bits&vk.CompositeAlphaInheritBit != 0 {
		a |= gpu.CompositeAlphaInherit
	}
	return a
}

func vkBufferUsage(u gpu.BufferUsage) vk.BufferUsageFlags {
	var f vk.BufferUsageFlagBits
	if u&gpu.BufferUsageTransferSrc != 0 {
		f |= vk.BufferUsageTransferSrcBit
	}
	if u&gpu.BufferUsageTransferDst != 0 {
		f |= vk.BufferUsageTransferDstBit
	}
	if u&gpu.BufferUsageVertex != 0 {
		f |= vk.BufferUsageVertexBufferBit
	}
	if u&gpu.BufferUsageIndex != 0 {
		f |= vk.BufferUsageIndexBufferBit
	}
	if u&gpu.BufferUsageUniform != 0 {
		f |= vk.BufferUsageUniformBufferBit
	}
	if u&gpu.BufferUsageStorage != 0 {
		f |= vk.BufferUsageStorageBufferBit
	}
	return vk.BufferUsageFlags(f)
}

func vkImageUsage(u gpu.ImageUsage) vk.ImageUsageFlags {
	var f vk.ImageUsageFlagBits
	if u&gpu.ImageUsageTransferDst != 0 {
		f |= vk.ImageUsageTransferDstBit
	}
	if u&gpu.ImageUsageSampled != 0 {
		f |= vk.ImageUsageSampledBit
	}
	if u&gpu.ImageUsageColorAttachment != 0 {
		f |= vk.ImageUsageColorAttachmentBit
	}
	if u&gpu.ImageUsageDepthStencilAttachment != 0 {
		f |= vk.ImageUsageDepthStencilAttachmentBit
	}
	if u&gpu.ImageUsageTransientAttachment != 0 {
		f |= vk.ImageUsageTransientAttachmentBit
	}
	return vk.ImageUsageFlags(f)
}

func vkSampleCount(n uint32) vk.SampleCountFlagBits {
	switch n {
	case 2:
		return vk.SampleCount2Bit
	case 4:
		return vk.SampleCount4Bit
	case 8:
		return vk.SampleCount8Bit
	case 16:
		return vk.SampleCount16Bit
	default:
		return vk.SampleCount1Bit
	}
}

func vkImageLayout(l gpu.ImageLayout) vk.ImageLayout {
	switch l {
	case gpu.ImageLayoutTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	case gpu.ImageLayoutShaderReadOnly:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case gpu.ImageLayoutColorAttachment:
		return vk.ImageLayoutColorAttachmentOptimal
	case gpu.ImageLayoutDepthStencilAttachment:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case gpu.ImageLayoutPresentSrc:
		return vk.ImageLayoutPresentSrc
	default:
		return vk.ImageLayoutUndefined
	}
}

// layoutAccess returns the access mask and pipeline stage that use an image in layout l.
func layoutAccess(l gpu.ImageLayout) (vk.AccessFlagBits, vk.PipelineStageFlagBits) {
	switch l {
	case gpu.ImageLayoutTransferDst:
		return vk.AccessTransferWriteBit, vk.PipelineStageTransferBit
	case gpu.ImageLayoutShaderReadOnly:
		return vk.AccessShaderReadBit, vk.PipelineStageFragmentShaderBit
	case gpu.ImageLayoutColorAttachment:
		return vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit, vk.PipelineStageColorAttachmentOutputBit
	case gpu.ImageLayoutDepthStencilAttachment:
		return vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit, vk.PipelineStageEarlyFragmentTestsBit
	case gpu.ImageLayoutPresentSrc:
		return 0, vk.PipelineStageBottomOfPipeBit
	default:
		return 0, vk.PipelineStageTopOfPipeBit
	}
}

func vkFilter(f gpu.Filter) vk.Filter {
	if f == gpu.FilterLinear {
		return vk.FilterLinear
	}
	return vk.FilterNearest
}

func vkAddressMode(m gpu.AddressMode) vk.SamplerAddressMode {
	switch m {
	case gpu.AddressModeMirroredRepeat:
		return vk.SamplerAddressModeMirroredRepeat
	case gpu.AddressModeClampToEdge:
		return vk.SamplerAddressModeClampToEdge
	case gpu.AddressModeClampToBorder:
		return vk.SamplerAddressModeClampToBorder
	default:
		return vk.SamplerAddressModeRepeat
	}
}

func vkShaderStages(s gpu.ShaderStage) vk.ShaderStageFlags {
	var f vk.ShaderStageFlagBits
	if s&gpu.ShaderStageVertex != 0 {
		f |= vk.ShaderStageVertexBit
	}
	if s&gpu.ShaderStageFragment != 0 {
		f |= vk.ShaderStageFragmentBit
	}
	return vk.ShaderStageFlags(f)
}

func vkDescriptorType(t gpu.DescriptorType) vk.DescriptorType {
	switch t {
	case gpu.DescriptorSampledImage:
		return vk.DescriptorTypeSampledImage
	case gpu.DescriptorSampler:
		return vk.DescriptorTypeSampler
	case gpu.DescriptorUniformBuffer:
		return vk.DescriptorTypeUniformBuffer
	case gpu.DescriptorStorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	case gpu.DescriptorUniformBufferDynamic:
		return vk.DescriptorTypeUniformBufferDynamic
	case gpu.DescriptorStorageBufferDynamic:
		return vk.DescriptorTypeStorageBufferDynamic
	default:
		return vk.DescriptorTypeCombinedImageSampler
	}
}

func vkPipelineStages(s gpu.PipelineStage) vk.PipelineStageFlags {
	var f vk.PipelineStageFlagBits
	pairs := []struct {
		from gpu.PipelineStage
		to   vk.PipelineStageFlagBits
	}{
		{gpu.PipelineStageTopOfPipe, vk.PipelineStageTopOfPipeBit},
		{gpu.PipelineStageVertexInput, vk.PipelineStageVertexInputBit},
		{gpu.PipelineStageFragmentShader, vk.PipelineStageFragmentShaderBit},
		{gpu.PipelineStageEarlyFragmentTests, vk.PipelineStageEarlyFragmentTestsBit},
		{gpu.PipelineStageColorAttachmentOutput, vk.PipelineStageColorAttachmentOutputBit},
		{gpu.PipelineStageTransfer, vk.PipelineStageTransferBit},
		{gpu.PipelineStageBottomOfPipe, vk.PipelineStageBottomOfPipeBit},
		{gpu.PipelineStageAllCommands, vk.PipelineStageAllCommandsBit},
	}
	for _, p := range pairs {
		if s&p.from != 0 {
			f |= p.to
		}
	}
	return vk.PipelineStageFlags(f)
}

func vkTopology(t gpu.PrimitiveTopology) vk.PrimitiveTopology {
	switch t {
	case gpu.TopologyTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip
	case gpu.TopologyLineList:
		return vk.PrimitiveTopologyLineList
	case gpu.TopologyPointList:
		return vk.PrimitiveTopologyPointList
	default:
		return vk.PrimitiveTopologyTriangleList
	}
}

func vkPolygonMode(m gpu.PolygonMode) vk.PolygonMode {
	switch m {
	case gpu.PolygonModeLine:
		return vk.PolygonModeLine
	case gpu.PolygonModePoint:
		return vk.PolygonModePoint
	default:
		return vk.PolygonModeFill
	}
}

func vkCullMode(m gpu.CullMode) vk.CullModeFlags {
	switch m {
	case gpu.CullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case gpu.CullModeBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	default:
		return vk.CullModeFlags(vk.CullModeNone)
	}
}

func vkFrontFace(f gpu.FrontFace) vk.FrontFace {
	if f == gpu.FrontFaceClockwise {
		return vk.FrontFaceClockwise
	}
	return vk.FrontFaceCounterClockwise
}

func vkCompareOp(op gpu.CompareOp) vk.CompareOp {
	switch op {
	case gpu.CompareLess:
		return vk.CompareOpLess
	case gpu.CompareLessOrEqual:
		return vk.CompareOpLessOrEqual
	case gpu.CompareAlways:
		return vk.CompareOpAlways
	default:
		return vk.CompareOpNever
	}
}

func vkBlendFactor(f gpu.BlendFactor) vk.BlendFactor {
	switch f {
	case gpu.BlendOne:
		return vk.BlendFactorOne
	case gpu.BlendSrcAlpha:
		return vk.BlendFactorSrcAlpha
	case gpu.BlendOneMinusSrcAlpha:
		return vk.BlendFactorOneMinusSrcAlpha
	default:
		return vk.BlendFactorZero
	}
}

func vkBlendOp(op gpu.BlendOp) vk.BlendOp {
	if op == gpu.BlendOpSubtract {
		return vk.BlendOpSubtract
	}
	return vk.BlendOpAdd
}

func vkDynamicState(s gpu.DynamicState) vk.DynamicState {
	if s == gpu.DynamicScissor {
		return vk.DynamicStateScissor
	}
	return vk.DynamicStateViewport
}

func vkIndexType(t gpu.IndexType) vk.IndexType {
	if t == gpu.IndexTypeUint16 {
		return vk.IndexTypeUint16
	}
	return vk.IndexTypeUint32
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}
