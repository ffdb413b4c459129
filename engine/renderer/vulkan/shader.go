package vulkan

import (
	"encoding/binary"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

const spirvMagic = 0x07230203

type shaderModule struct {
	ctx    *Context
	handle vk.ShaderModule
	stage  gpu.ShaderStage
}

// spirvWords reinterprets a SPIR-V blob as the little-endian words the driver expects.
func spirvWords(code []byte) ([]uint32, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, core.NewError(core.KindUsage, "SPIR-V size %d is not a positive multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, core.NewError(core.KindUsage, "bad SPIR-V magic %#x", words[0])
	}
	return words, nil
}

func (c *Context) NewShaderModule(stage gpu.ShaderStage, code []byte) (gpu.ShaderModule, error) {
	words, err := spirvWords(code)
	if err != nil {
		return nil, err
	}
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    words,
	}
	m := &shaderModule{ctx: c, stage: stage}
	if err := check(vk.CreateShaderModule(c.device, &info, nil, &m.handle), core.KindInit, "vkCreateShaderModule"); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *shaderModule) Stage() gpu.ShaderStage { return m.stage }

func (m *shaderModule) stageInfo() vk.PipelineShaderStageCreateInfo {
	stage := vk.ShaderStageVertexBit
	if m.stage == gpu.ShaderStageFragment {
		stage = vk.ShaderStageFragmentBit
	}
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: m.handle,
		PName:  VulkanSafeString("main"),
	}
}

func (m *shaderModule) Destroy() {
	if m.handle != vk.NullShaderModule {
		vk.DestroyShaderModule(m.ctx.device, m.handle, nil)
		m.handle = vk.NullShaderModule
	}
}
