package loaders

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/resources"
)

const spirvMagic = 0x07230203

type ShaderLoader struct{}

// Load reads a compiled SPIR-V module. The stage comes from the name:
// foo.vert.spv is a vertex shader, foo.frag.spv a fragment shader.
func (sl *ShaderLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	stage, err := shaderStage(path)
	if err != nil {
		return nil, err
	}
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, core.WrapError(err, core.KindInit, "reading shader %s", path)
	}
	if err := validateSPIRV(code); err != nil {
		return nil, core.WrapError(err, core.KindUsage, "shader %s", path)
	}
	return &resources.Resource{
		Name:     strings.TrimSuffix(filepath.Base(path), ".spv"),
		FullPath: path,
		Type:     resources.ResourceTypeShader,
		DataSize: uint64(len(code)),
		Data:     &resources.ShaderData{Stage: stage, Code: code},
	}, nil
}

func (sl *ShaderLoader) Unload(r *resources.Resource) error {
	r.Data = nil
	r.DataSize = 0
	return nil
}

func shaderStage(path string) (resources.ShaderStage, error) {
	switch filepath.Ext(strings.TrimSuffix(path, ".spv")) {
	case ".vert":
		return resources.ShaderStageVertex, nil
	case ".frag":
		return resources.ShaderStageFragment, nil
	}
	return 0, core.NewError(core.KindUsage, "cannot tell the shader stage of %s", path)
}

func validateSPIRV(code []byte) error {
	if len(code) < 4 || len(code)%4 != 0 {
		return core.NewError(core.KindUsage, "SPIR-V size %d is not a positive multiple of 4", len(code))
	}
	if magic := binary.LittleEndian.Uint32(code); magic != spirvMagic {
		return core.NewError(core.KindUsage, "bad SPIR-V magic %#x", magic)
	}
	return nil
}
