package systems

import (
	"path"
	"strings"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
	"github.com/spaghettifunk/tessera/engine/resources"
)

// ShaderModuleFactory is satisfied by gpu.Device.
type ShaderModuleFactory interface {
	NewShaderModule(stage gpu.ShaderStage, code []byte) (gpu.ShaderModule, error)
}

// PipelineCompiler is satisfied by *renderer.Renderer.
type PipelineCompiler interface {
	CompilePipelines(builders ...*renderer.PipelineBuilder) error
}

type ShaderSystemConfig struct {
	MaxShaderCount uint32
}

// Shader is the SPIR-V of a vertex and fragment pair sharing a name, loaded
// from shaders/<name>.vert.spv and shaders/<name>.frag.spv.
type Shader struct {
	Name       string
	Vertex     []byte
	Fragment   []byte
	Generation uint32

	builders []*renderer.PipelineBuilder
}

type ShaderSystem struct {
	config   ShaderSystemConfig
	shaders  map[string]*Shader
	assets   AssetSource
	factory  ShaderModuleFactory
	compiler PipelineCompiler
}

func NewShaderSystem(config ShaderSystemConfig, am AssetSource, factory ShaderModuleFactory, compiler PipelineCompiler) (*ShaderSystem, error) {
	if config.MaxShaderCount == 0 {
		return nil, core.NewError(core.KindUsage, "shader system: MaxShaderCount must be > 0")
	}
	return &ShaderSystem{
		config:   config,
		shaders:  make(map[string]*Shader),
		assets:   am,
		factory:  factory,
		compiler: compiler,
	}, nil
}

func (ss *ShaderSystem) Shutdown() error {
	// bound builders own their modules and are destroyed by the renderer
	ss.shaders = make(map[string]*Shader)
	return nil
}

// Get returns the shader called name, loading its code on first use.
func (ss *ShaderSystem) Get(name string) (*Shader, error) {
	if s, ok := ss.shaders[name]; ok {
		return s, nil
	}
	if uint32(len(ss.shaders)) >= ss.config.MaxShaderCount {
		return nil, core.Raise(core.ErrAllocatorExhausted, core.KindCapacity, "shader system holds %d shaders already", len(ss.shaders))
	}
	s := &Shader{Name: name}
	if err := ss.load(s); err != nil {
		return nil, err
	}
	ss.shaders[name] = s
	return s, nil
}

func (ss *ShaderSystem) load(s *Shader) error {
	vert, err := ss.loadStage(s.Name+".vert", resources.ShaderStageVertex)
	if err != nil {
		return err
	}
	frag, err := ss.loadStage(s.Name+".frag", resources.ShaderStageFragment)
	if err != nil {
		return err
	}
	s.Vertex, s.Fragment = vert, frag
	return nil
}

func (ss *ShaderSystem) loadStage(name string, want resources.ShaderStage) ([]byte, error) {
	res, err := ss.assets.LoadAsset(name, resources.ResourceTypeShader, nil)
	if err != nil {
		return nil, err
	}
	data := res.Data.(*resources.ShaderData)
	if data.Stage != want {
		return nil, core.NewError(core.KindUsage, "shader %s has the wrong stage", name)
	}
	return data.Code, nil
}

// Modules creates a fresh pair of shader modules. The caller owns them.
func (ss *ShaderSystem) Modules(name string) (vert, frag gpu.ShaderModule, err error) {
	s, err := ss.Get(name)
	if err != nil {
		return nil, nil, err
	}
	return ss.modules(s)
}

func (ss *ShaderSystem) modules(s *Shader) (gpu.ShaderModule, gpu.ShaderModule, error) {
	vert, err := ss.factory.NewShaderModule(gpu.ShaderStageVertex, s.Vertex)
	if err != nil {
		return nil, nil, core.WrapError(err, core.KindInit, "creating vertex module of %s", s.Name)
	}
	frag, err := ss.factory.NewShaderModule(gpu.ShaderStageFragment, s.Fragment)
	if err != nil {
		vert.Destroy()
		return nil, nil, core.WrapError(err, core.KindInit, "creating fragment module of %s", s.Name)
	}
	return vert, frag, nil
}

// Bind installs the modules of name into b and remembers b, so a change to
// the shader's files recompiles it.
func (ss *ShaderSystem) Bind(name string, b *renderer.PipelineBuilder) error {
	s, err := ss.Get(name)
	if err != nil {
		return err
	}
	vert, frag, err := ss.modules(s)
	if err != nil {
		return err
	}
	b.SetShaderModules(vert, frag)
	s.builders = append(s.builders, b)
	return nil
}

// shaderName maps shaders/foo.vert.spv to foo.
func shaderName(rel string) (string, bool) {
	if !strings.HasPrefix(rel, "shaders/") || !strings.HasSuffix(rel, ".spv") {
		return "", false
	}
	base := strings.TrimSuffix(strings.TrimPrefix(rel, "shaders/"), ".spv")
	return strings.TrimSuffix(base, path.Ext(base)), true
}

// Reload rereads a changed shader and recompiles the pipelines bound to
// it. On failure the old pipelines stay in use.
func (ss *ShaderSystem) Reload(rel string) error {
	name, ok := shaderName(rel)
	if !ok {
		return nil
	}
	s, ok := ss.shaders[name]
	if !ok {
		return nil
	}
	next := &Shader{Name: name}
	if err := ss.load(next); err != nil {
		return err
	}
	s.Vertex, s.Fragment = next.Vertex, next.Fragment
	s.Generation++
	if len(s.builders) == 0 {
		return nil
	}
	for _, b := range s.builders {
		vert, frag, err := ss.modules(s)
		if err != nil {
			return err
		}
		b.SetShaderModules(vert, frag)
	}
	if err := ss.compiler.CompilePipelines(s.builders...); err != nil {
		return core.WrapError(err, core.KindUsage, "recompiling pipelines of shader %s", name)
	}
	core.LogInfo("Shader '%s' reloaded, %d pipelines recompiled.", name, len(s.builders))
	return nil
}
