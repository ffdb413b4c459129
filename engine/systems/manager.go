package systems

import (
	"runtime"

	"github.com/spaghettifunk/tessera/engine/assets"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/resources"
)

type SystemManagerConfig struct {
	Workers      int
	JobQueueSize int
	MaxTextures  uint32
	MaxShaders   uint32
	MaxFonts     uint32
	FlipTextures bool
	FontSize     float64
}

func DefaultSystemManagerConfig(cfg *core.Config) SystemManagerConfig {
	return SystemManagerConfig{
		Workers:      max(1, runtime.NumCPU()/2),
		JobQueueSize: 64,
		MaxTextures:  cfg.Renderer.MaxTextures,
		MaxShaders:   64,
		MaxFonts:     16,
		FontSize:     16,
	}
}

type SystemManager struct {
	jobSystem     *JobSystem
	textureSystem *TextureSystem
	shaderSystem  *ShaderSystem
	fontSystem    *FontSystem
	closed        bool
}

// NewSystemManager creates the systems on top of r and am and subscribes
// them to asset change events.
func NewSystemManager(config SystemManagerConfig, r *renderer.Renderer, am AssetSource) (*SystemManager, error) {
	js, err := NewJobSystem(config.Workers, config.JobQueueSize)
	if err != nil {
		return nil, core.WrapError(err, core.KindInit, "creating job system")
	}
	ts, err := NewTextureSystem(TextureSystemConfig{
		MaxTextureCount: config.MaxTextures,
		FlipY:           config.FlipTextures,
	}, js, am, r)
	if err != nil {
		js.Shutdown()
		return nil, err
	}
	ss, err := NewShaderSystem(ShaderSystemConfig{MaxShaderCount: config.MaxShaders}, am, r.Device(), r)
	if err != nil {
		js.Shutdown()
		return nil, err
	}
	fs, err := NewFontSystem(FontSystemConfig{MaxFontCount: config.MaxFonts, DefaultSize: config.FontSize}, am, r)
	if err != nil {
		js.Shutdown()
		return nil, err
	}
	sm := &SystemManager{
		jobSystem:     js,
		textureSystem: ts,
		shaderSystem:  ss,
		fontSystem:    fs,
	}
	if !core.EventRegister(core.EVENT_CODE_ASSET_CHANGED, sm.onAssetChanged) {
		core.LogWarn("event system not running, assets will not hot reload")
	}
	return sm, nil
}

func (sm *SystemManager) Jobs() *JobSystem         { return sm.jobSystem }
func (sm *SystemManager) Textures() *TextureSystem { return sm.textureSystem }
func (sm *SystemManager) Shaders() *ShaderSystem   { return sm.shaderSystem }
func (sm *SystemManager) Fonts() *FontSystem       { return sm.fontSystem }

// Update delivers finished background jobs. Call it once per frame from the
// render goroutine, before recording.
func (sm *SystemManager) Update() {
	sm.jobSystem.Update()
}

func (sm *SystemManager) onAssetChanged(ctx core.EventContext) {
	ev, ok := ctx.Data.(*core.AssetEvent)
	if !ok || sm.closed {
		return
	}
	var err error
	switch assets.AssetType(ev.Path) {
	case resources.ResourceTypeImage:
		err = sm.textureSystem.Reload(ev.Path)
	case resources.ResourceTypeShader:
		err = sm.shaderSystem.Reload(ev.Path)
	default:
		return
	}
	if err != nil {
		core.LogError("reloading %s: %v", ev.Path, err)
	}
}

func (sm *SystemManager) Shutdown() error {
	sm.closed = true
	if err := sm.fontSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.shaderSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.textureSystem.Shutdown(); err != nil {
		return err
	}
	return sm.jobSystem.Shutdown()
}
