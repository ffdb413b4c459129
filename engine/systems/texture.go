package systems

import (
	"path"
	"strings"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
	"github.com/spaghettifunk/tessera/engine/resources"
)

const DefaultTextureName = "default"

// AssetSource is the part of the asset manager the systems load through.
type AssetSource interface {
	LoadAsset(name string, t resources.ResourceType, params interface{}) (*resources.Resource, error)
	LoadPath(rel string, params interface{}) (*resources.Resource, error)
}

// TextureBackend creates and updates GPU textures; *renderer.Renderer is one.
type TextureBackend interface {
	CreateTexture(pixels []byte, format gpu.Format, extent gpu.Extent2D) (*renderer.Texture, error)
	UpdateTexture(tex *renderer.Texture, pixels []byte, offset gpu.Offset2D, extent gpu.Extent2D) error
}

type TextureSystemConfig struct {
	// The maximum number of textures that can be registered at once.
	MaxTextureCount uint32
	// Store images bottom row first.
	FlipY bool
}

type TextureReference struct {
	Texture        *renderer.Texture
	ReferenceCount uint64
	// Bumped every time the texture is replaced or rewritten.
	Generation uint32
}

type FnOnTextureReload func(name string, tex *renderer.Texture)

type TextureSystem struct {
	config         TextureSystemConfig
	defaultTexture *renderer.Texture
	textures       map[string]*TextureReference
	onReload       []FnOnTextureReload

	jobSystem *JobSystem
	assets    AssetSource
	backend   TextureBackend
}

func NewTextureSystem(config TextureSystemConfig, js *JobSystem, am AssetSource, backend TextureBackend) (*TextureSystem, error) {
	if config.MaxTextureCount == 0 {
		return nil, core.NewError(core.KindUsage, "texture system: MaxTextureCount must be > 0")
	}
	ts := &TextureSystem{
		config:    config,
		textures:  make(map[string]*TextureReference),
		jobSystem: js,
		assets:    am,
		backend:   backend,
	}

	const size, segments = 256, 8
	tex, err := backend.CreateTexture(checkerboard(size, segments), gpu.FormatRGBA8Unorm, gpu.Extent2D{Width: size, Height: size})
	if err != nil {
		return nil, core.WrapError(err, core.KindInit, "creating default texture")
	}
	ts.defaultTexture = tex
	return ts, nil
}

// checkerboard returns size*size RGBA8 pixels of white and blue squares.
func checkerboard(size, segments int) []byte {
	pixels := make([]byte, size*size*4)
	for i := range pixels {
		pixels[i] = 255
	}
	step := size / segments
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/step)%2 == (y/step)%2 {
				continue
			}
			i := (y*size + x) * 4
			pixels[i] = 0
			pixels[i+1] = 0
		}
	}
	return pixels
}

func (ts *TextureSystem) Shutdown() error {
	// memory belongs to the renderer, which frees it at its own shutdown
	ts.textures = make(map[string]*TextureReference)
	ts.onReload = nil
	return nil
}

func (ts *TextureSystem) Default() *renderer.Texture {
	return ts.defaultTexture
}

// OnReload registers fn to run whenever a hot reload replaces a texture
// object, so descriptor sets sampling the old one can be rewritten.
func (ts *TextureSystem) OnReload(fn FnOnTextureReload) {
	ts.onReload = append(ts.onReload, fn)
}

// Acquire returns the texture called name, loading it from textures/ on
// first use. A texture that fails to load is reported and replaced by the
// default texture.
func (ts *TextureSystem) Acquire(name string) (*renderer.Texture, error) {
	if name == DefaultTextureName {
		core.LogWarn("texture system Acquire called for the default texture. Use Default instead")
		return ts.defaultTexture, nil
	}
	if ref, ok := ts.textures[name]; ok {
		ref.ReferenceCount++
		return ref.Texture, nil
	}
	if uint32(len(ts.textures)) >= ts.config.MaxTextureCount {
		return nil, core.Raise(core.ErrAllocatorExhausted, core.KindCapacity, "texture system holds %d textures already", len(ts.textures))
	}

	res, err := ts.assets.LoadAsset(name, resources.ResourceTypeImage, &resources.ImageParams{FlipY: ts.config.FlipY})
	if err != nil {
		core.LogWarn("texture '%s' failed to load, using the default: %v", name, err)
		return ts.defaultTexture, nil
	}
	tex, err := ts.create(res.Data.(*resources.ImageData))
	if err != nil {
		return nil, core.WrapError(err, core.KindUsage, "creating texture '%s'", name)
	}
	ts.textures[name] = &TextureReference{Texture: tex, ReferenceCount: 1}
	return tex, nil
}

// AcquireAsync decodes the texture on a worker and hands it to done on the
// goroutine that calls JobSystem.Update. Until then the default texture
// stands in; it is also what done receives when loading fails.
func (ts *TextureSystem) AcquireAsync(name string, done func(*renderer.Texture)) error {
	if ref, ok := ts.textures[name]; ok {
		ref.ReferenceCount++
		done(ref.Texture)
		return nil
	}
	return ts.jobSystem.Submit(JobTask{
		Name: "load texture " + name,
		Run: func() (interface{}, error) {
			res, err := ts.assets.LoadAsset(name, resources.ResourceTypeImage, &resources.ImageParams{FlipY: ts.config.FlipY})
			if err != nil {
				return nil, err
			}
			return res.Data, nil
		},
		OnComplete: func(result interface{}) {
			// a synchronous Acquire may have won the race
			if ref, ok := ts.textures[name]; ok {
				ref.ReferenceCount++
				done(ref.Texture)
				return
			}
			tex, err := ts.create(result.(*resources.ImageData))
			if err != nil {
				core.LogError("creating texture '%s': %v", name, err)
				done(ts.defaultTexture)
				return
			}
			ts.textures[name] = &TextureReference{Texture: tex, ReferenceCount: 1}
			done(tex)
		},
		OnFailure: func(err error) {
			done(ts.defaultTexture)
		},
	})
}

// Release drops one reference. The entry is forgotten at zero; its device
// memory stays with the renderer.
func (ts *TextureSystem) Release(name string) {
	ref, ok := ts.textures[name]
	if !ok {
		core.LogWarn("texture system Release called for unknown texture '%s'", name)
		return
	}
	ref.ReferenceCount--
	if ref.ReferenceCount == 0 {
		delete(ts.textures, name)
	}
}

func (ts *TextureSystem) Reference(name string) (*TextureReference, bool) {
	ref, ok := ts.textures[name]
	return ref, ok
}

func (ts *TextureSystem) create(img *resources.ImageData) (*renderer.Texture, error) {
	return ts.backend.CreateTexture(img.Pixels, gpu.FormatRGBA8Unorm, gpu.Extent2D{Width: img.Width, Height: img.Height})
}

// textureName maps textures/foo.png to foo.
func textureName(rel string) (string, bool) {
	if !strings.HasPrefix(rel, "textures/") {
		return "", false
	}
	base := strings.TrimPrefix(rel, "textures/")
	return strings.TrimSuffix(base, path.Ext(base)), true
}

// Reload re-reads a changed image off the render goroutine. Same sized
// images are uploaded into the existing texture; others get a new texture
// and the OnReload callbacks run.
func (ts *TextureSystem) Reload(rel string) error {
	name, ok := textureName(rel)
	if !ok {
		return nil
	}
	if _, ok := ts.textures[name]; !ok {
		return nil
	}
	return ts.jobSystem.Submit(JobTask{
		Name: "reload texture " + name,
		Run: func() (interface{}, error) {
			res, err := ts.assets.LoadPath(rel, &resources.ImageParams{FlipY: ts.config.FlipY})
			if err != nil {
				return nil, err
			}
			return res.Data, nil
		},
		OnComplete: func(result interface{}) {
			ts.apply(name, result.(*resources.ImageData))
		},
	})
}

func (ts *TextureSystem) apply(name string, img *resources.ImageData) {
	ref, ok := ts.textures[name]
	if !ok {
		return
	}
	extent := gpu.Extent2D{Width: img.Width, Height: img.Height}
	if ref.Texture.Extent == extent {
		if err := ts.backend.UpdateTexture(ref.Texture, img.Pixels, gpu.Offset2D{}, extent); err != nil {
			core.LogError("updating texture '%s': %v", name, err)
			return
		}
		ref.Generation++
		core.LogInfo("Texture '%s' reloaded in place.", name)
		return
	}
	tex, err := ts.create(img)
	if err != nil {
		core.LogError("recreating texture '%s': %v", name, err)
		return
	}
	ref.Texture = tex
	ref.Generation++
	core.LogInfo("Texture '%s' reloaded as %dx%d.", name, img.Width, img.Height)
	for _, fn := range ts.onReload {
		fn(name, tex)
	}
}
