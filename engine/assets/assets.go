package assets

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/tessera/engine/assets/loaders"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/resources"
)

type AssetInfo struct {
	// Slash separated, relative to the asset root.
	Path     string
	Type     resources.ResourceType
	Modified time.Time
}

// AssetManager indexes the asset directory, loads assets through the loader
// registered for their type and, when watching, fires
// EVENT_CODE_ASSET_CHANGED for every indexed file written on disk.
type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[resources.ResourceType]Loader
	mutex   sync.RWMutex

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

var searchPaths = map[resources.ResourceType][]string{
	resources.ResourceTypeShader:     {"shaders/%s.spv"},
	resources.ResourceTypeImage:      {"textures/%s.png", "textures/%s.jpg", "textures/%s.jpeg", "textures/%s.bmp", "textures/%s.tiff", "textures/%s.webp"},
	resources.ResourceTypeBitmapFont: {"fonts/%s.fnt"},
	resources.ResourceTypeSystemFont: {"fonts/%s.ttf", "fonts/%s.otf"},
}

func NewAssetManager(cfg core.AssetsConfig) (*AssetManager, error) {
	root, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, core.WrapError(err, core.KindInit, "resolving asset dir %s", cfg.Dir)
	}
	if fi, err := os.Stat(root); err != nil || !fi.IsDir() {
		return nil, core.NewError(core.KindInit, "asset dir %s is not a directory", root)
	}

	am := &AssetManager{
		root:    root,
		assets:  make(map[string]AssetInfo),
		loaders: make(map[resources.ResourceType]Loader),
		done:    make(chan struct{}),
	}
	am.RegisterLoader(resources.ResourceTypeShader, &loaders.ShaderLoader{})
	am.RegisterLoader(resources.ResourceTypeImage, &loaders.ImageLoader{})
	am.RegisterLoader(resources.ResourceTypeBitmapFont, &loaders.BitmapFontLoader{})
	am.RegisterLoader(resources.ResourceTypeSystemFont, &loaders.SystemFontLoader{})

	if cfg.Watch {
		if am.watcher, err = fsnotify.NewWatcher(); err != nil {
			return nil, core.WrapError(err, core.KindInit, "creating file watcher")
		}
	}
	if err := am.walk(root); err != nil {
		am.Close()
		return nil, err
	}
	if am.watcher != nil {
		am.wg.Add(1)
		go am.watch()
	}
	core.LogInfo("Asset manager indexed %d assets under %s (watch=%t).", am.Count(), root, cfg.Watch)
	return am, nil
}

func (am *AssetManager) RegisterLoader(t resources.ResourceType, loader Loader) {
	am.mutex.Lock()
	am.loaders[t] = loader
	am.mutex.Unlock()
}

func (am *AssetManager) Root() string {
	return am.root
}

func (am *AssetManager) Count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

// Info returns the index entry for a root relative path.
func (am *AssetManager) Info(rel string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[filepath.ToSlash(rel)]
	return info, ok
}

// LoadAsset finds name under the directory conventional for t and loads it.
func (am *AssetManager) LoadAsset(name string, t resources.ResourceType, params interface{}) (*resources.Resource, error) {
	patterns, ok := searchPaths[t]
	if !ok {
		return nil, core.NewError(core.KindUsage, "no search path for %s assets", t)
	}
	for _, p := range patterns {
		rel := strings.Replace(p, "%s", name, 1)
		if _, ok := am.Info(rel); ok {
			return am.LoadPath(rel, params)
		}
	}
	return nil, core.Raise(core.ErrAssetNotFound, core.KindUsage, "%s asset '%s' not found under %s", t, name, am.root)
}

// LoadPath loads the indexed asset at a root relative path.
func (am *AssetManager) LoadPath(rel string, params interface{}) (*resources.Resource, error) {
	info, ok := am.Info(rel)
	if !ok {
		return nil, core.Raise(core.ErrAssetNotFound, core.KindUsage, "asset %s not indexed", rel)
	}
	am.mutex.RLock()
	loader, ok := am.loaders[info.Type]
	am.mutex.RUnlock()
	if !ok {
		return nil, core.NewError(core.KindUsage, "no loader registered for %s assets", info.Type)
	}
	res, err := loader.Load(filepath.Join(am.root, filepath.FromSlash(info.Path)), params)
	if err != nil {
		return nil, err
	}
	res.Type = info.Type
	return res, nil
}

func (am *AssetManager) UnloadAsset(res *resources.Resource) error {
	am.mutex.RLock()
	loader, ok := am.loaders[res.Type]
	am.mutex.RUnlock()
	if !ok {
		return core.NewError(core.KindUsage, "no loader registered for %s assets", res.Type)
	}
	return loader.Unload(res)
}

// Close stops the watcher goroutine. It is safe to call more than once.
func (am *AssetManager) Close() error {
	if am.watcher == nil {
		return nil
	}
	select {
	case <-am.done:
		return nil
	default:
	}
	close(am.done)
	err := am.watcher.Close()
	am.wg.Wait()
	return err
}

func (am *AssetManager) watch() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.watcher.Events:
			if !ok {
				return
			}
			am.handle(e)
		case err, ok := <-am.watcher.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)
		case <-am.done:
			return
		}
	}
}

func (am *AssetManager) handle(e fsnotify.Event) {
	switch {
	case e.Op&fsnotify.Create != 0:
		if fi, err := os.Stat(e.Name); err == nil && fi.IsDir() {
			if err := am.walk(e.Name); err != nil {
				core.LogWarn("watching new directory %s: %s", e.Name, err)
			}
			return
		}
		if rel, ok := am.index(e.Name); ok {
			am.changed(rel)
		}
	case e.Op&fsnotify.Write != 0:
		if rel, ok := am.index(e.Name); ok {
			am.changed(rel)
		}
	case e.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		rel, err := am.rel(e.Name)
		if err != nil {
			return
		}
		am.mutex.Lock()
		delete(am.assets, rel)
		am.mutex.Unlock()
	}
}

func (am *AssetManager) changed(rel string) {
	core.LogDebug("Asset %s changed on disk.", rel)
	core.EventFire(core.EventContext{
		Type: core.EVENT_CODE_ASSET_CHANGED,
		Data: &core.AssetEvent{Path: rel},
	})
}

// walk indexes every file under dir and, when watching, adds every directory.
func (am *AssetManager) walk(dir string) error {
	return filepath.Walk(dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if am.watcher != nil {
				if err := am.watcher.Add(path); err != nil {
					return core.WrapError(err, core.KindInit, "watching %s", path)
				}
			}
			return nil
		}
		am.index(path)
		return nil
	})
}

func (am *AssetManager) index(path string) (string, bool) {
	t := AssetType(path)
	if t == resources.ResourceTypeNone {
		return "", false
	}
	rel, err := am.rel(path)
	if err != nil {
		return "", false
	}
	var mod time.Time
	if fi, err := os.Stat(path); err == nil {
		mod = fi.ModTime()
	}
	am.mutex.Lock()
	am.assets[rel] = AssetInfo{Path: rel, Type: t, Modified: mod}
	am.mutex.Unlock()
	return rel, true
}

func (am *AssetManager) rel(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(am.root, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// AssetType classifies a file by extension.
func AssetType(path string) resources.ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".spv":
		return resources.ResourceTypeShader
	case ".png", ".jpg", ".jpeg", ".bmp", ".tiff", ".webp":
		return resources.ResourceTypeImage
	case ".fnt":
		return resources.ResourceTypeBitmapFont
	case ".ttf", ".otf":
		return resources.ResourceTypeSystemFont
	default:
		return resources.ResourceTypeNone
	}
}
