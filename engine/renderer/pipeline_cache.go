package renderer

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

const (
	DefaultPipelineCacheFile = "pipeline.cache"

	// VkPipelineCacheHeaderVersionOne: length, version, vendor, device, 16 byte UUID.
	pipelineCacheHeaderSize    = 32
	pipelineCacheHeaderVersion = 1
)

// pipelineCachePaths lists where the blob is looked for, in order.
func pipelineCachePaths(name string) []string {
	if name == "" {
		name = DefaultPipelineCacheFile
	}
	if filepath.IsAbs(name) {
		return []string{name}
	}
	return []string{name, filepath.Join(os.TempDir(), filepath.Base(name))}
}

// validPipelineCache checks the header the driver writes in front of its data.
func validPipelineCache(data []byte) bool {
	if len(data) < pipelineCacheHeaderSize {
		return false
	}
	length := binary.LittleEndian.Uint32(data[0:4])
	version := binary.LittleEndian.Uint32(data[4:8])
	return length >= pipelineCacheHeaderSize && version == pipelineCacheHeaderVersion
}

// LoadPipelineCache returns the first valid blob found, or nil. Missing,
// unreadable and malformed files are ignored.
func LoadPipelineCache(name string) []byte {
	for _, p := range pipelineCachePaths(name) {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		if !validPipelineCache(data) {
			core.LogDebug("ignoring malformed pipeline cache at %s", p)
			continue
		}
		core.LogDebug("loaded %d bytes of pipeline cache from %s", len(data), p)
		return data
	}
	return nil
}

// SavePipelineCache writes data to the first writable location and returns it.
func SavePipelineCache(name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	var lastErr error
	for _, p := range pipelineCachePaths(name) {
		if err := os.WriteFile(p, data, 0o644); err != nil {
			lastErr = err
			continue
		}
		return p, nil
	}
	return "", core.WrapError(lastErr, core.KindUsage, "saving pipeline cache")
}

// OpenPipelineCache creates the device cache from the saved blob. A blob the
// driver refuses is dropped and an empty cache created instead.
func OpenPipelineCache(device gpu.Device, name string) (gpu.PipelineCache, error) {
	if data := LoadPipelineCache(name); data != nil {
		cache, err := device.NewPipelineCache(data)
		if err == nil {
			return cache, nil
		}
		core.LogWarn("pipeline cache rejected by the driver, starting empty: %v", err)
	}
	cache, err := device.NewPipelineCache(nil)
	if err != nil {
		return nil, core.WrapError(err, core.KindInit, "creating pipeline cache")
	}
	return cache, nil
}

// ClosePipelineCache saves the cache contents and destroys it.
func ClosePipelineCache(cache gpu.PipelineCache, name string) {
	data, err := cache.Data()
	if err != nil {
		core.LogWarn("reading pipeline cache: %v", err)
	} else if p, err := SavePipelineCache(name, data); err != nil {
		core.LogWarn("%v", err)
	} else if p != "" {
		core.LogDebug("saved %d bytes of pipeline cache to %s", len(data), p)
	}
	cache.Destroy()
}
