package renderer

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/spaghettifunk/tessera/engine/renderer/gpu/gputest"
)

func cacheBlob(version uint32, size int) []byte {
	b := make([]byte, size)
	binary.LittleEndian.PutUint32(b[0:4], pipelineCacheHeaderSize)
	binary.LittleEndian.PutUint32(b[4:8], version)
	for i := pipelineCacheHeaderSize; i < size; i++ {
		b[i] = byte(i)
	}
	return b
}

// tempCacheName returns a file name unique to the test, removed from both
// cache locations afterwards.
func tempCacheName(t *testing.T) string {
	t.Helper()
	name := "tessera-" + uuid.NewString() + ".cache"
	t.Cleanup(func() {
		for _, p := range pipelineCachePaths(name) {
			os.Remove(p)
		}
	})
	return name
}

func TestPipelineCacheRoundTrip(t *testing.T) {
	name := filepath.Join(t.TempDir(), "pipeline.cache")
	blob := cacheBlob(pipelineCacheHeaderVersion, 96)
	p, err := SavePipelineCache(name, blob)
	if err != nil {
		t.Fatal(err)
	}
	if p != name {
		t.Fatalf("saved to %q, want %q", p, name)
	}
	if got := LoadPipelineCache(name); !bytes.Equal(got, blob) {
		t.Fatal("loaded blob differs from the saved one")
	}
}

func TestPipelineCacheIgnoresBadBlobs(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		data []byte
	}{
		{"short", cacheBlob(pipelineCacheHeaderVersion, 64)[:20]},
		{"wrong version", cacheBlob(2, 64)},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := filepath.Join(dir, tt.name+".cache")
			if err := os.WriteFile(p, tt.data, 0o644); err != nil {
				t.Fatal(err)
			}
			if got := LoadPipelineCache(p); got != nil {
				t.Fatalf("have %d bytes, want nil", len(got))
			}
		})
	}
	if got := LoadPipelineCache(filepath.Join(dir, "missing.cache")); got != nil {
		t.Fatal("missing file returned data")
	}
}

func TestPipelineCacheTempDirFallback(t *testing.T) {
	name := tempCacheName(t)
	blob := cacheBlob(pipelineCacheHeaderVersion, 40)

	// only the temp dir copy exists
	fallback := filepath.Join(os.TempDir(), name)
	if err := os.WriteFile(fallback, blob, 0o644); err != nil {
		t.Fatal(err)
	}
	if got := LoadPipelineCache(name); !bytes.Equal(got, blob) {
		t.Fatal("temp dir copy not loaded")
	}

	// the working directory location cannot be created, so saving falls back
	nested := filepath.Join("no-such-dir-"+uuid.NewString(), name)
	p, err := SavePipelineCache(nested, blob)
	if err != nil {
		t.Fatal(err)
	}
	if p != fallback {
		t.Fatalf("saved to %q, want %q", p, fallback)
	}
}

func TestOpenPipelineCacheRetriesWithoutRejectedData(t *testing.T) {
	name := filepath.Join(t.TempDir(), "pipeline.cache")
	if _, err := SavePipelineCache(name, cacheBlob(pipelineCacheHeaderVersion, 64)); err != nil {
		t.Fatal(err)
	}
	dev := gputest.NewDevice()
	dev.RejectCacheData = true

	cache, err := OpenPipelineCache(dev, name)
	if err != nil {
		t.Fatal(err)
	}
	if len(dev.CacheInput) != 2 || len(dev.CacheInput[0]) != 64 || dev.CacheInput[1] != nil {
		t.Fatalf("cache creations: %d, want one with data then one empty", len(dev.CacheInput))
	}

	dev.CacheData = cacheBlob(pipelineCacheHeaderVersion, 128)
	ClosePipelineCache(cache, name)
	if dev.Live("pipeline-cache") != 0 {
		t.Fatal("cache not destroyed")
	}
	if got := LoadPipelineCache(name); !bytes.Equal(got, dev.CacheData) {
		t.Fatal("cache contents not saved on close")
	}
}
