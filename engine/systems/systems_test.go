package systems

import (
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/tessera/engine/assets"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu/gputest"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

type fixture struct {
	root     string
	dev      *gputest.Device
	renderer *renderer.Renderer
	assets   *assets.AssetManager
	jobs     *JobSystem
}

// newFixture builds a renderer on the fake device and an asset manager over
// a temp directory. write runs before the directory is indexed.
func newFixture(t *testing.T, write func(root string)) *fixture {
	t.Helper()
	f := &fixture{root: t.TempDir(), dev: gputest.NewDevice()}
	if write != nil {
		write(f.root)
	}

	cfg := core.DefaultConfig().Renderer
	cfg.DeviceMemoryMB = 8
	cfg.StagingMemoryMB = 4
	cfg.StorageSlots = 4
	cfg.PipelineCache = filepath.Join(t.TempDir(), "pipeline.cache")
	r, err := renderer.New(f.dev, cfg)
	if err != nil {
		t.Fatal(err)
	}
	f.renderer = r
	t.Cleanup(r.Shutdown)

	if f.assets, err = assets.NewAssetManager(core.AssetsConfig{Dir: f.root}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.assets.Close() })

	if f.jobs, err = NewJobSystem(2, 8); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.jobs.Shutdown() })
	return f
}

// settle runs Update until every submitted job was delivered.
func (f *fixture) settle(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for f.jobs.Pending() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("%d jobs still pending", f.jobs.Pending())
		}
		f.jobs.Update()
		time.Sleep(time.Millisecond)
	}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeImage(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	fh, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer fh.Close()
	if err := png.Encode(fh, img); err != nil {
		t.Fatal(err)
	}
}

func spirv(words int, marker uint32) []byte {
	b := make([]byte, words*4)
	binary.LittleEndian.PutUint32(b, 0x07230203)
	binary.LittleEndian.PutUint32(b[4:], marker)
	return b
}
