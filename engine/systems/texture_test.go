package systems

import (
	"image/color"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

func TestCheckerboard(t *testing.T) {
	px := checkerboard(4, 2)
	if len(px) != 64 {
		t.Fatalf("size: have %d, want 64", len(px))
	}
	white := func(x, y int) bool { return px[(y*4+x)*4] == 255 }
	if !white(0, 0) || white(2, 0) || white(0, 2) || !white(3, 3) {
		t.Fatalf("unexpected pattern: %v", px)
	}
}

func TestTextureAcquireRelease(t *testing.T) {
	f := newFixture(t, func(root string) {
		writeImage(t, filepath.Join(root, "textures", "crate.png"), 4, 4, color.White)
	})
	ts, err := NewTextureSystem(TextureSystemConfig{MaxTextureCount: 2}, f.jobs, f.assets, f.renderer)
	if err != nil {
		t.Fatal(err)
	}
	if ts.Default() == nil || ts.Default().Extent != (gpu.Extent2D{Width: 256, Height: 256}) {
		t.Fatal("default texture missing")
	}

	crate, err := ts.Acquire("crate")
	if err != nil {
		t.Fatal(err)
	}
	if crate == ts.Default() || crate.Extent != (gpu.Extent2D{Width: 4, Height: 4}) {
		t.Fatalf("crate: have %+v", crate.Extent)
	}
	again, _ := ts.Acquire("crate")
	if again != crate {
		t.Fatal("second Acquire created a new texture")
	}
	if ref, _ := ts.Reference("crate"); ref.ReferenceCount != 2 {
		t.Fatalf("references: have %d, want 2", ref.ReferenceCount)
	}

	missing, err := ts.Acquire("nope")
	if err != nil || missing != ts.Default() {
		t.Fatalf("missing texture: have %v, %v, want the default", missing, err)
	}
	if def, _ := ts.Acquire(DefaultTextureName); def != ts.Default() {
		t.Fatal("default name did not return the default texture")
	}

	ts.Release("crate")
	ts.Release("crate")
	if _, ok := ts.Reference("crate"); ok {
		t.Fatal("texture still registered after its last Release")
	}
}

func TestTextureAcquireAsync(t *testing.T) {
	f := newFixture(t, func(root string) {
		writeImage(t, filepath.Join(root, "textures", "hero.png"), 8, 2, color.Black)
	})
	ts, err := NewTextureSystem(TextureSystemConfig{MaxTextureCount: 4}, f.jobs, f.assets, f.renderer)
	if err != nil {
		t.Fatal(err)
	}

	var hero, missing *renderer.Texture
	if err := ts.AcquireAsync("hero", func(tex *renderer.Texture) { hero = tex }); err != nil {
		t.Fatal(err)
	}
	if err := ts.AcquireAsync("ghost", func(tex *renderer.Texture) { missing = tex }); err != nil {
		t.Fatal(err)
	}
	f.settle(t)

	if hero == nil || hero.Extent != (gpu.Extent2D{Width: 8, Height: 2}) {
		t.Fatalf("hero: have %+v", hero)
	}
	if missing != ts.Default() {
		t.Fatal("failed async load did not fall back to the default")
	}
}

func TestTextureReload(t *testing.T) {
	var path string
	f := newFixture(t, func(root string) {
		path = filepath.Join(root, "textures", "crate.png")
		writeImage(t, path, 4, 4, color.White)
	})
	ts, err := NewTextureSystem(TextureSystemConfig{MaxTextureCount: 4}, f.jobs, f.assets, f.renderer)
	if err != nil {
		t.Fatal(err)
	}
	crate, err := ts.Acquire("crate")
	if err != nil {
		t.Fatal(err)
	}
	var reloaded []string
	ts.OnReload(func(name string, tex *renderer.Texture) { reloaded = append(reloaded, name) })

	// same size: rewritten in place
	writeImage(t, path, 4, 4, color.Black)
	if err := ts.Reload("textures/crate.png"); err != nil {
		t.Fatal(err)
	}
	f.settle(t)
	ref, _ := ts.Reference("crate")
	if ref.Texture != crate || ref.Generation != 1 || len(reloaded) != 0 {
		t.Fatalf("in place reload: generation %d, callbacks %v", ref.Generation, reloaded)
	}

	// new size: replaced
	writeImage(t, path, 8, 8, color.Black)
	if err := ts.Reload("textures/crate.png"); err != nil {
		t.Fatal(err)
	}
	f.settle(t)
	ref, _ = ts.Reference("crate")
	if ref.Texture == crate || ref.Texture.Extent.Width != 8 || ref.Generation != 2 {
		t.Fatalf("resized reload: have %+v generation %d", ref.Texture.Extent, ref.Generation)
	}
	if len(reloaded) != 1 || reloaded[0] != "crate" {
		t.Fatalf("callbacks: have %v", reloaded)
	}

	// untracked and foreign paths are ignored
	if err := ts.Reload("textures/other.png"); err != nil {
		t.Fatal(err)
	}
	if err := ts.Reload("shaders/sprite.vert.spv"); err != nil {
		t.Fatal(err)
	}
	if f.jobs.Pending() != 0 {
		t.Fatal("ignored paths queued work")
	}
}

func TestTextureName(t *testing.T) {
	for rel, want := range map[string]string{
		"textures/crate.png":    "crate",
		"textures/ui/icon.webp": "ui/icon",
	} {
		if have, ok := textureName(rel); !ok || have != want {
			t.Errorf("%s: have %q, want %q", rel, have, want)
		}
	}
	if _, ok := textureName("fonts/a.png"); ok {
		t.Error("path outside textures/ accepted")
	}
}
