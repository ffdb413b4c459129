package systems

import (
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/tessera/engine/renderer/gpu/gputest"
)

func writeShaderPair(t *testing.T, root, name string, marker uint32) {
	writeFile(t, filepath.Join(root, "shaders", name+".vert.spv"), spirv(4, marker))
	writeFile(t, filepath.Join(root, "shaders", name+".frag.spv"), spirv(4, marker))
}

func TestShaderGetAndModules(t *testing.T) {
	f := newFixture(t, func(root string) { writeShaderPair(t, root, "sprite", 1) })
	ss, err := NewShaderSystem(ShaderSystemConfig{MaxShaderCount: 1}, f.assets, f.dev, f.renderer)
	if err != nil {
		t.Fatal(err)
	}

	s, err := ss.Get("sprite")
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Vertex) != 16 || len(s.Fragment) != 16 {
		t.Fatalf("code sizes: have %d/%d", len(s.Vertex), len(s.Fragment))
	}
	if again, _ := ss.Get("sprite"); again != s {
		t.Fatal("Get reloaded a cached shader")
	}

	vert, frag, err := ss.Modules("sprite")
	if err != nil {
		t.Fatal(err)
	}
	if f.dev.Live("shader-module") != 2 {
		t.Fatalf("live modules: have %d, want 2", f.dev.Live("shader-module"))
	}
	vert.Destroy()
	frag.Destroy()

	if _, err := ss.Get("missing"); err == nil {
		t.Fatal("missing shader loaded")
	}
}

func TestShaderReloadRecompilesBoundPipelines(t *testing.T) {
	var root string
	f := newFixture(t, func(r string) {
		root = r
		writeShaderPair(t, r, "sprite", 1)
	})
	if err := f.renderer.SetOutput(&gputest.Window{Width: 320, Height: 240}, 320, 240); err != nil {
		t.Fatal(err)
	}
	ss, err := NewShaderSystem(ShaderSystemConfig{MaxShaderCount: 4}, f.assets, f.dev, f.renderer)
	if err != nil {
		t.Fatal(err)
	}

	b := f.renderer.NewPipelineBuilder()
	if err := ss.Bind("sprite", b); err != nil {
		t.Fatal(err)
	}
	if err := f.renderer.CompilePipelines(b); err != nil {
		t.Fatal(err)
	}
	first := b.Pipeline()

	writeShaderPair(t, root, "sprite", 2)
	if err := ss.Reload("shaders/sprite.frag.spv"); err != nil {
		t.Fatal(err)
	}
	s, _ := ss.Get("sprite")
	if s.Generation != 1 || s.Vertex[4] != 2 {
		t.Fatalf("reloaded shader: generation %d, marker %d", s.Generation, s.Vertex[4])
	}
	if b.Pipeline() == first {
		t.Fatal("bound pipeline was not recompiled")
	}
	if n := f.dev.Live("shader-module"); n != 2 {
		t.Fatalf("live modules after reload: have %d, want 2", n)
	}
	if n := f.dev.Live("pipeline"); n != 1 {
		t.Fatalf("live pipelines after reload: have %d, want 1", n)
	}

	// a broken file keeps the old code
	writeFile(t, filepath.Join(root, "shaders", "sprite.vert.spv"), []byte{1, 2, 3})
	if err := ss.Reload("shaders/sprite.vert.spv"); err == nil {
		t.Fatal("broken shader reloaded")
	}
	if s.Generation != 1 {
		t.Fatal("failed reload bumped the generation")
	}
}

func TestShaderName(t *testing.T) {
	for rel, want := range map[string]string{
		"shaders/sprite.vert.spv":  "sprite",
		"shaders/ui/text.frag.spv": "ui/text",
	} {
		if have, ok := shaderName(rel); !ok || have != want {
			t.Errorf("%s: have %q, want %q", rel, have, want)
		}
	}
	if _, ok := shaderName("textures/sprite.png"); ok {
		t.Error("non shader path accepted")
	}
}
