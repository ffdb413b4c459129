package assets

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/resources"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func writeSPIRV(t *testing.T, path string) {
	t.Helper()
	b := make([]byte, 16)
	binary.LittleEndian.PutUint32(b, 0x07230203)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestAssetType(t *testing.T) {
	for path, want := range map[string]resources.ResourceType{
		"shaders/a.vert.spv": resources.ResourceTypeShader,
		"textures/B.PNG":     resources.ResourceTypeImage,
		"textures/c.webp":    resources.ResourceTypeImage,
		"fonts/d.fnt":        resources.ResourceTypeBitmapFont,
		"fonts/e.ttf":        resources.ResourceTypeSystemFont,
		"readme.md":          resources.ResourceTypeNone,
	} {
		if have := AssetType(path); have != want {
			t.Errorf("%s: have %v, want %v", path, have, want)
		}
	}
}

func TestLoadAsset(t *testing.T) {
	root := t.TempDir()
	writeSPIRV(t, filepath.Join(root, "shaders", "sprite.vert.spv"))
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	am, err := NewAssetManager(core.AssetsConfig{Dir: root})
	if err != nil {
		t.Fatalf("NewAssetManager: %v", err)
	}
	defer am.Close()

	if am.Count() != 1 {
		t.Fatalf("Count: have %d, want 1", am.Count())
	}
	res, err := am.LoadAsset("sprite.vert", resources.ResourceTypeShader, nil)
	if err != nil {
		t.Fatalf("LoadAsset: %v", err)
	}
	if res.Type != resources.ResourceTypeShader || res.Data.(*resources.ShaderData).Stage != resources.ShaderStageVertex {
		t.Fatalf("resource: have %+v", res)
	}
	if err := am.UnloadAsset(res); err != nil || res.Data != nil {
		t.Fatalf("UnloadAsset: %v, data %v", err, res.Data)
	}

	_, err = am.LoadAsset("missing", resources.ResourceTypeImage, nil)
	if !errors.Is(err, core.ErrAssetNotFound) {
		t.Fatalf("missing asset: have %v, want ErrAssetNotFound", err)
	}
	if _, err := am.LoadAsset("x", resources.ResourceTypeNone, nil); core.KindOf(err) != core.KindUsage {
		t.Fatalf("unknown type: have %v, want a usage error", err)
	}
}

func TestNewAssetManagerRejectsMissingDir(t *testing.T) {
	_, err := NewAssetManager(core.AssetsConfig{Dir: filepath.Join(t.TempDir(), "nope")})
	if core.KindOf(err) != core.KindInit {
		t.Fatalf("have %v, want an init error", err)
	}
}

func TestWatchFiresAssetChanged(t *testing.T) {
	if !core.EventSystemInitialize() {
		t.Fatal("event system already initialized")
	}
	defer core.EventSystemShutdown()

	var changed []string
	core.EventRegister(core.EVENT_CODE_ASSET_CHANGED, func(ctx core.EventContext) {
		changed = append(changed, ctx.Data.(*core.AssetEvent).Path)
	})

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "shaders"), 0o755); err != nil {
		t.Fatal(err)
	}
	am, err := NewAssetManager(core.AssetsConfig{Dir: root, Watch: true})
	if err != nil {
		t.Fatalf("NewAssetManager: %v", err)
	}
	defer am.Close()

	writeSPIRV(t, filepath.Join(root, "shaders", "sprite.frag.spv"))

	deadline := time.Now().Add(5 * time.Second)
	for len(changed) == 0 && time.Now().Before(deadline) {
		core.EventDispatch()
		time.Sleep(10 * time.Millisecond)
	}
	if len(changed) == 0 || changed[0] != "shaders/sprite.frag.spv" {
		t.Fatalf("changed: have %v, want shaders/sprite.frag.spv", changed)
	}
	if _, ok := am.Info("shaders/sprite.frag.spv"); !ok {
		t.Fatal("new file not indexed")
	}

	if err := am.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := am.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
