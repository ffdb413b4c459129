package systems

import (
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/tessera/engine/core"
)

func TestSystemManagerRoutesAssetChanges(t *testing.T) {
	var path string
	f := newFixture(t, func(root string) {
		path = filepath.Join(root, "textures", "tile.png")
		writeImage(t, path, 4, 4, color.White)
	})
	if !core.EventSystemInitialize() {
		t.Fatal("event system already running")
	}
	t.Cleanup(func() { core.EventSystemShutdown() })

	sm, err := NewSystemManager(DefaultSystemManagerConfig(core.DefaultConfig()), f.renderer, f.assets)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sm.Textures().Acquire("tile"); err != nil {
		t.Fatal(err)
	}

	changed := func(rel string) {
		t.Helper()
		core.EventFire(core.EventContext{Type: core.EVENT_CODE_ASSET_CHANGED, Data: &core.AssetEvent{Path: rel}})
		core.EventDispatch()
		deadline := time.Now().Add(5 * time.Second)
		for sm.Jobs().Pending() > 0 {
			if time.Now().After(deadline) {
				t.Fatal("reload job never finished")
			}
			sm.Update()
			time.Sleep(time.Millisecond)
		}
	}

	writeImage(t, path, 4, 4, color.Black)
	changed("textures/tile.png")
	// not a texture or shader, ignored
	changed("fonts/mono.fnt")
	ref, ok := sm.Textures().Reference("tile")
	if !ok {
		t.Fatal("tile is no longer referenced")
	}
	if ref.Generation != 1 {
		t.Fatalf("have generation %d, want 1", ref.Generation)
	}

	if err := sm.Shutdown(); err != nil {
		t.Fatal(err)
	}
	// a closed manager ignores later changes
	changed("textures/tile.png")
}
