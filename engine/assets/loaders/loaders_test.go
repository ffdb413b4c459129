package loaders

import (
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/resources"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func spirv(words int) []byte {
	b := make([]byte, words*4)
	binary.LittleEndian.PutUint32(b, spirvMagic)
	return b
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestShaderLoader(t *testing.T) {
	dir := t.TempDir()
	vert := filepath.Join(dir, "sprite.vert.spv")
	if err := os.WriteFile(vert, spirv(5), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := (&ShaderLoader{}).Load(vert, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	data := res.Data.(*resources.ShaderData)
	if data.Stage != resources.ShaderStageVertex {
		t.Fatalf("stage: have %v, want vertex", data.Stage)
	}
	if res.Name != "sprite.vert" || res.DataSize != 20 {
		t.Fatalf("resource: have %q/%d, want sprite.vert/20", res.Name, res.DataSize)
	}

	for name, code := range map[string][]byte{
		"odd.frag.spv":   append(spirv(2), 0),
		"magic.frag.spv": make([]byte, 8),
		"empty.frag.spv": nil,
		"nostage.spv":    spirv(2),
	} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, code, 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := (&ShaderLoader{}).Load(path, nil); core.KindOf(err) != core.KindUsage {
			t.Errorf("%s: have %v, want a usage error", name, err)
		}
	}
}

func TestToRGBAFlip(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(0, 1, color.NRGBA{B: 255, A: 255})

	data := ToRGBA(img, false)
	if data.Width != 2 || data.Height != 2 || len(data.Pixels) != 16 {
		t.Fatalf("size: have %dx%d/%d", data.Width, data.Height, len(data.Pixels))
	}
	if data.Pixels[0] != 255 || data.Pixels[8+2] != 255 {
		t.Fatalf("unflipped rows out of order: %v", data.Pixels)
	}

	flipped := ToRGBA(img, true)
	if flipped.Pixels[2] != 255 || flipped.Pixels[8] != 255 {
		t.Fatalf("flipped rows out of order: %v", flipped.Pixels)
	}
}

func TestToRGBASubImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(2, 2, color.RGBA{G: 200, A: 255})
	sub := img.SubImage(image.Rect(2, 2, 4, 4))

	data := ToRGBA(sub, false)
	if data.Width != 2 || len(data.Pixels) != 16 {
		t.Fatalf("have %dx%d/%d, want 2x2/16", data.Width, data.Height, len(data.Pixels))
	}
	if data.Pixels[1] != 200 {
		t.Fatalf("origin pixel: have %v", data.Pixels[:4])
	}
}

func TestImageLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checker.png")
	img := image.NewRGBA(image.Rect(0, 0, 3, 5))
	writePNG(t, path, img)

	res, err := (&ImageLoader{}).Load(path, &resources.ImageParams{FlipY: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	data := res.Data.(*resources.ImageData)
	if data.Width != 3 || data.Height != 5 || res.DataSize != 60 {
		t.Fatalf("have %dx%d/%d", data.Width, data.Height, res.DataSize)
	}

	bad := filepath.Join(t.TempDir(), "bad.png")
	if err := os.WriteFile(bad, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := (&ImageLoader{}).Load(bad, nil); core.KindOf(err) != core.KindUsage {
		t.Fatalf("bad image: have %v, want a usage error", err)
	}
}

func TestSystemFontLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "go.ttf")
	if err := os.WriteFile(path, goregular.TTF, 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := (&SystemFontLoader{}).Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	data := res.Data.(*resources.SystemFontData)
	if data.Face != "Go" {
		t.Fatalf("face: have %q, want Go", data.Face)
	}
	if len(data.Binary) != len(goregular.TTF) {
		t.Fatal("binary not kept")
	}

	if _, err := ParseSystemFont([]byte("nope")); err == nil {
		t.Fatal("garbage parsed as a font")
	}
}

const testFnt = `info face="Test" size=16 bold=0 italic=0 charset="" unicode=1 stretchH=100 smooth=1 aa=1 padding=0,0,0,0 spacing=1,1 outline=0
common lineHeight=18 base=14 scaleW=8 scaleH=8 pages=1 packed=0 alphaChnl=0 redChnl=0 greenChnl=0 blueChnl=0
page id=0 file="test_0.png"
chars count=2
char id=65   x=0 y=0 width=4 height=6 xoffset=0 yoffset=2 xadvance=5 page=0 chnl=15
char id=32   x=0 y=0 width=0 height=0 xoffset=0 yoffset=0 xadvance=4 page=0 chnl=15
kernings count=1
kerning first=65 second=65 amount=-1
`

func TestBitmapFontLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.fnt")
	if err := os.WriteFile(path, []byte(testFnt), 0o644); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(dir, "test_0.png"), image.NewRGBA(image.Rect(0, 0, 8, 8)))

	res, err := (&BitmapFontLoader{}).Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	data := res.Data.(*resources.BitmapFontData)
	f := data.Font
	if f.Face != "Test" || f.Size != 16 || f.LineHeight != 18 || f.Baseline != 14 {
		t.Fatalf("metrics: have %+v", f)
	}
	if len(f.Glyphs) != 2 || f.Glyphs[0].Codepoint != ' ' || f.Glyphs[1].Codepoint != 'A' {
		t.Fatalf("glyphs: have %+v", f.Glyphs)
	}
	if f.TabXAdvance != 16 {
		t.Fatalf("tab advance: have %v, want 16", f.TabXAdvance)
	}
	if len(f.Kernings) != 1 || f.Kernings[0].Amount != -1 {
		t.Fatalf("kernings: have %+v", f.Kernings)
	}
	if len(data.Pages) != 1 || len(data.Pages[0].Pixels) != 8*8*4 {
		t.Fatalf("pages: have %d", len(data.Pages))
	}
}
