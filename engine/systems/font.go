package systems

import (
	"fmt"
	"image"
	"sort"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
	"github.com/spaghettifunk/tessera/engine/resources"
)

// DefaultFontName selects the built-in Go Regular face.
const DefaultFontName = "default"

const (
	firstASCII = 32
	lastASCII  = 126
	// padding between packed glyphs, in texels
	glyphPadding = 1
	maxAtlasSize = 4096
)

type FontType int

const (
	FontTypeBitmap FontType = iota
	FontTypeSystem
)

// Font is a laid out face with its atlas pages uploaded.
type Font struct {
	Name  string
	Type  FontType
	Data  *resources.FontData
	Pages []*renderer.Texture

	glyphs   map[rune]int
	kernings map[[2]rune]int16
}

func newFont(name string, t FontType, data *resources.FontData, pages []*renderer.Texture) *Font {
	f := &Font{
		Name:     name,
		Type:     t,
		Data:     data,
		Pages:    pages,
		glyphs:   make(map[rune]int, len(data.Glyphs)),
		kernings: make(map[[2]rune]int16, len(data.Kernings)),
	}
	for i, g := range data.Glyphs {
		f.glyphs[g.Codepoint] = i
	}
	for _, k := range data.Kernings {
		f.kernings[[2]rune{k.Codepoint0, k.Codepoint1}] = k.Amount
	}
	return f
}

func (f *Font) Glyph(r rune) (resources.FontGlyph, bool) {
	i, ok := f.glyphs[r]
	if !ok {
		return resources.FontGlyph{}, false
	}
	return f.Data.Glyphs[i], true
}

func (f *Font) Kerning(r0, r1 rune) int16 {
	return f.kernings[[2]rune{r0, r1}]
}

type FontSystemConfig struct {
	MaxFontCount uint32
	// Pixel size used when a system font is acquired without one.
	DefaultSize float64
}

type FontSystem struct {
	config  FontSystemConfig
	fonts   map[string]*Font
	assets  AssetSource
	backend TextureBackend
}

func NewFontSystem(config FontSystemConfig, am AssetSource, backend TextureBackend) (*FontSystem, error) {
	if config.MaxFontCount == 0 {
		return nil, core.NewError(core.KindUsage, "font system: MaxFontCount must be > 0")
	}
	if config.DefaultSize <= 0 {
		config.DefaultSize = 16
	}
	return &FontSystem{
		config:  config,
		fonts:   make(map[string]*Font),
		assets:  am,
		backend: backend,
	}, nil
}

func (fs *FontSystem) Shutdown() error {
	fs.fonts = make(map[string]*Font)
	return nil
}

func fontKey(name string, size float64) string {
	return fmt.Sprintf("%s@%g", name, size)
}

// LoadBitmap loads fonts/<name>.fnt and uploads its pages.
func (fs *FontSystem) LoadBitmap(name string) (*Font, error) {
	if f, ok := fs.fonts[name]; ok {
		return f, nil
	}
	if err := fs.checkCapacity(); err != nil {
		return nil, err
	}
	res, err := fs.assets.LoadAsset(name, resources.ResourceTypeBitmapFont, nil)
	if err != nil {
		return nil, err
	}
	data := res.Data.(*resources.BitmapFontData)
	extent := gpu.Extent2D{Width: uint32(data.Font.AtlasSizeX), Height: uint32(data.Font.AtlasSizeY)}
	pages := make([]*renderer.Texture, 0, len(data.Pages))
	for _, p := range data.Pages {
		tex, err := fs.backend.CreateTexture(p.Pixels, gpu.FormatRGBA8Unorm, extent)
		if err != nil {
			return nil, core.WrapError(err, core.KindUsage, "uploading page %d of font %s", p.ID, name)
		}
		pages = append(pages, tex)
	}
	f := newFont(name, FontTypeBitmap, data.Font, pages)
	fs.fonts[name] = f
	core.LogDebug("Bitmap font '%s' ready with %d pages.", name, len(pages))
	return f, nil
}

// LoadSystem rasterizes printable ASCII of fonts/<name>.ttf at size pixels
// into a single atlas. DefaultFontName uses the built-in Go Regular face.
func (fs *FontSystem) LoadSystem(name string, size float64) (*Font, error) {
	if size <= 0 {
		size = fs.config.DefaultSize
	}
	key := fontKey(name, size)
	if f, ok := fs.fonts[key]; ok {
		return f, nil
	}
	if err := fs.checkCapacity(); err != nil {
		return nil, err
	}

	binary, face := goregular.TTF, "Go Regular"
	if name != DefaultFontName {
		res, err := fs.assets.LoadAsset(name, resources.ResourceTypeSystemFont, nil)
		if err != nil {
			return nil, err
		}
		data := res.Data.(*resources.SystemFontData)
		binary, face = data.Binary, data.Face
	}

	data, atlas, err := RasterizeFont(binary, size)
	if err != nil {
		return nil, core.WrapError(err, core.KindUsage, "rasterizing font %s at %g", name, size)
	}
	data.Face = face
	tex, err := fs.backend.CreateTexture(atlas.Pixels, gpu.FormatRGBA8Unorm, gpu.Extent2D{Width: atlas.Width, Height: atlas.Height})
	if err != nil {
		return nil, core.WrapError(err, core.KindUsage, "uploading atlas of font %s", name)
	}
	f := newFont(key, FontTypeSystem, data, []*renderer.Texture{tex})
	fs.fonts[key] = f
	core.LogDebug("System font '%s' rasterized at %g into a %dx%d atlas.", face, size, atlas.Width, atlas.Height)
	return f, nil
}

func (fs *FontSystem) checkCapacity() error {
	if uint32(len(fs.fonts)) >= fs.config.MaxFontCount {
		return core.Raise(core.ErrAllocatorExhausted, core.KindCapacity, "font system holds %d fonts already", len(fs.fonts))
	}
	return nil
}

// RasterizeFont renders printable ASCII of a TrueType or OpenType font into
// a white RGBA8 atlas whose alpha is glyph coverage.
func RasterizeFont(binary []byte, size float64) (*resources.FontData, *resources.ImageData, error) {
	parsed, err := opentype.Parse(binary)
	if err != nil {
		return nil, nil, err
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, nil, err
	}
	defer face.Close()

	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	data := &resources.FontData{
		Size:       uint32(size),
		LineHeight: int32(metrics.Height.Ceil()),
		Baseline:   int32(ascent),
	}

	type glyphBox struct {
		r          rune
		minX, minY int
		w, h       int
		advance    int
	}
	boxes := make([]glyphBox, 0, lastASCII-firstASCII+1)
	for r := rune(firstASCII); r <= lastASCII; r++ {
		bounds, advance, ok := face.GlyphBounds(r)
		if !ok {
			continue
		}
		minX, minY := bounds.Min.X.Floor(), bounds.Min.Y.Floor()
		boxes = append(boxes, glyphBox{
			r:       r,
			minX:    minX,
			minY:    minY,
			w:       bounds.Max.X.Ceil() - minX,
			h:       bounds.Max.Y.Ceil() - minY,
			advance: advance.Round(),
		})
	}

	sizes := make([]image.Point, len(boxes))
	for i, b := range boxes {
		sizes[i] = image.Pt(b.w, b.h)
	}
	positions, atlasW, atlasH, err := packShelves(sizes)
	if err != nil {
		return nil, nil, err
	}

	atlas := image.NewAlpha(image.Rect(0, 0, atlasW, atlasH))
	for i, b := range boxes {
		pos := positions[i]
		if b.w > 0 && b.h > 0 {
			dot := fixed.P(pos.X-b.minX, pos.Y-b.minY)
			dr, mask, maskp, _, ok := face.Glyph(dot, b.r)
			if ok {
				draw.Draw(atlas, dr, mask, maskp, draw.Over)
			}
		}
		data.Glyphs = append(data.Glyphs, resources.FontGlyph{
			Codepoint: b.r,
			X:         uint16(pos.X),
			Y:         uint16(pos.Y),
			Width:     uint16(b.w),
			Height:    uint16(b.h),
			XOffset:   int16(b.minX),
			YOffset:   int16(b.minY + ascent),
			XAdvance:  int16(b.advance),
		})
		if b.r == ' ' {
			data.TabXAdvance = float32(b.advance) * 4
		}
	}

	for _, g0 := range boxes {
		for _, g1 := range boxes {
			if k := face.Kern(g0.r, g1.r).Round(); k != 0 {
				data.Kernings = append(data.Kernings, resources.FontKerning{Codepoint0: g0.r, Codepoint1: g1.r, Amount: int16(k)})
			}
		}
	}

	data.AtlasSizeX, data.AtlasSizeY = int32(atlasW), int32(atlasH)
	pixels := make([]byte, atlasW*atlasH*4)
	for i, a := range atlas.Pix {
		pixels[i*4+0] = 255
		pixels[i*4+1] = 255
		pixels[i*4+2] = 255
		pixels[i*4+3] = a
	}
	return data, &resources.ImageData{Width: uint32(atlasW), Height: uint32(atlasH), Pixels: pixels}, nil
}

// packShelves places boxes tallest first on horizontal shelves of a square
// power of two atlas, growing it until everything fits.
func packShelves(sizes []image.Point) ([]image.Point, int, int, error) {
	order := make([]int, len(sizes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return sizes[order[a]].Y > sizes[order[b]].Y })

	positions := make([]image.Point, len(sizes))
	for side := 64; side <= maxAtlasSize; side *= 2 {
		x, y, shelf := glyphPadding, glyphPadding, 0
		fits := true
		for _, i := range order {
			s := sizes[i]
			if x+s.X+glyphPadding > side {
				x, y, shelf = glyphPadding, y+shelf+glyphPadding, 0
			}
			if s.X+2*glyphPadding > side || y+s.Y+glyphPadding > side {
				fits = false
				break
			}
			positions[i] = image.Pt(x, y)
			x += s.X + glyphPadding
			shelf = max(shelf, s.Y)
		}
		if fits {
			return positions, side, side, nil
		}
	}
	return nil, 0, 0, core.Raise(core.ErrAllocatorExhausted, core.KindCapacity, "glyphs do not fit a %dx%d atlas", maxAtlasSize, maxAtlasSize)
}

// TextGeometry is a run of glyph quads, four vertices and six indices each,
// all sampling atlas page Page.
type TextGeometry struct {
	Page     int
	Vertices []math.Vertex2D
	Indices  []uint16
}

// Layout builds quads for text with its top left corner at origin. Newlines
// restart at origin.X one line lower, tabs advance by the font's tab width
// and runes the font lacks fall back to '?' or are skipped.
func (f *Font) Layout(text string, origin math.Vec2, colour math.Vec4) []TextGeometry {
	byPage := make(map[int]*TextGeometry)
	var pages []int
	atlasW, atlasH := float32(f.Data.AtlasSizeX), float32(f.Data.AtlasSizeY)

	x, y := origin.X, origin.Y
	runes := []rune(text)
	for i, r := range runes {
		switch r {
		case '\n':
			x = origin.X
			y += float32(f.Data.LineHeight)
			continue
		case '\t':
			x += f.Data.TabXAdvance
			continue
		}
		g, ok := f.Glyph(r)
		if !ok {
			if g, ok = f.Glyph('?'); !ok {
				continue
			}
		}
		if g.Width > 0 && g.Height > 0 {
			page := int(g.PageID)
			geo, ok := byPage[page]
			if !ok {
				geo = &TextGeometry{Page: page}
				byPage[page] = geo
				pages = append(pages, page)
			}
			minX, minY := x+float32(g.XOffset), y+float32(g.YOffset)
			maxX, maxY := minX+float32(g.Width), minY+float32(g.Height)
			u0, v0 := float32(g.X)/atlasW, float32(g.Y)/atlasH
			u1, v1 := float32(g.X+g.Width)/atlasW, float32(g.Y+g.Height)/atlasH

			base := uint16(len(geo.Vertices))
			geo.Vertices = append(geo.Vertices,
				math.Vertex2D{Position: math.NewVec2(minX, minY), Texcoord: math.NewVec2(u0, v0), Colour: colour},
				math.Vertex2D{Position: math.NewVec2(maxX, minY), Texcoord: math.NewVec2(u1, v0), Colour: colour},
				math.Vertex2D{Position: math.NewVec2(maxX, maxY), Texcoord: math.NewVec2(u1, v1), Colour: colour},
				math.Vertex2D{Position: math.NewVec2(minX, maxY), Texcoord: math.NewVec2(u0, v1), Colour: colour},
			)
			geo.Indices = append(geo.Indices, base, base+1, base+2, base+2, base+3, base)
		}
		x += float32(g.XAdvance)
		if i+1 < len(runes) {
			x += float32(f.Kerning(r, runes[i+1]))
		}
	}

	sort.Ints(pages)
	out := make([]TextGeometry, 0, len(pages))
	for _, p := range pages {
		out = append(out, *byPage[p])
	}
	return out
}

// Measure returns the width of the widest line and the height of all lines.
func (f *Font) Measure(text string) (float32, float32) {
	var width, x float32
	lines := 1
	runes := []rune(text)
	for i, r := range runes {
		switch r {
		case '\n':
			width = max(width, x)
			x = 0
			lines++
			continue
		case '\t':
			x += f.Data.TabXAdvance
			continue
		}
		g, ok := f.Glyph(r)
		if !ok {
			if g, ok = f.Glyph('?'); !ok {
				continue
			}
		}
		x += float32(g.XAdvance)
		if i+1 < len(runes) {
			x += float32(f.Kerning(r, runes[i+1]))
		}
	}
	return max(width, x), float32(lines * int(f.Data.LineHeight))
}
