package loaders

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/fzipp/bmfont"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/resources"
)

type BitmapFontLoader struct{}

// Load reads an AngelCode .fnt descriptor and decodes its page images, which
// are looked up next to the descriptor.
func (fl *BitmapFontLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	font, err := bmfont.Load(path)
	if err != nil {
		return nil, core.WrapError(err, core.KindUsage, "loading bitmap font %s", path)
	}
	d := font.Descriptor

	data := &resources.BitmapFontData{
		Font: &resources.FontData{
			Face:       d.Info.Face,
			Size:       uint32(d.Info.Size),
			LineHeight: int32(d.Common.LineHeight),
			Baseline:   int32(d.Common.Base),
			AtlasSizeX: int32(d.Common.ScaleW),
			AtlasSizeY: int32(d.Common.ScaleH),
			Glyphs:     make([]resources.FontGlyph, 0, len(d.Chars)),
			Kernings:   make([]resources.FontKerning, 0, len(d.Kerning)),
		},
	}

	for _, g := range d.Chars {
		data.Font.Glyphs = append(data.Font.Glyphs, resources.FontGlyph{
			Codepoint: g.ID,
			X:         uint16(g.X),
			Y:         uint16(g.Y),
			Width:     uint16(g.Width),
			Height:    uint16(g.Height),
			XOffset:   int16(g.XOffset),
			YOffset:   int16(g.YOffset),
			XAdvance:  int16(g.XAdvance),
			PageID:    uint8(g.Page),
		})
	}
	sort.Slice(data.Font.Glyphs, func(i, j int) bool {
		return data.Font.Glyphs[i].Codepoint < data.Font.Glyphs[j].Codepoint
	})

	for pair, k := range d.Kerning {
		data.Font.Kernings = append(data.Font.Kernings, resources.FontKerning{
			Codepoint0: pair.First,
			Codepoint1: pair.Second,
			Amount:     int16(k.Amount),
		})
	}

	for _, g := range data.Font.Glyphs {
		if g.Codepoint == ' ' {
			data.Font.TabXAdvance = float32(g.XAdvance) * 4
			break
		}
	}

	dir := filepath.Dir(path)
	for _, p := range d.Pages {
		page, err := loadPage(filepath.Join(dir, p.File))
		if err != nil {
			return nil, err
		}
		if int32(page.Width) != data.Font.AtlasSizeX || int32(page.Height) != data.Font.AtlasSizeY {
			return nil, core.NewError(core.KindUsage, "page %s is %dx%d, descriptor says %dx%d",
				p.File, page.Width, page.Height, data.Font.AtlasSizeX, data.Font.AtlasSizeY)
		}
		data.Pages = append(data.Pages, resources.BitmapFontPage{ID: p.ID, File: p.File, Pixels: page.Pixels})
	}
	sort.Slice(data.Pages, func(i, j int) bool { return data.Pages[i].ID < data.Pages[j].ID })

	core.LogDebug("Loaded bitmap font '%s' size %d: %d glyphs, %d pages.", d.Info.Face, d.Info.Size, len(data.Font.Glyphs), len(data.Pages))
	return &resources.Resource{
		Name:     d.Info.Face,
		FullPath: path,
		Type:     resources.ResourceTypeBitmapFont,
		Data:     data,
	}, nil
}

func (fl *BitmapFontLoader) Unload(r *resources.Resource) error {
	r.Data = nil
	r.DataSize = 0
	return nil
}

func loadPage(path string) (*resources.ImageData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.WrapError(err, core.KindInit, "opening font page %s", path)
	}
	defer f.Close()
	img, _, err := DecodeImage(f, false)
	if err != nil {
		return nil, core.WrapError(err, core.KindUsage, "decoding font page %s", path)
	}
	return img, nil
}
