package loaders

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/resources"
)

type ImageLoader struct{}

// Load decodes any registered image format into RGBA8. params may be a
// *resources.ImageParams.
func (il *ImageLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.WrapError(err, core.KindInit, "opening image %s", path)
	}
	defer f.Close()

	var flip bool
	if p, ok := params.(*resources.ImageParams); ok && p != nil {
		flip = p.FlipY
	}
	data, format, err := DecodeImage(f, flip)
	if err != nil {
		return nil, core.WrapError(err, core.KindUsage, "decoding image %s", path)
	}
	core.LogDebug("Loaded %s image %s (%dx%d).", format, path, data.Width, data.Height)
	return &resources.Resource{
		Name:     path,
		FullPath: path,
		Type:     resources.ResourceTypeImage,
		DataSize: uint64(len(data.Pixels)),
		Data:     data,
	}, nil
}

func (il *ImageLoader) Unload(r *resources.Resource) error {
	r.Data = nil
	r.DataSize = 0
	return nil
}

// DecodeImage decodes r and returns its pixels as tightly packed RGBA8.
func DecodeImage(r io.Reader, flipY bool) (*resources.ImageData, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", err
	}
	return ToRGBA(img, flipY), format, nil
}

// ToRGBA converts img to tightly packed RGBA8, optionally bottom row first.
func ToRGBA(img image.Image, flipY bool) *resources.ImageData {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	w, h := b.Dx(), b.Dy()
	pixels := rgba.Pix
	if rgba.Stride != w*4 || flipY {
		pixels = make([]byte, w*h*4)
		for y := 0; y < h; y++ {
			src := y
			if flipY {
				src = h - 1 - y
			}
			copy(pixels[y*w*4:(y+1)*w*4], rgba.Pix[src*rgba.Stride:src*rgba.Stride+w*4])
		}
	}
	return &resources.ImageData{Width: uint32(w), Height: uint32(h), Pixels: pixels}
}
