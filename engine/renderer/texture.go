package renderer

import (
	"github.com/google/uuid"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

// Texture is a sampled device-local image. Its memory belongs to the
// renderer's linear allocator and lives until shutdown.
type Texture struct {
	ID     uuid.UUID
	Image  gpu.Image
	View   gpu.ImageView
	Offset uint64
	Extent gpu.Extent2D
	Format gpu.Format
}

func validateTexture(limits gpu.Limits, pixels []byte, format gpu.Format, extent gpu.Extent2D) error {
	if extent.Width == 0 || extent.Height == 0 {
		return core.Raise(core.ErrInvalidTexture, core.KindUsage, "texture extent %dx%d is empty", extent.Width, extent.Height)
	}
	if limits.MaxImageDimension2D > 0 && (extent.Width > limits.MaxImageDimension2D || extent.Height > limits.MaxImageDimension2D) {
		return core.Raise(core.ErrInvalidTexture, core.KindUsage,
			"texture extent %dx%d exceeds the device limit of %d", extent.Width, extent.Height, limits.MaxImageDimension2D)
	}
	bpp := format.BytesPerPixel()
	if bpp == 0 || format.IsDepth() {
		return core.Raise(core.ErrInvalidTexture, core.KindUsage, "%s is not a texture format", format)
	}
	if want := int(extent.Width) * int(extent.Height) * bpp; len(pixels) != want {
		return core.Raise(core.ErrInvalidTexture, core.KindUsage,
			"%dx%d %s texture needs %d bytes, got %d", extent.Width, extent.Height, format, want, len(pixels))
	}
	return nil
}

// CreateTexture allocates an image for pixels, tightly packed in format, and
// schedules its upload for the next frame.
func (r *Renderer) CreateTexture(pixels []byte, format gpu.Format, extent gpu.Extent2D) (*Texture, error) {
	if err := validateTexture(r.device.Limits(), pixels, format, extent); err != nil {
		return nil, err
	}
	if uint32(len(r.textures)) >= r.cfg.MaxTextures {
		return nil, core.Raise(core.ErrAllocatorExhausted, core.KindCapacity, "texture limit of %d reached", r.cfg.MaxTextures)
	}

	img, offset, err := r.linear.NewImage(gpu.ImageDesc{
		Format:  format,
		Extent:  extent,
		Usage:   gpu.ImageUsageSampled | gpu.ImageUsageTransferDst,
		Samples: 1,
	})
	if err != nil {
		return nil, err
	}
	view, err := img.NewView()
	if err != nil {
		return nil, core.WrapError(err, core.KindInit, "creating texture view")
	}
	tex := &Texture{
		ID:     uuid.New(),
		Image:  img,
		View:   view,
		Offset: offset,
		Extent: extent,
		Format: format,
	}
	r.textures[tex.ID] = tex
	if err := r.staging.ImageCopy(pixels, img); err != nil {
		// the texture exists but stays undefined until updated
		return tex, err
	}
	core.LogDebug("texture %s: %dx%d %s", tex.ID, extent.Width, extent.Height, format)
	return tex, nil
}

// UpdateTexture schedules an upload of pixels into the region of tex at offset.
func (r *Renderer) UpdateTexture(tex *Texture, pixels []byte, offset gpu.Offset2D, extent gpu.Extent2D) error {
	if tex == nil || r.textures[tex.ID] != tex {
		return core.Raise(core.ErrInvalidTexture, core.KindUsage, "unknown texture")
	}
	return r.staging.ImageRegionCopy(pixels, tex.Image, offset, extent)
}

// Texture looks up a texture by ID.
func (r *Renderer) Texture(id uuid.UUID) (*Texture, bool) {
	tex, ok := r.textures[id]
	return tex, ok
}

func (r *Renderer) NewSampler(filter gpu.Filter, address gpu.AddressMode) (gpu.Sampler, error) {
	desc := gpu.SamplerDesc{Filter: filter, AddressMode: address}
	if filter == gpu.FilterLinear {
		desc.Anisotropy = r.device.Limits().MaxSamplerAnisotropy
	}
	s, err := r.device.NewSampler(desc)
	if err != nil {
		return nil, core.WrapError(err, core.KindInit, "creating sampler")
	}
	r.samplers = append(r.samplers, s)
	return s, nil
}
