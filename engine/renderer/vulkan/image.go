package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

type image struct {
	ctx      *Context
	handle   vk.Image
	format   gpu.Format
	extent   gpu.Extent2D
	reqs     gpu.MemoryRequirements
	typeBits uint32
	// Swapchain images belong to the swapchain and are never destroyed here.
	owned bool
}

func (c *Context) NewImage(desc gpu.ImageDesc) (gpu.Image, error) {
	samples := desc.Samples
	if samples == 0 {
		samples = 1
	}
	info := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vkFormat(desc.Format),
		Extent: vk.Extent3D{
			Width:  desc.Extent.Width,
			Height: desc.Extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vkSampleCount(samples),
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vkImageUsage(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	img := &image{ctx: c, format: desc.Format, extent: desc.Extent, owned: true}
	if err := check(vk.CreateImage(c.device, &info, nil, &img.handle), core.KindInit, "vkCreateImage"); err != nil {
		return nil, err
	}
	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(c.device, img.handle, &reqs)
	reqs.Deref()
	img.reqs = gpu.MemoryRequirements{Size: uint64(reqs.Size), Alignment: uint64(reqs.Alignment)}
	img.typeBits = reqs.MemoryTypeBits
	return img, nil
}

func (i *image) Format() gpu.Format                   { return i.format }
func (i *image) Extent() gpu.Extent2D                 { return i.extent }
func (i *image) Requirements() gpu.MemoryRequirements { return i.reqs }

func (i *image) Bind(mem gpu.Memory, offset uint64) error {
	m := mem.(*memory)
	if err := m.accepts(i.typeBits); err != nil {
		return err
	}
	return check(vk.BindImageMemory(i.ctx.device, i.handle, m.handle, vk.DeviceSize(offset)), core.KindInit, "vkBindImageMemory")
}

func (i *image) aspect() vk.ImageAspectFlags {
	switch i.format {
	case gpu.FormatD32Float:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	case gpu.FormatD24UnormS8Uint:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	default:
		return vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
}

func (i *image) subresourceRange() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask: i.aspect(),
		LevelCount: 1,
		LayerCount: 1,
	}
}

func (i *image) NewView() (gpu.ImageView, error) {
	info := vk.ImageViewCreateInfo{
		SType:            vk.StructureTypeImageViewCreateInfo,
		Image:            i.handle,
		ViewType:         vk.ImageViewType2d,
		Format:           vkFormat(i.format),
		SubresourceRange: i.subresourceRange(),
	}
	v := &imageView{ctx: i.ctx, image: i}
	if err := check(vk.CreateImageView(i.ctx.device, &info, nil, &v.handle), core.KindInit, "vkCreateImageView"); err != nil {
		return nil, err
	}
	return v, nil
}

func (i *image) Destroy() {
	if !i.owned || i.handle == vk.NullImage {
		return
	}
	vk.DestroyImage(i.ctx.device, i.handle, nil)
	i.handle = vk.NullImage
}

type imageView struct {
	ctx    *Context
	handle vk.ImageView
	image  *image
}

func (v *imageView) Image() gpu.Image { return v.image }

func (v *imageView) Destroy() {
	if v.handle != vk.NullImageView {
		vk.DestroyImageView(v.ctx.device, v.handle, nil)
		v.handle = vk.NullImageView
	}
}

type sampler struct {
	ctx    *Context
	handle vk.Sampler
}

func (c *Context) NewSampler(desc gpu.SamplerDesc) (gpu.Sampler, error) {
	address := vkAddressMode(desc.AddressMode)
	info := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vkFilter(desc.Filter),
		MinFilter:               vkFilter(desc.Filter),
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            address,
		AddressModeV:            address,
		AddressModeW:            address,
		AnisotropyEnable:        vkBool(desc.Anisotropy > 0),
		MaxAnisotropy:           desc.Anisotropy,
		CompareOp:               vk.CompareOpAlways,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}
	if desc.Anisotropy == 0 {
		info.MaxAnisotropy = 1
	}
	s := &sampler{ctx: c}
	if err := check(vk.CreateSampler(c.device, &info, nil, &s.handle), core.KindInit, "vkCreateSampler"); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *sampler) Destroy() {
	if s.handle != vk.NullSampler {
		vk.DestroySampler(s.ctx.device, s.handle, nil)
		s.handle = vk.NullSampler
	}
}
