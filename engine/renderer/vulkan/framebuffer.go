package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

type framebuffer struct {
	ctx         *Context
	handle      vk.Framebuffer
	pass        vk.RenderPass
	attachments int
	extent      gpu.Extent2D
}

func (c *Context) NewFramebuffer(desc gpu.FramebufferDesc) (gpu.Framebuffer, error) {
	key := renderPassKey{color: desc.ColorFormat, depth: desc.DepthFormat, samples: desc.Samples}.normalized()
	if want := key.attachmentCount(); len(desc.Attachments) != want {
		return nil, core.NewError(core.KindUsage, "framebuffer needs %d attachments, got %d", want, len(desc.Attachments))
	}
	pass, err := c.passes.get(key)
	if err != nil {
		return nil, err
	}
	views := make([]vk.ImageView, len(desc.Attachments))
	for i, v := range desc.Attachments {
		views[i] = v.(*imageView).handle
	}
	info := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           desc.Extent.Width,
		Height:          desc.Extent.Height,
		Layers:          1,
	}
	fb := &framebuffer{ctx: c, pass: pass, attachments: len(views), extent: desc.Extent}
	if err := check(vk.CreateFramebuffer(c.device, &info, nil, &fb.handle), core.KindInit, "vkCreateFramebuffer"); err != nil {
		return nil, err
	}
	return fb, nil
}

func (fb *framebuffer) Extent() gpu.Extent2D { return fb.extent }

func (fb *framebuffer) Destroy() {
	if fb.handle != vk.NullFramebuffer {
		vk.DestroyFramebuffer(fb.ctx.device, fb.handle, nil)
		fb.handle = vk.NullFramebuffer
	}
}
