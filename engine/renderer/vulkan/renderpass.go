package vulkan

import (
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

type renderPassKey struct {
	color   gpu.Format
	depth   gpu.Format
	samples uint32
}

func (k renderPassKey) normalized() renderPassKey {
	if k.samples == 0 {
		k.samples = 1
	}
	return k
}

func (k renderPassKey) hasDepth() bool     { return k.depth != gpu.FormatUndefined }
func (k renderPassKey) multisampled() bool { return k.samples > 1 }

// attachmentCount is the number of framebuffer attachments the pass expects.
func (k renderPassKey) attachmentCount() int {
	n := 1
	if k.hasDepth() {
		n++
	}
	if k.multisampled() {
		n++
	}
	return n
}

// renderPassCache hands out one single-subpass render pass per attachment
// layout. Pipelines and framebuffers built with equal keys are compatible.
type renderPassCache struct {
	ctx    *Context
	mu     sync.Mutex
	passes map[renderPassKey]vk.RenderPass
}

func newRenderPassCache(c *Context) *renderPassCache {
	return &renderPassCache{ctx: c, passes: make(map[renderPassKey]vk.RenderPass)}
}

func (rc *renderPassCache) get(key renderPassKey) (vk.RenderPass, error) {
	key = key.normalized()
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if pass, ok := rc.passes[key]; ok {
		return pass, nil
	}
	pass, err := createRenderPass(rc.ctx.device, key)
	if err != nil {
		return vk.NullRenderPass, err
	}
	rc.passes[key] = pass
	core.LogDebug("Render pass created for %s/%s x%d.", key.color, key.depth, key.samples)
	return pass, nil
}

func (rc *renderPassCache) destroy() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for key, pass := range rc.passes {
		vk.DestroyRenderPass(rc.ctx.device, pass, nil)
		delete(rc.passes, key)
	}
}

// createRenderPass lays attachments out as color, depth, resolve. Without
// multisampling the color attachment is presented directly; with it the
// resolve target is.
func createRenderPass(device vk.Device, key renderPassKey) (vk.RenderPass, error) {
	var attachments []vk.AttachmentDescription

	color := vk.AttachmentDescription{
		Format:         vkFormat(key.color),
		Samples:        vkSampleCount(key.samples),
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}
	if key.multisampled() {
		color.StoreOp = vk.AttachmentStoreOpDontCare
		color.FinalLayout = vk.ImageLayoutColorAttachmentOptimal
	}
	attachments = append(attachments, color)

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vk.AttachmentReference{{
			Attachment: 0,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}},
	}

	stages := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	access := vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit)

	if key.hasDepth() {
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         vkFormat(key.depth),
			Samples:        vkSampleCount(key.samples),
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		})
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: uint32(len(attachments) - 1),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		stages |= vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
		access |= vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)
	}

	if key.multisampled() {
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         vkFormat(key.color),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpDontCare,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutPresentSrc,
		})
		subpass.PResolveAttachments = []vk.AttachmentReference{{
			Attachment: uint32(len(attachments) - 1),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}}
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  stages,
		DstStageMask:  stages,
		DstAccessMask: access,
	}

	info := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
	var pass vk.RenderPass
	if err := check(vk.CreateRenderPass(device, &info, nil, &pass), core.KindInit, "vkCreateRenderPass"); err != nil {
		return vk.NullRenderPass, err
	}
	return pass, nil
}
