package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

type commandBufferState int

const (
	commandBufferReady commandBufferState = iota
	commandBufferRecording
	commandBufferInRenderPass
	commandBufferRecordingEnded
	commandBufferNotAllocated
)

type commandBuffer struct {
	ctx    *Context
	handle vk.CommandBuffer
	state  commandBufferState
}

// NewCommandBuffer allocates a primary command buffer from the context pool.
func (c *Context) NewCommandBuffer() (gpu.CommandBuffer, error) {
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        c.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	handles := make([]vk.CommandBuffer, 1)
	err := c.locks.SafeCall(CommandPoolManagement, func() error {
		return check(vk.AllocateCommandBuffers(c.device, &info, handles), core.KindInit, "vkAllocateCommandBuffers")
	})
	if err != nil {
		return nil, err
	}
	return &commandBuffer{ctx: c, handle: handles[0], state: commandBufferReady}, nil
}

func (cb *commandBuffer) Reset() error {
	if err := check(vk.ResetCommandBuffer(cb.handle, 0), core.KindSync, "vkResetCommandBuffer"); err != nil {
		return err
	}
	cb.state = commandBufferReady
	return nil
}

func (cb *commandBuffer) Begin() error {
	info := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := check(vk.BeginCommandBuffer(cb.handle, &info), core.KindSync, "vkBeginCommandBuffer"); err != nil {
		return err
	}
	cb.state = commandBufferRecording
	return nil
}

func (cb *commandBuffer) End() error {
	if cb.state == commandBufferInRenderPass {
		return core.NewError(core.KindUsage, "ending a command buffer inside a render pass")
	}
	if err := check(vk.EndCommandBuffer(cb.handle), core.KindSync, "vkEndCommandBuffer"); err != nil {
		return err
	}
	cb.state = commandBufferRecordingEnded
	return nil
}

func (cb *commandBuffer) CopyBuffer(src, dst gpu.Buffer, regions ...gpu.BufferCopyRegion) {
	if len(regions) == 0 {
		return
	}
	vr := make([]vk.BufferCopy, len(regions))
	for i, r := range regions {
		vr[i] = vk.BufferCopy{
			SrcOffset: vk.DeviceSize(r.SrcOffset),
			DstOffset: vk.DeviceSize(r.DstOffset),
			Size:      vk.DeviceSize(r.Size),
		}
	}
	vk.CmdCopyBuffer(cb.handle, src.(*buffer).handle, dst.(*buffer).handle, uint32(len(vr)), vr)
}

func (cb *commandBuffer) Transition(barriers ...gpu.ImageBarrier) {
	for _, b := range barriers {
		img := b.Image.(*image)
		srcAccess, srcStage := layoutAccess(b.OldLayout)
		dstAccess, dstStage := layoutAccess(b.NewLayout)
		barrier := vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(srcAccess),
			DstAccessMask:       vk.AccessFlags(dstAccess),
			OldLayout:           vkImageLayout(b.OldLayout),
			NewLayout:           vkImageLayout(b.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               img.handle,
			SubresourceRange:    img.subresourceRange(),
		}
		vk.CmdPipelineBarrier(cb.handle,
			vk.PipelineStageFlags(srcStage), vk.PipelineStageFlags(dstStage), 0,
			0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	}
}

func (cb *commandBuffer) CopyBufferToImage(src gpu.Buffer, dst gpu.Image, regions ...gpu.BufferImageCopy) {
	if len(regions) == 0 {
		return
	}
	img := dst.(*image)
	vr := make([]vk.BufferImageCopy, len(regions))
	for i, r := range regions {
		vr[i] = vk.BufferImageCopy{
			BufferOffset: vk.DeviceSize(r.BufferOffset),
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: img.aspect(),
				LayerCount: 1,
			},
			ImageOffset: vk.Offset3D{X: r.ImageOffset.X, Y: r.ImageOffset.Y},
			ImageExtent: vk.Extent3D{Width: r.ImageExtent.Width, Height: r.ImageExtent.Height, Depth: 1},
		}
	}
	vk.CmdCopyBufferToImage(cb.handle, src.(*buffer).handle, img.handle, vk.ImageLayoutTransferDstOptimal, uint32(len(vr)), vr)
}

// BeginPass clears the color attachment and, when present, the depth
// attachment. The resolve target is never cleared.
func (cb *commandBuffer) BeginPass(begin gpu.RenderPassBegin) {
	fb := begin.Framebuffer.(*framebuffer)
	clear := make([]vk.ClearValue, fb.attachments)
	clear[0].SetColor(begin.ClearColor[:])
	if fb.attachments > 1 {
		clear[1].SetDepthStencil(begin.ClearDepth, 0)
	}
	info := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  fb.pass,
		Framebuffer: fb.handle,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: fb.extent.Width, Height: fb.extent.Height},
		},
		ClearValueCount: uint32(len(clear)),
		PClearValues:    clear,
	}
	vk.CmdBeginRenderPass(cb.handle, &info, vk.SubpassContentsInline)
	cb.state = commandBufferInRenderPass
}

func (cb *commandBuffer) EndPass() {
	vk.CmdEndRenderPass(cb.handle)
	cb.state = commandBufferRecording
}

func (cb *commandBuffer) SetViewport(extent gpu.Extent2D) {
	viewport := vk.Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	scissor := vk.Rect2D{Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height}}
	vk.CmdSetViewport(cb.handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(cb.handle, 0, 1, []vk.Rect2D{scissor})
}

func (cb *commandBuffer) BindPipeline(p gpu.Pipeline) {
	vk.CmdBindPipeline(cb.handle, vk.PipelineBindPointGraphics, p.(*pipeline).handle)
}

func (cb *commandBuffer) BindDescriptorSets(layout gpu.PipelineLayout, first uint32, sets ...gpu.DescriptorSet) {
	if len(sets) == 0 {
		return
	}
	handles := make([]vk.DescriptorSet, len(sets))
	for i, s := range sets {
		handles[i] = s.(*descriptorSet).handle
	}
	vk.CmdBindDescriptorSets(cb.handle, vk.PipelineBindPointGraphics, layout.(*pipelineLayout).handle,
		first, uint32(len(handles)), handles, 0, nil)
}

func (cb *commandBuffer) BindVertexBuffer(buf gpu.Buffer, offset uint64) {
	vk.CmdBindVertexBuffers(cb.handle, 0, 1, []vk.Buffer{buf.(*buffer).handle}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

func (cb *commandBuffer) BindIndexBuffer(buf gpu.Buffer, offset uint64, kind gpu.IndexType) {
	vk.CmdBindIndexBuffer(cb.handle, buf.(*buffer).handle, vk.DeviceSize(offset), vkIndexType(kind))
}

func (cb *commandBuffer) PushConstants(layout gpu.PipelineLayout, stages gpu.ShaderStage, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(cb.handle, layout.(*pipelineLayout).handle, vkShaderStages(stages),
		offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (cb *commandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(cb.handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (cb *commandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(cb.handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (cb *commandBuffer) Destroy() {
	if cb.handle == nil {
		return
	}
	cb.ctx.locks.SafeCall(CommandPoolManagement, func() error {
		vk.FreeCommandBuffers(cb.ctx.device, cb.ctx.pool, 1, []vk.CommandBuffer{cb.handle})
		return nil
	})
	cb.handle = nil
	cb.state = commandBufferNotAllocated
}
