package gputest

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

type OpKind int

const (
	OpCopyBuffer OpKind = iota
	OpTransition
	OpCopyBufferToImage
	OpBeginPass
	OpEndPass
	OpSetViewport
	OpBindPipeline
	OpBindDescriptorSets
	OpBindVertexBuffer
	OpBindIndexBuffer
	OpPushConstants
	OpDraw
	OpDrawIndexed
)

func (k OpKind) String() string {
	return [...]string{
		"copy-buffer", "transition", "copy-buffer-to-image", "begin-pass", "end-pass",
		"set-viewport", "bind-pipeline", "bind-descriptor-sets", "bind-vertex-buffer",
		"bind-index-buffer", "push-constants", "draw", "draw-indexed",
	}[k]
}

// Op is one recorded command.
type Op struct {
	Kind         OpKind
	BufferCopies []gpu.BufferCopyRegion
	ImageCopies  []gpu.BufferImageCopy
	Barriers     []gpu.ImageBarrier
	Dst          interface{}
	Extent       gpu.Extent2D
	Count        uint32
}

func (o Op) String() string {
	if o.Kind == OpTransition && len(o.Barriers) > 0 {
		return fmt.Sprintf("%s %s->%s", o.Kind, o.Barriers[0].OldLayout, o.Barriers[0].NewLayout)
	}
	return o.Kind.String()
}

type CommandBuffer struct {
	handle
	recording bool
	inPass    bool
	Ops       []Op
	// Ops of the last recording that was ended.
	Last      []Op
	Submitted int
	Begins    int
}

func (c *CommandBuffer) Reset() error {
	if c.recording {
		return errors.New("gputest: reset while recording")
	}
	c.Ops = nil
	return nil
}

func (c *CommandBuffer) Begin() error {
	if c.recording {
		return errors.New("gputest: begin while recording")
	}
	c.recording = true
	c.Ops = nil
	c.Begins++
	return nil
}

func (c *CommandBuffer) End() error {
	if !c.recording {
		return errors.New("gputest: end without begin")
	}
	if c.inPass {
		return errors.New("gputest: end inside a render pass")
	}
	c.recording = false
	c.Last = c.Ops
	return nil
}

func (c *CommandBuffer) record(op Op) {
	if !c.recording {
		panic(fmt.Sprintf("gputest: %s recorded outside begin/end", op.Kind))
	}
	c.Ops = append(c.Ops, op)
}

// Kinds lists the kinds of the last finished recording, in order.
func (c *CommandBuffer) Kinds() []string {
	out := make([]string, len(c.Last))
	for i, op := range c.Last {
		out[i] = op.String()
	}
	return out
}

func (c *CommandBuffer) CopyBuffer(src, dst gpu.Buffer, regions ...gpu.BufferCopyRegion) {
	c.record(Op{Kind: OpCopyBuffer, Dst: dst, BufferCopies: append([]gpu.BufferCopyRegion(nil), regions...)})
}

func (c *CommandBuffer) Transition(barriers ...gpu.ImageBarrier) {
	c.record(Op{Kind: OpTransition, Barriers: append([]gpu.ImageBarrier(nil), barriers...)})
}

func (c *CommandBuffer) CopyBufferToImage(src gpu.Buffer, dst gpu.Image, regions ...gpu.BufferImageCopy) {
	c.record(Op{Kind: OpCopyBufferToImage, Dst: dst, ImageCopies: append([]gpu.BufferImageCopy(nil), regions...)})
}

func (c *CommandBuffer) BeginPass(begin gpu.RenderPassBegin) {
	if c.inPass {
		panic("gputest: nested render pass")
	}
	c.inPass = true
	c.record(Op{Kind: OpBeginPass, Dst: begin.Framebuffer, Extent: begin.Framebuffer.Extent()})
}

func (c *CommandBuffer) EndPass() {
	if !c.inPass {
		panic("gputest: end pass outside a render pass")
	}
	c.inPass = false
	c.record(Op{Kind: OpEndPass})
}

func (c *CommandBuffer) SetViewport(extent gpu.Extent2D) {
	c.record(Op{Kind: OpSetViewport, Extent: extent})
}

func (c *CommandBuffer) BindPipeline(p gpu.Pipeline) {
	c.record(Op{Kind: OpBindPipeline, Dst: p})
}

func (c *CommandBuffer) BindDescriptorSets(layout gpu.PipelineLayout, first uint32, sets ...gpu.DescriptorSet) {
	c.record(Op{Kind: OpBindDescriptorSets, Count: uint32(len(sets))})
}

func (c *CommandBuffer) BindVertexBuffer(buf gpu.Buffer, offset uint64) {
	c.record(Op{Kind: OpBindVertexBuffer, Dst: buf})
}

func (c *CommandBuffer) BindIndexBuffer(buf gpu.Buffer, offset uint64, kind gpu.IndexType) {
	c.record(Op{Kind: OpBindIndexBuffer, Dst: buf})
}

func (c *CommandBuffer) PushConstants(layout gpu.PipelineLayout, stages gpu.ShaderStage, offset uint32, data []byte) {
	c.record(Op{Kind: OpPushConstants, Count: uint32(len(data))})
}

func (c *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	c.record(Op{Kind: OpDraw, Count: vertexCount})
}

func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	c.record(Op{Kind: OpDrawIndexed, Count: indexCount})
}
