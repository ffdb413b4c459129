package renderer

import (
	"time"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

type FrameStatus int

const (
	// FrameInvalid means there is no output to render to; skip the frame.
	FrameInvalid FrameStatus = iota
	// FrameRebuild means the targets must be rebuilt before rendering.
	FrameRebuild
	FrameRender
)

func (s FrameStatus) String() string {
	switch s {
	case FrameRebuild:
		return "rebuild"
	case FrameRender:
		return "render"
	default:
		return "invalid"
	}
}

// Frame is the frame being recorded between AcquireFrame and SubmitFrame.
// Commands is inside the render pass with viewport and scissor set.
type Frame struct {
	Number      uint64
	ImageIndex  uint32
	Extent      gpu.Extent2D
	Framebuffer gpu.Framebuffer
	Commands    gpu.CommandBuffer

	UploadValue uint64
	RenderValue uint64
}

type FrameConfig struct {
	AcquireTimeout time.Duration
	ClearColor     [4]float32
}

// FrameController drives the acquire, record, submit and present cycle. One
// timeline semaphore orders the frames: each frame signals it twice, once
// when its uploads are done and once when rendering is done, and the next
// frame waits for the second value before reusing the command buffers.
type FrameController struct {
	device  gpu.Device
	targets *Targets
	staging *Staging
	pending *PendingWrites
	cfg     FrameConfig

	timeline gpu.Timeline
	upload   gpu.CommandBuffer
	render   gpu.CommandBuffer

	// last value a submitted frame signals
	last   uint64
	number uint64
	frame  *Frame
}

func NewFrameController(device gpu.Device, targets *Targets, staging *Staging, pending *PendingWrites, cfg FrameConfig) (*FrameController, error) {
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = time.Second
	}
	c := &FrameController{device: device, targets: targets, staging: staging, pending: pending, cfg: cfg}
	var err error
	if c.timeline, err = device.NewTimeline(0); err != nil {
		return nil, core.WrapError(err, core.KindInit, "creating frame timeline")
	}
	if c.upload, err = device.NewCommandBuffer(); err != nil {
		c.Destroy()
		return nil, core.WrapError(err, core.KindInit, "creating upload command buffer")
	}
	if c.render, err = device.NewCommandBuffer(); err != nil {
		c.Destroy()
		return nil, core.WrapError(err, core.KindInit, "creating render command buffer")
	}
	return c, nil
}

// AcquireFrame waits for the previous frame, acquires a swapchain image and
// records the frame's uploads. On FrameRender the returned frame is ready for
// draw commands and must be handed to SubmitFrame.
func (c *FrameController) AcquireFrame() (FrameStatus, *Frame, error) {
	if c.frame != nil {
		return FrameInvalid, nil, core.NewError(core.KindUsage, "frame %d was acquired but not submitted", c.frame.Number)
	}
	if c.targets.Invalid() {
		return FrameInvalid, nil, nil
	}
	if c.targets.NeedsRebuild() {
		return FrameRebuild, nil, nil
	}

	if err := c.timeline.Wait(c.last); err != nil {
		return FrameInvalid, nil, core.WrapError(err, core.KindSync, "waiting for timeline value %d", c.last)
	}

	idx, status, err := c.targets.Swapchain().Acquire(c.targets.ImageAcquired(), c.cfg.AcquireTimeout)
	if err != nil {
		return FrameInvalid, nil, core.WrapError(err, core.KindSync, "acquiring swapchain image")
	}
	if status != gpu.PresentOptimal {
		core.LogDebug("swapchain %s on acquire", status)
		c.targets.FlagRebuild()
		return FrameRebuild, nil, nil
	}

	if err := c.recordUploads(); err != nil {
		return FrameInvalid, nil, err
	}
	c.pending.Flush(c.device)

	extent := c.targets.Extent()
	fb := c.targets.Framebuffer(idx)
	if err := c.render.Reset(); err != nil {
		return FrameInvalid, nil, core.WrapError(err, core.KindSync, "resetting render commands")
	}
	if err := c.render.Begin(); err != nil {
		return FrameInvalid, nil, core.WrapError(err, core.KindSync, "beginning render commands")
	}
	c.render.BeginPass(gpu.RenderPassBegin{Framebuffer: fb, ClearColor: c.cfg.ClearColor, ClearDepth: 1})
	c.render.SetViewport(extent)

	c.number++
	c.frame = &Frame{
		Number:      c.number,
		ImageIndex:  idx,
		Extent:      extent,
		Framebuffer: fb,
		Commands:    c.render,
		UploadValue: c.last + 1,
		RenderValue: c.last + 2,
	}
	return FrameRender, c.frame, nil
}

func (c *FrameController) recordUploads() error {
	if err := c.upload.Reset(); err != nil {
		return core.WrapError(err, core.KindSync, "resetting upload commands")
	}
	if err := c.upload.Begin(); err != nil {
		return core.WrapError(err, core.KindSync, "beginning upload commands")
	}
	c.staging.Record(c.upload)
	if err := c.upload.End(); err != nil {
		return core.WrapError(err, core.KindSync, "ending upload commands")
	}
	return nil
}

// SubmitFrame submits the uploads and the frame's render commands, then
// presents. Rendering waits at vertex input for the uploads and at color
// output for the acquired image.
func (c *FrameController) SubmitFrame() error {
	f := c.frame
	if f == nil {
		return core.Raise(core.ErrFrameNotAcquired, core.KindUsage, "submit without an acquired frame")
	}
	c.frame = nil

	c.render.EndPass()
	if err := c.render.End(); err != nil {
		return core.WrapError(err, core.KindSync, "ending render commands")
	}

	timeline := gpu.Semaphore(c.timeline)
	upload := gpu.SubmitBatch{
		Commands: []gpu.CommandBuffer{c.upload},
		Signals:  []gpu.SemaphoreSignal{{Semaphore: timeline, Value: f.UploadValue}},
	}
	render := gpu.SubmitBatch{
		Commands: []gpu.CommandBuffer{c.render},
		Waits: []gpu.SemaphoreWait{
			{Semaphore: c.targets.ImageAcquired(), Stage: gpu.PipelineStageColorAttachmentOutput},
			{Semaphore: timeline, Value: f.UploadValue, Stage: gpu.PipelineStageVertexInput},
		},
		Signals: []gpu.SemaphoreSignal{
			{Semaphore: timeline, Value: f.RenderValue},
			{Semaphore: c.targets.ReadyToPresent()},
		},
	}
	if err := c.device.Submit(upload, render); err != nil {
		return core.WrapError(err, core.KindSync, "submitting frame %d", f.Number)
	}
	c.last = f.RenderValue

	status, err := c.targets.Swapchain().Present(f.ImageIndex, c.targets.ReadyToPresent())
	if err != nil {
		return core.WrapError(err, core.KindSync, "presenting frame %d", f.Number)
	}
	if status != gpu.PresentOptimal {
		core.LogDebug("swapchain %s on present", status)
		c.targets.FlagRebuild()
	}
	return nil
}

// Rebuild recreates the targets after AcquireFrame returned FrameRebuild.
func (c *FrameController) Rebuild() error {
	if c.frame != nil {
		return core.NewError(core.KindUsage, "rebuild while frame %d is being recorded", c.frame.Number)
	}
	return c.targets.Rebuild()
}

// Ready reports whether AcquireFrame can hand out a frame without first
// rebuilding or waiting for a usable output. The swapchain may still refuse
// the acquire.
func (c *FrameController) Ready() bool {
	return c.frame == nil && !c.targets.Invalid() && !c.targets.NeedsRebuild()
}

// TimelineValue is the value the last submitted frame signals when done.
func (c *FrameController) TimelineValue() uint64 { return c.last }

// Wait blocks until every submitted frame has completed.
func (c *FrameController) Wait() error {
	if err := c.timeline.Wait(c.last); err != nil {
		return core.WrapError(err, core.KindSync, "waiting for timeline value %d", c.last)
	}
	return nil
}

func (c *FrameController) Destroy() {
	for _, d := range []gpu.Destroyer{c.render, c.upload, c.timeline} {
		if d != nil {
			d.Destroy()
		}
	}
	c.render, c.upload, c.timeline = nil, nil, nil
}
