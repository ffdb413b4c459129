package renderer

import (
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

type TargetState int

const (
	TargetUninitialized TargetState = iota
	TargetReady
)

type TargetConfig struct {
	// Use immediate presentation when the surface supports it.
	Immediate   bool
	SampleCount uint32
	DepthFormat gpu.Format
}

// surface formats in order of preference, all sRGB non-linear
var preferredSurfaceFormats = []gpu.Format{
	gpu.FormatBGRA8SRGB,
	gpu.FormatRGBA8SRGB,
	gpu.FormatBGRA8Unorm,
	gpu.FormatRGBA8Unorm,
}

func chooseSurfaceFormat(available []gpu.SurfaceFormat) (gpu.SurfaceFormat, error) {
	for _, want := range preferredSurfaceFormats {
		for _, f := range available {
			if f.Format == want && f.ColorSpace == gpu.ColorSpaceSRGBNonlinear {
				return f, nil
			}
		}
	}
	return gpu.SurfaceFormat{}, core.Raise(core.ErrNoSurfaceFormat, core.KindInit,
		"none of the %d surface formats is acceptable", len(available))
}

func choosePresentMode(available []gpu.PresentMode, immediate bool) gpu.PresentMode {
	if immediate {
		for _, m := range available {
			if m == gpu.PresentModeImmediate {
				return m
			}
		}
		core.LogWarn("immediate presentation requested but not supported, using fifo")
	}
	// FIFO is always available
	return gpu.PresentModeFIFO
}

func chooseImageCount(caps gpu.SurfaceCapabilities) uint32 {
	n := max(caps.MinImageCount, 2)
	if caps.MaxImageCount > 0 && n > caps.MaxImageCount {
		n = caps.MaxImageCount
	}
	return n
}

func chooseExtent(caps gpu.SurfaceCapabilities, requested gpu.Extent2D) gpu.Extent2D {
	if caps.CurrentExtent.Width != gpu.UndefinedExtent {
		return caps.CurrentExtent
	}
	return gpu.Extent2D{
		Width:  math.Clamp(requested.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: math.Clamp(requested.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func chooseCompositeAlpha(supported gpu.CompositeAlpha) gpu.CompositeAlpha {
	for _, a := range []gpu.CompositeAlpha{
		gpu.CompositeAlphaOpaque,
		gpu.CompositeAlphaInherit,
		gpu.CompositeAlphaPreMultiplied,
		gpu.CompositeAlphaPostMultiplied,
	} {
		if supported&a != 0 {
			return a
		}
	}
	return gpu.CompositeAlphaOpaque
}

// Targets owns the presentation surface, the swapchain and everything sized
// to it: attachments, their memory, views, framebuffers and the two
// presentation semaphores. All of it is rebuilt as a unit.
type Targets struct {
	device gpu.Device
	cfg    TargetConfig
	state  TargetState

	surface   gpu.Surface
	swapchain gpu.Swapchain
	format    gpu.SurfaceFormat
	extent    gpu.Extent2D
	requested gpu.Extent2D
	rebuild   bool

	views        []gpu.ImageView
	color        gpu.Image
	colorView    gpu.ImageView
	depth        gpu.Image
	depthView    gpu.ImageView
	memory       *MemoryBlock
	framebuffers []gpu.Framebuffer

	imageAcquired  gpu.Semaphore
	readyToPresent gpu.Semaphore
}

func NewTargets(device gpu.Device, cfg TargetConfig) *Targets {
	if cfg.SampleCount == 0 {
		cfg.SampleCount = 1
	}
	if cfg.DepthFormat == gpu.FormatUndefined {
		cfg.DepthFormat = gpu.FormatD32Float
	}
	return &Targets{device: device, cfg: cfg}
}

// SetOutput creates the surface for window and, when size is non-zero, the
// swapchain and its attachments.
func (t *Targets) SetOutput(window gpu.Window, size gpu.Extent2D) error {
	if t.surface != nil {
		return core.NewError(core.KindUsage, "output already set")
	}
	surface, err := t.device.NewSurface(window)
	if err != nil {
		return core.WrapError(err, core.KindInit, "creating window surface")
	}
	t.surface = surface
	t.requested = size
	if size.IsZero() {
		core.LogInfo("output set with a zero size, waiting for a resize")
		return nil
	}
	return t.build(nil)
}

// Resize records the new window size. The same size is ignored; zero makes
// the output invalid; anything else flags a rebuild.
func (t *Targets) Resize(width, height uint32) {
	size := gpu.Extent2D{Width: width, Height: height}
	if size == t.requested {
		return
	}
	t.requested = size
	if size.IsZero() {
		core.LogDebug("output minimized")
		return
	}
	t.rebuild = true
}

// Invalid reports that there is nothing to present to.
func (t *Targets) Invalid() bool {
	return t.surface == nil || t.requested.IsZero()
}

func (t *Targets) NeedsRebuild() bool {
	return t.rebuild || t.state != TargetReady
}

func (t *Targets) FlagRebuild() { t.rebuild = true }

// Rebuild waits for the device to go idle, then recreates the swapchain with
// the old one as replace hint and everything sized to it.
func (t *Targets) Rebuild() error {
	if t.surface == nil {
		return core.Raise(core.ErrOutputInvalid, core.KindUsage, "rebuild without an output")
	}
	if err := t.device.WaitIdle(); err != nil {
		return core.WrapError(err, core.KindSync, "waiting for the device before rebuild")
	}
	old := t.teardown()
	if t.requested.IsZero() {
		if old != nil {
			old.Destroy()
		}
		return nil
	}
	return t.build(old)
}

func (t *Targets) build(old gpu.Swapchain) error {
	support, err := t.surface.Support()
	if err != nil {
		if old != nil {
			old.Destroy()
		}
		return core.WrapError(err, core.KindInit, "querying surface support")
	}
	format, err := chooseSurfaceFormat(support.Formats)
	if err != nil {
		if old != nil {
			old.Destroy()
		}
		return err
	}
	caps := support.Capabilities
	extent := chooseExtent(caps, t.requested)
	if extent.IsZero() {
		// the surface reports a zero size while minimized
		if old != nil {
			old.Destroy()
		}
		t.requested = extent
		return nil
	}

	desc := gpu.SwapchainDesc{
		Surface:        t.surface,
		ImageCount:     chooseImageCount(caps),
		Format:         format,
		Extent:         extent,
		PresentMode:    choosePresentMode(support.PresentModes, t.cfg.Immediate),
		CompositeAlpha: chooseCompositeAlpha(caps.SupportedCompositeAlpha),
	}
	swapchain, err := t.device.NewSwapchain(desc, old)
	if old != nil {
		old.Destroy()
	}
	if err != nil {
		return core.WrapError(err, core.KindInit, "creating swapchain")
	}
	t.swapchain = swapchain
	t.format = format
	t.extent = swapchain.Extent()

	if err := t.buildAttachments(); err != nil {
		if sc := t.teardown(); sc != nil {
			sc.Destroy()
		}
		return err
	}

	t.state = TargetReady
	t.rebuild = false
	core.LogInfo("swapchain ready: %dx%d, %d images, %s, %s",
		t.extent.Width, t.extent.Height, len(t.views), format.Format, desc.PresentMode)
	return nil
}

func (t *Targets) buildAttachments() error {
	images := t.swapchain.Images()
	for _, img := range images {
		v, err := img.NewView()
		if err != nil {
			return core.WrapError(err, core.KindInit, "creating swapchain image view")
		}
		t.views = append(t.views, v)
	}

	samples := t.cfg.SampleCount
	depth, err := t.device.NewImage(gpu.ImageDesc{
		Format:  t.cfg.DepthFormat,
		Extent:  t.extent,
		Usage:   gpu.ImageUsageDepthStencilAttachment,
		Samples: samples,
	})
	if err != nil {
		return core.WrapError(err, core.KindInit, "creating depth attachment")
	}
	t.depth = depth
	reqs := []gpu.MemoryRequirements{depth.Requirements()}
	if samples > 1 {
		color, err := t.device.NewImage(gpu.ImageDesc{
			Format:  t.format.Format,
			Extent:  t.extent,
			Usage:   gpu.ImageUsageColorAttachment | gpu.ImageUsageTransientAttachment,
			Samples: samples,
		})
		if err != nil {
			return core.WrapError(err, core.KindInit, "creating multisampled color attachment")
		}
		t.color = color
		reqs = append(reqs, color.Requirements())
	}

	minAlign := t.device.Limits().BufferImageGranularity
	t.memory, err = NewMemoryBlock(t.device, blockSizeFor(reqs, minAlign), gpu.MemoryDeviceLocal, minAlign)
	if err != nil {
		return err
	}
	for _, img := range []gpu.Image{t.depth, t.color} {
		if img == nil {
			continue
		}
		off, err := t.memory.Allocate(img.Requirements())
		if err != nil {
			return err
		}
		if err := img.Bind(t.memory.Memory(), off); err != nil {
			return core.WrapError(err, core.KindInit, "binding attachment memory")
		}
	}
	if t.depthView, err = t.depth.NewView(); err != nil {
		return core.WrapError(err, core.KindInit, "creating depth view")
	}
	if t.color != nil {
		if t.colorView, err = t.color.NewView(); err != nil {
			return core.WrapError(err, core.KindInit, "creating color view")
		}
	}

	for i, v := range t.views {
		attachments := []gpu.ImageView{v, t.depthView}
		if t.colorView != nil {
			attachments = []gpu.ImageView{t.colorView, t.depthView, v}
		}
		fb, err := t.device.NewFramebuffer(gpu.FramebufferDesc{
			ColorFormat: t.format.Format,
			DepthFormat: t.cfg.DepthFormat,
			Samples:     samples,
			Attachments: attachments,
			Extent:      t.extent,
		})
		if err != nil {
			return core.WrapError(err, core.KindInit, "creating framebuffer %d", i)
		}
		t.framebuffers = append(t.framebuffers, fb)
	}

	if t.imageAcquired, err = t.device.NewSemaphore(); err != nil {
		return core.WrapError(err, core.KindInit, "creating image-acquired semaphore")
	}
	if t.readyToPresent, err = t.device.NewSemaphore(); err != nil {
		return core.WrapError(err, core.KindInit, "creating ready-to-present semaphore")
	}
	return nil
}

// teardown frees everything but the surface and returns the swapchain, which
// the caller destroys or passes on as replace hint.
func (t *Targets) teardown() gpu.Swapchain {
	for _, d := range []gpu.Destroyer{t.imageAcquired, t.readyToPresent} {
		if d != nil {
			d.Destroy()
		}
	}
	t.imageAcquired, t.readyToPresent = nil, nil
	for _, fb := range t.framebuffers {
		fb.Destroy()
	}
	t.framebuffers = nil
	for _, d := range []gpu.Destroyer{t.colorView, t.depthView, t.color, t.depth} {
		if d != nil {
			d.Destroy()
		}
	}
	t.colorView, t.depthView, t.color, t.depth = nil, nil, nil, nil
	if t.memory != nil {
		t.memory.Destroy()
		t.memory = nil
	}
	for _, v := range t.views {
		v.Destroy()
	}
	t.views = nil

	sc := t.swapchain
	t.swapchain = nil
	t.state = TargetUninitialized
	return sc
}

// Destroy releases the swapchain, its attachments and the surface.
func (t *Targets) Destroy() {
	if sc := t.teardown(); sc != nil {
		sc.Destroy()
	}
	if t.surface != nil {
		t.surface.Destroy()
		t.surface = nil
	}
}

func (t *Targets) State() TargetState { return t.state }

func (t *Targets) Extent() gpu.Extent2D { return t.extent }

func (t *Targets) Format() gpu.SurfaceFormat { return t.format }

func (t *Targets) DepthFormat() gpu.Format { return t.cfg.DepthFormat }

func (t *Targets) SampleCount() uint32 { return t.cfg.SampleCount }

func (t *Targets) Swapchain() gpu.Swapchain { return t.swapchain }

func (t *Targets) Framebuffer(index uint32) gpu.Framebuffer { return t.framebuffers[index] }

func (t *Targets) ImageAcquired() gpu.Semaphore { return t.imageAcquired }

func (t *Targets) ReadyToPresent() gpu.Semaphore { return t.readyToPresent }
