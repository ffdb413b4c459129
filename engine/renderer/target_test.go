package renderer

import (
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu/gputest"
)

func TestChooseSurfaceFormat(t *testing.T) {
	srgb := func(f gpu.Format) gpu.SurfaceFormat {
		return gpu.SurfaceFormat{Format: f, ColorSpace: gpu.ColorSpaceSRGBNonlinear}
	}
	tests := []struct {
		name      string
		available []gpu.SurfaceFormat
		want      gpu.Format
	}{
		{"bgra srgb first", []gpu.SurfaceFormat{srgb(gpu.FormatRGBA8SRGB), srgb(gpu.FormatBGRA8SRGB)}, gpu.FormatBGRA8SRGB},
		{"rgba srgb", []gpu.SurfaceFormat{srgb(gpu.FormatBGRA8Unorm), srgb(gpu.FormatRGBA8SRGB)}, gpu.FormatRGBA8SRGB},
		{"unorm fallback", []gpu.SurfaceFormat{srgb(gpu.FormatRGBA8Unorm), srgb(gpu.FormatBGRA8Unorm)}, gpu.FormatBGRA8Unorm},
		{"other color space skipped", []gpu.SurfaceFormat{
			{Format: gpu.FormatBGRA8SRGB, ColorSpace: gpu.ColorSpaceOther},
			srgb(gpu.FormatRGBA8Unorm),
		}, gpu.FormatRGBA8Unorm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := chooseSurfaceFormat(tt.available)
			if err != nil {
				t.Fatal(err)
			}
			if f.Format != tt.want {
				t.Fatalf("have %s, want %s", f.Format, tt.want)
			}
		})
	}

	_, err := chooseSurfaceFormat([]gpu.SurfaceFormat{srgb(gpu.FormatRGBA32Float)})
	if !errors.Is(err, core.ErrNoSurfaceFormat) || core.KindOf(err) != core.KindInit {
		t.Fatalf("no acceptable format: have %v", err)
	}
}

func TestChoosePresentMode(t *testing.T) {
	all := []gpu.PresentMode{gpu.PresentModeFIFO, gpu.PresentModeMailbox, gpu.PresentModeImmediate}
	if m := choosePresentMode(all, false); m != gpu.PresentModeFIFO {
		t.Fatalf("default: have %s", m)
	}
	if m := choosePresentMode(all, true); m != gpu.PresentModeImmediate {
		t.Fatalf("immediate supported: have %s", m)
	}
	if m := choosePresentMode(all[:2], true); m != gpu.PresentModeFIFO {
		t.Fatalf("immediate unsupported: have %s", m)
	}
}

func TestChooseImageCount(t *testing.T) {
	tests := []struct {
		min, max, want uint32
	}{
		{1, 8, 2},
		{2, 8, 2},
		{3, 0, 3},
		{1, 0, 2},
		{1, 1, 1},
	}
	for _, tt := range tests {
		caps := gpu.SurfaceCapabilities{MinImageCount: tt.min, MaxImageCount: tt.max}
		if have := chooseImageCount(caps); have != tt.want {
			t.Errorf("min %d max %d: have %d, want %d", tt.min, tt.max, have, tt.want)
		}
	}
}

func TestChooseExtent(t *testing.T) {
	caps := gpu.SurfaceCapabilities{
		CurrentExtent:  gpu.Extent2D{Width: gpu.UndefinedExtent, Height: gpu.UndefinedExtent},
		MinImageExtent: gpu.Extent2D{Width: 16, Height: 16},
		MaxImageExtent: gpu.Extent2D{Width: 4096, Height: 2048},
	}
	if e := chooseExtent(caps, gpu.Extent2D{Width: 8000, Height: 8}); e != (gpu.Extent2D{Width: 4096, Height: 16}) {
		t.Fatalf("clamped: have %+v", e)
	}
	caps.CurrentExtent = gpu.Extent2D{Width: 640, Height: 480}
	if e := chooseExtent(caps, gpu.Extent2D{Width: 800, Height: 600}); e != caps.CurrentExtent {
		t.Fatalf("driver extent: have %+v", e)
	}
}

func TestChooseCompositeAlpha(t *testing.T) {
	if a := chooseCompositeAlpha(gpu.CompositeAlphaOpaque | gpu.CompositeAlphaInherit); a != gpu.CompositeAlphaOpaque {
		t.Fatalf("have %v, want opaque", a)
	}
	if a := chooseCompositeAlpha(gpu.CompositeAlphaInherit); a != gpu.CompositeAlphaInherit {
		t.Fatalf("have %v, want inherit", a)
	}
}

func newTestTargets(t *testing.T, dev *gputest.Device, cfg TargetConfig, w, h uint32) *Targets {
	t.Helper()
	tg := NewTargets(dev, cfg)
	if err := tg.SetOutput(&gputest.Window{Width: int(w), Height: int(h)}, gpu.Extent2D{Width: w, Height: h}); err != nil {
		t.Fatal(err)
	}
	return tg
}

func TestTargetsSetOutput(t *testing.T) {
	dev := gputest.NewDevice()
	tg := newTestTargets(t, dev, TargetConfig{}, 800, 600)
	if tg.State() != TargetReady || tg.Invalid() || tg.NeedsRebuild() {
		t.Fatal("target not ready after SetOutput")
	}
	rec := dev.Swapchains[0]
	if rec.HadOld {
		t.Fatal("first swapchain got an old swapchain")
	}
	d := rec.Desc
	if d.ImageCount != 2 || d.Extent != (gpu.Extent2D{Width: 800, Height: 600}) {
		t.Fatalf("swapchain desc: %+v", d)
	}
	if d.PresentMode != gpu.PresentModeFIFO || d.CompositeAlpha != gpu.CompositeAlphaOpaque {
		t.Fatalf("present mode %s, composite alpha %v", d.PresentMode, d.CompositeAlpha)
	}
	// no color attachment without multisampling
	if dev.Live("image") != 1 || dev.Live("framebuffer") != 2 || dev.Live("semaphore") != 2 {
		t.Fatalf("have %d images, %d framebuffers, %d semaphores",
			dev.Live("image"), dev.Live("framebuffer"), dev.Live("semaphore"))
	}
	fb := tg.Framebuffer(1).(*gputest.Framebuffer)
	if len(fb.Desc.Attachments) != 2 || fb.Desc.Attachments[0].Image() != tg.Swapchain().Images()[1] {
		t.Fatal("framebuffer 1 is not built on swapchain image 1")
	}

	if err := tg.SetOutput(&gputest.Window{}, gpu.Extent2D{Width: 1, Height: 1}); core.KindOf(err) != core.KindUsage {
		t.Fatalf("second SetOutput: have %v", err)
	}
	tg.Destroy()
	if n := dev.LiveTotal(); n != 0 {
		t.Fatalf("%d objects alive after Destroy", n)
	}
}

func TestTargetsMultisampled(t *testing.T) {
	dev := gputest.NewDevice()
	tg := newTestTargets(t, dev, TargetConfig{SampleCount: 4}, 320, 200)
	defer tg.Destroy()
	if dev.Live("image") != 2 {
		t.Fatalf("have %d attachment images, want 2", dev.Live("image"))
	}
	fb := tg.Framebuffer(0).(*gputest.Framebuffer)
	if len(fb.Desc.Attachments) != 3 {
		t.Fatalf("have %d attachments, want 3", len(fb.Desc.Attachments))
	}
	// color, depth, then the swapchain image as resolve target
	if fb.Desc.Attachments[2].Image() != tg.Swapchain().Images()[0] {
		t.Fatal("resolve attachment is not the swapchain image")
	}
	if fb.Desc.Attachments[0].Image().Format() != gpu.FormatBGRA8SRGB {
		t.Fatal("color attachment does not match the surface format")
	}
}

func TestTargetsResizeAndRebuild(t *testing.T) {
	dev := gputest.NewDevice()
	tg := newTestTargets(t, dev, TargetConfig{}, 800, 600)
	defer tg.Destroy()
	live := dev.LiveTotal()

	tg.Resize(800, 600)
	if tg.NeedsRebuild() {
		t.Fatal("same size flagged a rebuild")
	}
	tg.Resize(1024, 768)
	if !tg.NeedsRebuild() {
		t.Fatal("new size did not flag a rebuild")
	}
	old := tg.Swapchain().(*gputest.Swapchain)
	if err := tg.Rebuild(); err != nil {
		t.Fatal(err)
	}
	if dev.WaitIdleCount != 1 {
		t.Fatalf("WaitIdle calls: have %d, want 1", dev.WaitIdleCount)
	}
	if !dev.Swapchains[1].HadOld || !old.Destroyed() {
		t.Fatal("old swapchain not passed as hint and destroyed")
	}
	if tg.Extent() != (gpu.Extent2D{Width: 1024, Height: 768}) || tg.NeedsRebuild() {
		t.Fatalf("after rebuild: extent %+v", tg.Extent())
	}
	if dev.LiveTotal() != live {
		t.Fatalf("rebuild leaked: %d objects alive, had %d", dev.LiveTotal(), live)
	}
}

func TestTargetsZeroSize(t *testing.T) {
	dev := gputest.NewDevice()
	tg := newTestTargets(t, dev, TargetConfig{}, 0, 0)
	defer tg.Destroy()
	if !tg.Invalid() || len(dev.Swapchains) != 0 {
		t.Fatal("zero size output created a swapchain")
	}
	tg.Resize(640, 480)
	if tg.Invalid() || !tg.NeedsRebuild() {
		t.Fatal("resize out of zero did not ask for a build")
	}
	if err := tg.Rebuild(); err != nil {
		t.Fatal(err)
	}
	if tg.State() != TargetReady || dev.Swapchains[0].HadOld {
		t.Fatal("first build after zero size is wrong")
	}
	tg.Resize(0, 0)
	if !tg.Invalid() {
		t.Fatal("resize to zero left the output valid")
	}
}

func TestTargetsNoSurfaceFormat(t *testing.T) {
	dev := gputest.NewDevice()
	dev.Support.Formats = []gpu.SurfaceFormat{{Format: gpu.FormatRGBA32Float}}
	tg := NewTargets(dev, TargetConfig{})
	err := tg.SetOutput(&gputest.Window{Width: 800, Height: 600}, gpu.Extent2D{Width: 800, Height: 600})
	if !errors.Is(err, core.ErrNoSurfaceFormat) || core.KindOf(err) != core.KindInit {
		t.Fatalf("have %v, want a fatal no-surface-format error", err)
	}
	tg.Destroy()
	if n := dev.LiveTotal(); n != 0 {
		t.Fatalf("%d objects leaked", n)
	}
}

func TestTargetsImmediatePresent(t *testing.T) {
	dev := gputest.NewDevice()
	dev.Support.PresentModes = []gpu.PresentMode{gpu.PresentModeFIFO, gpu.PresentModeImmediate}
	tg := newTestTargets(t, dev, TargetConfig{Immediate: true}, 100, 100)
	defer tg.Destroy()
	if m := dev.LastSwapchain().Desc().PresentMode; m != gpu.PresentModeImmediate {
		t.Fatalf("have %s, want immediate", m)
	}
}
