package renderer

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu/gputest"
)

type frameFixture struct {
	dev     *gputest.Device
	targets *Targets
	staging *Staging
	pending *PendingWrites
	frames  *FrameController
}

func newFrameFixture(t *testing.T, w, h uint32) *frameFixture {
	t.Helper()
	f := &frameFixture{dev: gputest.NewDevice(), pending: NewPendingWrites()}
	f.targets = newTestTargets(t, f.dev, TargetConfig{}, w, h)
	f.staging = newTestStaging(t, f.dev, 1<<16)
	var err error
	f.frames, err = NewFrameController(f.dev, f.targets, f.staging, f.pending, FrameConfig{AcquireTimeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		f.frames.Destroy()
		f.targets.Destroy()
	})
	return f
}

func (f *frameFixture) acquire(t *testing.T, want FrameStatus) *Frame {
	t.Helper()
	status, frame, err := f.frames.AcquireFrame()
	if err != nil {
		t.Fatal(err)
	}
	if status != want {
		t.Fatalf("AcquireFrame: have %s, want %s", status, want)
	}
	if (frame != nil) != (status == FrameRender) {
		t.Fatalf("AcquireFrame returned frame %v with status %s", frame, status)
	}
	return frame
}

func (f *frameFixture) render(t *testing.T) *Frame {
	t.Helper()
	frame := f.acquire(t, FrameRender)
	if err := f.frames.SubmitFrame(); err != nil {
		t.Fatal(err)
	}
	return frame
}

func TestTimelineAdvancesByTwoPerFrame(t *testing.T) {
	f := newFrameFixture(t, 800, 600)
	timeline := f.frames.timeline

	for n := uint64(1); n <= 4; n++ {
		before, _ := timeline.Value()
		if before != f.frames.TimelineValue() {
			t.Fatalf("frame %d starts at %d, previous frame signaled %d", n, before, f.frames.TimelineValue())
		}
		frame := f.render(t)
		if frame.Number != n || frame.UploadValue != 2*n-1 || frame.RenderValue != 2*n {
			t.Fatalf("frame %d: number %d, values %d/%d", n, frame.Number, frame.UploadValue, frame.RenderValue)
		}
		after, _ := timeline.Value()
		if after != before+2 {
			t.Fatalf("frame %d moved the timeline from %d to %d", n, before, after)
		}
	}
	if len(f.dev.Presents) != 4 {
		t.Fatalf("presents: have %d, want 4", len(f.dev.Presents))
	}
}

func TestSubmitFrameOrdersUploadBeforeRender(t *testing.T) {
	f := newFrameFixture(t, 800, 600)
	frame := f.render(t)

	if len(f.dev.Submits) != 1 || len(f.dev.Submits[0]) != 2 {
		t.Fatalf("want one queue submission of two batches, have %v", f.dev.Submits)
	}
	upload, render := f.dev.Submits[0][0], f.dev.Submits[0][1]
	if upload.Commands[0] != f.frames.upload || render.Commands[0] != frame.Commands {
		t.Fatal("batches are not upload then render")
	}
	if len(upload.Waits) != 0 || len(upload.Signals) != 1 || upload.Signals[0].Value != frame.UploadValue {
		t.Fatalf("upload batch: %+v", upload)
	}

	if len(render.Waits) != 2 {
		t.Fatalf("render waits: %+v", render.Waits)
	}
	acquired, uploaded := render.Waits[0], render.Waits[1]
	if acquired.Semaphore != f.targets.ImageAcquired() || acquired.Stage != gpu.PipelineStageColorAttachmentOutput {
		t.Fatalf("image wait: %+v", acquired)
	}
	if uploaded.Semaphore != gpu.Semaphore(f.frames.timeline) || uploaded.Value != frame.UploadValue ||
		uploaded.Stage != gpu.PipelineStageVertexInput {
		t.Fatalf("upload wait: %+v", uploaded)
	}
	if len(render.Signals) != 2 || render.Signals[0].Value != frame.RenderValue ||
		render.Signals[1].Semaphore != f.targets.ReadyToPresent() {
		t.Fatalf("render signals: %+v", render.Signals)
	}
}

func TestAcquireFrameRecordsUploadsAndFlushesDescriptors(t *testing.T) {
	f := newFrameFixture(t, 800, 600)
	dst, err := f.dev.NewBuffer(64, gpu.BufferUsageVertex|gpu.BufferUsageTransferDst)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.staging.VertexBufferCopy(make([]byte, 64), dst); err != nil {
		t.Fatal(err)
	}
	layout := spriteLayout(t, f.dev)
	pool, _ := f.dev.NewDescriptorPool(1, []gpu.DescriptorPoolSize{{Type: gpu.DescriptorUniformBuffer, Count: 1}, {Type: gpu.DescriptorCombinedImageSampler, Count: 1}})
	sets, err := pool.Allocate(layout, 1)
	if err != nil {
		t.Fatal(err)
	}
	f.pending.Add(sets[0], 1, gpu.DescriptorUniformBuffer, []DescriptorResource{BufferResource(dst, 0, 64)})

	frame := f.acquire(t, FrameRender)
	if kinds := f.frames.upload.(*gputest.CommandBuffer).Kinds(); len(kinds) != 1 || kinds[0] != "copy-buffer" {
		t.Fatalf("upload commands: %v", kinds)
	}
	if len(f.dev.DescriptorWrites) != 1 || f.pending.Len() != 0 {
		t.Fatal("pending descriptor writes not flushed at acquire")
	}
	if frame.Extent != (gpu.Extent2D{Width: 800, Height: 600}) || frame.Framebuffer != f.targets.Framebuffer(frame.ImageIndex) {
		t.Fatalf("frame: %+v", frame)
	}

	frame.Commands.Draw(6, 1, 0, 0)
	if err := f.frames.SubmitFrame(); err != nil {
		t.Fatal(err)
	}
	want := []string{"begin-pass", "set-viewport", "draw", "end-pass"}
	have := frame.Commands.(*gputest.CommandBuffer).Kinds()
	if len(have) != len(want) {
		t.Fatalf("render commands: have %v, want %v", have, want)
	}
	for i := range want {
		if have[i] != want[i] {
			t.Fatalf("render commands: have %v, want %v", have, want)
		}
	}
}

func TestFrameContractMisuse(t *testing.T) {
	f := newFrameFixture(t, 800, 600)
	err := f.frames.SubmitFrame()
	if !errors.Is(err, core.ErrFrameNotAcquired) || core.KindOf(err) != core.KindUsage {
		t.Fatalf("submit without acquire: have %v", err)
	}

	f.acquire(t, FrameRender)
	if _, _, err := f.frames.AcquireFrame(); core.KindOf(err) != core.KindUsage {
		t.Fatalf("second acquire: have %v", err)
	}
	if err := f.frames.Rebuild(); core.KindOf(err) != core.KindUsage {
		t.Fatalf("rebuild mid-frame: have %v", err)
	}
	if err := f.frames.SubmitFrame(); err != nil {
		t.Fatal(err)
	}
	if err := f.frames.SubmitFrame(); !errors.Is(err, core.ErrFrameNotAcquired) {
		t.Fatalf("second submit: have %v", err)
	}
}

func TestNonOptimalAcquireRequestsRebuild(t *testing.T) {
	for _, status := range []gpu.PresentStatus{gpu.PresentSuboptimal, gpu.PresentOutOfDate} {
		t.Run(status.String(), func(t *testing.T) {
			f := newFrameFixture(t, 800, 600)
			f.dev.QueueAcquireStatus(status)
			f.acquire(t, FrameRebuild)
			// the flag stays until the rebuild happens
			f.acquire(t, FrameRebuild)
			if err := f.frames.Rebuild(); err != nil {
				t.Fatal(err)
			}
			f.render(t)
			if len(f.dev.Swapchains) != 2 {
				t.Fatalf("have %d swapchains, want 2", len(f.dev.Swapchains))
			}
		})
	}
}

func TestNonOptimalPresentRequestsRebuild(t *testing.T) {
	f := newFrameFixture(t, 800, 600)
	f.dev.QueuePresentStatus(gpu.PresentSuboptimal)
	f.render(t)
	f.acquire(t, FrameRebuild)
	if err := f.frames.Rebuild(); err != nil {
		t.Fatal(err)
	}
	f.render(t)
}

func TestResizeRules(t *testing.T) {
	f := newFrameFixture(t, 800, 600)
	f.render(t)

	f.targets.Resize(800, 600)
	f.render(t)
	if len(f.dev.Swapchains) != 1 || f.dev.WaitIdleCount != 0 {
		t.Fatal("resize to the current extent rebuilt the swapchain")
	}

	f.targets.Resize(1024, 768)
	f.targets.Resize(1024, 768)
	f.acquire(t, FrameRebuild)
	if err := f.frames.Rebuild(); err != nil {
		t.Fatal(err)
	}
	frame := f.render(t)
	if len(f.dev.Swapchains) != 2 || frame.Extent != (gpu.Extent2D{Width: 1024, Height: 768}) {
		t.Fatalf("want exactly one rebuild to 1024x768, have %d swapchains and %+v", len(f.dev.Swapchains), frame.Extent)
	}

	f.targets.Resize(0, 0)
	for i := 0; i < 3; i++ {
		f.acquire(t, FrameInvalid)
	}
	submits := len(f.dev.Submits)
	f.targets.Resize(640, 480)
	f.acquire(t, FrameRebuild)
	if err := f.frames.Rebuild(); err != nil {
		t.Fatal(err)
	}
	frame = f.render(t)
	if frame.Extent != (gpu.Extent2D{Width: 640, Height: 480}) || len(f.dev.Submits) != submits+1 {
		t.Fatalf("after minimize: extent %+v", frame.Extent)
	}
}
