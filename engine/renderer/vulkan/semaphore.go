package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

type semaphore struct {
	ctx    *Context
	handle vk.Semaphore
}

func (c *Context) newSemaphore(next unsafe.Pointer) (vk.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
		PNext: next,
	}
	var h vk.Semaphore
	if err := check(vk.CreateSemaphore(c.device, &info, nil, &h), core.KindInit, "vkCreateSemaphore"); err != nil {
		return vk.NullSemaphore, err
	}
	return h, nil
}

// NewSemaphore creates a binary semaphore.
func (c *Context) NewSemaphore() (gpu.Semaphore, error) {
	h, err := c.newSemaphore(nil)
	if err != nil {
		return nil, err
	}
	return &semaphore{ctx: c, handle: h}, nil
}

func (s *semaphore) Destroy() {
	if s.handle != vk.NullSemaphore {
		vk.DestroySemaphore(s.ctx.device, s.handle, nil)
		s.handle = vk.NullSemaphore
	}
}

// timeline is a timeline semaphore for ordering on the queue. Host side
// waits and reads go through the fences of the submissions that signal it.
type timeline struct {
	semaphore
	ledger *signalLedger
}

func (c *Context) NewTimeline(initial uint64) (gpu.Timeline, error) {
	typeInfo := vk.SemaphoreTypeCreateInfo{
		SType:         vk.StructureTypeSemaphoreTypeCreateInfo,
		SemaphoreType: vk.SemaphoreTypeTimeline,
		InitialValue:  initial,
	}
	h, err := c.newSemaphore(unsafe.Pointer(typeInfo.Ref()))
	if err != nil {
		return nil, err
	}
	release := func(done completion) { c.releaseFence(done.(*fence)) }
	return &timeline{semaphore: semaphore{ctx: c, handle: h}, ledger: newSignalLedger(initial, release)}, nil
}

func (t *timeline) Wait(value uint64) error {
	return t.ledger.waitFor(value)
}

func (t *timeline) Value() (uint64, error) {
	return t.ledger.poll()
}

func (t *timeline) Destroy() {
	t.ledger.drain()
	t.semaphore.Destroy()
}

// timelineSignals returns the highest value each timeline is signalled to
// across the batches.
func timelineSignals(batches []gpu.SubmitBatch) map[*timeline]uint64 {
	out := make(map[*timeline]uint64)
	for _, b := range batches {
		for _, s := range b.Signals {
			if tl, ok := s.Semaphore.(*timeline); ok && s.Value > out[tl] {
				out[tl] = s.Value
			}
		}
	}
	return out
}

func semaphoreHandle(s gpu.Semaphore) vk.Semaphore {
	switch v := s.(type) {
	case *timeline:
		return v.handle
	case *semaphore:
		return v.handle
	}
	return vk.NullSemaphore
}

// submitInfo translates a batch. Every wait and signal gets a value slot;
// binary semaphores ignore theirs.
func submitInfo(b gpu.SubmitBatch) vk.SubmitInfo {
	cmds := make([]vk.CommandBuffer, len(b.Commands))
	for i, c := range b.Commands {
		cmds[i] = c.(*commandBuffer).handle
	}
	waits := make([]vk.Semaphore, len(b.Waits))
	stages := make([]vk.PipelineStageFlags, len(b.Waits))
	waitValues := make([]uint64, len(b.Waits))
	for i, w := range b.Waits {
		waits[i] = semaphoreHandle(w.Semaphore)
		stages[i] = vkPipelineStages(w.Stage)
		if _, ok := w.Semaphore.(*timeline); ok {
			waitValues[i] = w.Value
		}
	}
	signals := make([]vk.Semaphore, len(b.Signals))
	signalValues := make([]uint64, len(b.Signals))
	for i, s := range b.Signals {
		signals[i] = semaphoreHandle(s.Semaphore)
		if _, ok := s.Semaphore.(*timeline); ok {
			signalValues[i] = s.Value
		}
	}
	values := vk.TimelineSemaphoreSubmitInfo{
		SType:                     vk.StructureTypeTimelineSemaphoreSubmitInfo,
		WaitSemaphoreValueCount:   uint32(len(waitValues)),
		PWaitSemaphoreValues:      waitValues,
		SignalSemaphoreValueCount: uint32(len(signalValues)),
		PSignalSemaphoreValues:    signalValues,
	}
	return vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		PNext:                unsafe.Pointer(values.Ref()),
		WaitSemaphoreCount:   uint32(len(waits)),
		PWaitSemaphores:      waits,
		PWaitDstStageMask:    stages,
		CommandBufferCount:   uint32(len(cmds)),
		PCommandBuffers:      cmds,
		SignalSemaphoreCount: uint32(len(signals)),
		PSignalSemaphores:    signals,
	}
}
