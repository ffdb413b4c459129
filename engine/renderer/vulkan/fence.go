package vulkan

import (
	"math"
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/tessera/engine/core"
)

// fence tracks the completion of one queue submission on the host. It is
// shared by every timeline that submission signals and goes back to the
// context's free list once the last of them lets go.
type fence struct {
	ctx      *Context
	handle   vk.Fence
	signaled bool
	refs     int
}

func (c *Context) newFence() (*fence, error) {
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	var h vk.Fence
	if err := check(vk.CreateFence(c.device, &info, nil, &h), core.KindInit, "vkCreateFence"); err != nil {
		return nil, err
	}
	return &fence{ctx: c, handle: h}, nil
}

func (f *fence) wait() error {
	if f.signaled {
		return nil
	}
	res := vk.WaitForFences(f.ctx.device, 1, []vk.Fence{f.handle}, vk.True, math.MaxUint64)
	if res == vk.Timeout {
		core.LogWarn("vkWaitForFences timed out")
	}
	if err := check(res, core.KindSync, "vkWaitForFences"); err != nil {
		return err
	}
	f.signaled = true
	return nil
}

func (f *fence) ready() (bool, error) {
	if f.signaled {
		return true, nil
	}
	switch res := vk.GetFenceStatus(f.ctx.device, f.handle); res {
	case vk.Success:
		f.signaled = true
		return true, nil
	case vk.NotReady:
		return false, nil
	default:
		return false, check(res, core.KindSync, "vkGetFenceStatus")
	}
}

func (f *fence) reset() error {
	if !f.signaled {
		return nil
	}
	if err := check(vk.ResetFences(f.ctx.device, 1, []vk.Fence{f.handle}), core.KindSync, "vkResetFences"); err != nil {
		return err
	}
	f.signaled = false
	return nil
}

func (f *fence) destroy() {
	if f.handle != vk.NullFence {
		vk.DestroyFence(f.ctx.device, f.handle, nil)
		f.handle = vk.NullFence
	}
	f.signaled = false
}

// acquireFence hands out an unsignaled fence held by refs owners.
func (c *Context) acquireFence(refs int) (*fence, error) {
	c.fenceMu.Lock()
	defer c.fenceMu.Unlock()
	var f *fence
	if n := len(c.fences); n > 0 {
		f = c.fences[n-1]
		c.fences = c.fences[:n-1]
	} else {
		var err error
		if f, err = c.newFence(); err != nil {
			return nil, err
		}
	}
	f.refs = refs
	return f, nil
}

func (c *Context) releaseFence(f *fence) {
	c.fenceMu.Lock()
	defer c.fenceMu.Unlock()
	if f.refs--; f.refs > 0 {
		return
	}
	// an unsignaled fence may still belong to work in flight
	if ok, err := f.ready(); err != nil || !ok {
		if err := f.wait(); err != nil {
			core.LogError("dropping fence: %v", err)
			return
		}
	}
	if err := f.reset(); err != nil {
		core.LogError("dropping fence: %v", err)
		f.destroy()
		return
	}
	c.fences = append(c.fences, f)
}

func (c *Context) destroyFences() {
	c.fenceMu.Lock()
	defer c.fenceMu.Unlock()
	for _, f := range c.fences {
		f.destroy()
	}
	c.fences = nil
}

// completion is the part of a fence the signal ledger relies on.
type completion interface {
	wait() error
	ready() (bool, error)
}

type pendingSignal struct {
	value uint64
	done  completion
}

// signalLedger answers timeline waits and reads on the host. Each submission
// that signals the timeline registers its value with the completion of that
// submission; values are registered in ascending order.
type signalLedger struct {
	mu        sync.Mutex
	completed uint64
	pending   []pendingSignal
	release   func(completion)
}

func newSignalLedger(initial uint64, release func(completion)) *signalLedger {
	return &signalLedger{completed: initial, release: release}
}

func (l *signalLedger) add(value uint64, done completion) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, pendingSignal{value: value, done: done})
}

// waitFor blocks until a submission signalling value or more has completed.
func (l *signalLedger) waitFor(value uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if value <= l.completed {
		return nil
	}
	target := -1
	for i, p := range l.pending {
		if p.value >= value {
			target = i
			break
		}
	}
	if target < 0 {
		return core.NewError(core.KindSync, "timeline value %d was never submitted, counter is %d", value, l.completed)
	}
	for i := 0; i <= target; i++ {
		if err := l.pending[i].done.wait(); err != nil {
			l.retire(i)
			return err
		}
	}
	l.retire(target + 1)
	return nil
}

// poll retires every completed submission without blocking and returns the
// counter.
func (l *signalLedger) poll() (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, p := range l.pending {
		ok, err := p.done.ready()
		if err != nil {
			l.retire(n)
			return l.completed, err
		}
		if !ok {
			break
		}
		n++
	}
	l.retire(n)
	return l.completed, nil
}

// retire drops the first n pending signals, which have all completed.
func (l *signalLedger) retire(n int) {
	for _, p := range l.pending[:n] {
		if p.value > l.completed {
			l.completed = p.value
		}
		if l.release != nil {
			l.release(p.done)
		}
	}
	l.pending = append(l.pending[:0], l.pending[n:]...)
}

// drain hands back every pending completion, finished or not.
func (l *signalLedger) drain() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.pending {
		if l.release != nil {
			l.release(p.done)
		}
	}
	l.pending = nil
}
