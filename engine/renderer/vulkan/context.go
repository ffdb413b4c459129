// Package vulkan implements gpu.Device on top of goki/vulkan.
package vulkan

import (
	"sync"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

type ContextConfig struct {
	AppName    string
	Validation bool
	// Instance extensions the window system needs, usually
	// glfw.GetCurrentContext().GetRequiredInstanceExtensions().
	Extensions   []string
	Requirements *PhysicalDeviceRequirements
}

// Context owns the instance, the logical device and its single queue.
type Context struct {
	instance vk.Instance
	debug    vk.DebugReportCallback

	physical *physicalDevice
	device   vk.Device
	queue    vk.Queue
	pool     vk.CommandPool

	limits gpu.Limits
	locks  *LockPool
	passes *renderPassCache

	fenceMu sync.Mutex
	fences  []*fence
}

var _ gpu.Device = (*Context)(nil)

func NewContext(cfg ContextConfig) (*Context, error) {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return nil, core.NewError(core.KindInit, "GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, core.WrapError(err, core.KindInit, "initializing the Vulkan loader")
	}

	c := &Context{locks: NewLockPool()}
	var err error
	if c.instance, err = createInstance(cfg); err != nil {
		return nil, err
	}
	if cfg.Validation {
		if c.debug, err = createDebugCallback(c.instance); err != nil {
			c.Destroy()
			return nil, err
		}
	}

	req := defaultRequirements()
	if cfg.Requirements != nil {
		req = *cfg.Requirements
	}
	if c.physical, err = selectPhysicalDevice(c.instance, req); err != nil {
		c.Destroy()
		return nil, err
	}
	if c.device, c.queue, err = createLogicalDevice(c.physical); err != nil {
		c.Destroy()
		return nil, err
	}
	if c.pool, err = createCommandPool(c.device, c.physical.queueFamily); err != nil {
		c.Destroy()
		return nil, err
	}
	c.locks.queue(c.physical.queueFamily)
	c.passes = newRenderPassCache(c)

	c.limits = limitsOf(c.physical)
	c.limits.DepthFormat = gpu.FormatD32Float
	if f, ok := detectDepthFormat(c.physical.handle, vk.FormatD32Sfloat, vk.FormatD24UnormS8Uint); ok {
		c.limits.DepthFormat = gpuFormat(f)
	}
	core.LogInfo("Vulkan device context ready.")
	return c, nil
}

func limitsOf(pd *physicalDevice) gpu.Limits {
	l := pd.properties.Limits
	out := gpu.Limits{
		BufferImageGranularity:           uint64(l.BufferImageGranularity),
		NonCoherentAtomSize:              uint64(l.NonCoherentAtomSize),
		MinUniformBufferOffsetAlignment:  uint64(l.MinUniformBufferOffsetAlignment),
		MinStorageBufferOffsetAlignment:  uint64(l.MinStorageBufferOffsetAlignment),
		OptimalBufferCopyOffsetAlignment: uint64(l.OptimalBufferCopyOffsetAlignment),
		MaxImageDimension2D:              l.MaxImageDimension2D,
	}
	if pd.anisotropy() {
		out.MaxSamplerAnisotropy = l.MaxSamplerAnisotropy
	}
	return out
}

func (c *Context) Limits() gpu.Limits {
	return c.limits
}

// DepthFormat is the depth attachment format the device supports.
func (c *Context) DepthFormat() gpu.Format {
	return c.limits.DepthFormat
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that has
// every flag in properties, or -1.
func (c *Context) FindMemoryIndex(typeFilter uint32, properties vk.MemoryPropertyFlagBits) int32 {
	mem := c.physical.memory
	for i := uint32(0); i < mem.MemoryTypeCount; i++ {
		t := mem.MemoryTypes[i]
		t.Deref()
		if typeFilter&(1<<i) != 0 && vk.MemoryPropertyFlagBits(t.PropertyFlags)&properties == properties {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

// Submit attaches a fence when any batch signals a timeline, so the host can
// wait for those values.
func (c *Context) Submit(batches ...gpu.SubmitBatch) error {
	if len(batches) == 0 {
		return nil
	}
	infos := make([]vk.SubmitInfo, len(batches))
	for i, b := range batches {
		infos[i] = submitInfo(b)
	}

	signals := timelineSignals(batches)
	var f *fence
	handle := vk.NullFence
	if len(signals) > 0 {
		var err error
		if f, err = c.acquireFence(len(signals)); err != nil {
			return err
		}
		handle = f.handle
	}

	err := c.locks.SafeQueueCall(c.physical.queueFamily, func() error {
		return check(vk.QueueSubmit(c.queue, uint32(len(infos)), infos, handle), core.KindSync, "vkQueueSubmit")
	})
	if err != nil {
		if f != nil {
			f.destroy()
		}
		return err
	}
	for tl, v := range signals {
		tl.ledger.add(v, f)
	}
	return nil
}

func (c *Context) WaitIdle() error {
	return c.locks.SafeQueueCall(c.physical.queueFamily, func() error {
		return check(vk.DeviceWaitIdle(c.device), core.KindSync, "vkDeviceWaitIdle")
	})
}

// Destroy releases the device, then the debug callback, then the instance.
// Every object created from the context must already be destroyed.
func (c *Context) Destroy() {
	if c.passes != nil {
		c.passes.destroy()
		c.passes = nil
	}
	if c.device != nil {
		c.destroyFences()
		if c.pool != vk.NullCommandPool {
			vk.DestroyCommandPool(c.device, c.pool, nil)
			c.pool = vk.NullCommandPool
		}
		core.LogDebug("Destroying logical device...")
		vk.DestroyDevice(c.device, nil)
		c.device = nil
		c.queue = nil
	}
	if c.debug != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(c.instance, c.debug, nil)
		c.debug = vk.NullDebugReportCallback
	}
	if c.instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(c.instance, nil)
		c.instance = nil
	}
}
