package vulkan

import (
	"time"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

type surface struct {
	ctx       *Context
	handle    vk.Surface
	transform vk.SurfaceTransformFlagBits
}

func (c *Context) NewSurface(window gpu.Window) (gpu.Surface, error) {
	ptr, err := window.CreateWindowSurface(c.instance, nil)
	if err != nil {
		return nil, core.WrapError(err, core.KindInit, "creating window surface")
	}
	s := &surface{ctx: c, handle: vk.SurfaceFromPointer(ptr)}

	var supported vk.Bool32
	vk.GetPhysicalDeviceSurfaceSupport(c.physical.handle, c.physical.queueFamily, s.handle, &supported)
	if supported != vk.True {
		s.Destroy()
		return nil, core.NewError(core.KindInit, "queue family %d cannot present to the surface", c.physical.queueFamily)
	}
	core.LogDebug("Vulkan surface created.")
	return s, nil
}

func (s *surface) Support() (gpu.SurfaceSupport, error) {
	pd := s.ctx.physical.handle
	var out gpu.SurfaceSupport

	var caps vk.SurfaceCapabilities
	if err := check(vk.GetPhysicalDeviceSurfaceCapabilities(pd, s.handle, &caps), core.KindInit, "vkGetPhysicalDeviceSurfaceCapabilities"); err != nil {
		return out, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	s.transform = caps.CurrentTransform
	out.Capabilities = gpu.SurfaceCapabilities{
		MinImageCount:           caps.MinImageCount,
		MaxImageCount:           caps.MaxImageCount,
		CurrentExtent:           gpu.Extent2D{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height},
		MinImageExtent:          gpu.Extent2D{Width: caps.MinImageExtent.Width, Height: caps.MinImageExtent.Height},
		MaxImageExtent:          gpu.Extent2D{Width: caps.MaxImageExtent.Width, Height: caps.MaxImageExtent.Height},
		SupportedCompositeAlpha: gpuCompositeAlpha(caps.SupportedCompositeAlpha),
	}

	var count uint32
	if err := check(vk.GetPhysicalDeviceSurfaceFormats(pd, s.handle, &count, nil), core.KindInit, "vkGetPhysicalDeviceSurfaceFormats"); err != nil {
		return out, err
	}
	if count > 0 {
		formats := make([]vk.SurfaceFormat, count)
		vk.GetPhysicalDeviceSurfaceFormats(pd, s.handle, &count, formats)
		for _, f := range formats[:count] {
			f.Deref()
			if gf := gpuFormat(f.Format); gf != gpu.FormatUndefined {
				out.Formats = append(out.Formats, gpu.SurfaceFormat{Format: gf, ColorSpace: gpuColorSpace(f.ColorSpace)})
			}
		}
	}

	count = 0
	if err := check(vk.GetPhysicalDeviceSurfacePresentModes(pd, s.handle, &count, nil), core.KindInit, "vkGetPhysicalDeviceSurfacePresentModes"); err != nil {
		return out, err
	}
	if count > 0 {
		modes := make([]vk.PresentMode, count)
		vk.GetPhysicalDeviceSurfacePresentModes(pd, s.handle, &count, modes)
		for _, m := range modes[:count] {
			if gm, ok := gpuPresentMode(m); ok {
				out.PresentModes = append(out.PresentModes, gm)
			}
		}
	}
	return out, nil
}

func (s *surface) Destroy() {
	if s.handle != vk.NullSurface {
		vk.DestroySurface(s.ctx.instance, s.handle, nil)
		s.handle = vk.NullSurface
	}
}

type swapchain struct {
	ctx    *Context
	handle vk.Swapchain
	format gpu.SurfaceFormat
	extent gpu.Extent2D
	images []gpu.Image
}

// NewSwapchain builds a swapchain for desc. When old is not nil its images
// are handed over and the caller destroys it afterwards.
func (c *Context) NewSwapchain(desc gpu.SwapchainDesc, old gpu.Swapchain) (gpu.Swapchain, error) {
	surf := desc.Surface.(*surface)
	transform := surf.transform
	if transform == 0 {
		transform = vk.SurfaceTransformIdentityBit
	}
	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surf.handle,
		MinImageCount:    desc.ImageCount,
		ImageFormat:      vkFormat(desc.Format.Format),
		ImageColorSpace:  vkColorSpace(desc.Format.ColorSpace),
		ImageExtent:      vk.Extent2D{Width: desc.Extent.Width, Height: desc.Extent.Height},
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     transform,
		CompositeAlpha:   vkCompositeAlpha(desc.CompositeAlpha),
		PresentMode:      vkPresentMode(desc.PresentMode),
		Clipped:          vk.True,
	}
	if old != nil {
		info.OldSwapchain = old.(*swapchain).handle
	}

	sc := &swapchain{ctx: c, format: desc.Format, extent: desc.Extent}
	err := c.locks.SafeCall(SwapchainManagement, func() error {
		return check(vk.CreateSwapchain(c.device, &info, nil, &sc.handle), core.KindInit, "vkCreateSwapchain")
	})
	if err != nil {
		return nil, err
	}

	var count uint32
	if err := check(vk.GetSwapchainImages(c.device, sc.handle, &count, nil), core.KindInit, "vkGetSwapchainImages"); err != nil {
		sc.Destroy()
		return nil, err
	}
	handles := make([]vk.Image, count)
	if err := check(vk.GetSwapchainImages(c.device, sc.handle, &count, handles), core.KindInit, "vkGetSwapchainImages"); err != nil {
		sc.Destroy()
		return nil, err
	}
	sc.images = make([]gpu.Image, count)
	for i, h := range handles[:count] {
		sc.images[i] = &image{ctx: c, handle: h, format: desc.Format.Format, extent: desc.Extent}
	}
	core.LogInfo("Swapchain created: %d images, %dx%d, %s.", count, desc.Extent.Width, desc.Extent.Height, desc.PresentMode)
	return sc, nil
}

func (sc *swapchain) Images() []gpu.Image       { return sc.images }
func (sc *swapchain) Format() gpu.SurfaceFormat { return sc.format }
func (sc *swapchain) Extent() gpu.Extent2D      { return sc.extent }

func presentStatus(res vk.Result, op string) (gpu.PresentStatus, error) {
	switch res {
	case vk.Success:
		return gpu.PresentOptimal, nil
	case vk.Suboptimal:
		return gpu.PresentSuboptimal, nil
	case vk.ErrorOutOfDate:
		return gpu.PresentOutOfDate, nil
	}
	return gpu.PresentOptimal, check(res, core.KindSync, op)
}

func (sc *swapchain) Acquire(sem gpu.Semaphore, timeout time.Duration) (uint32, gpu.PresentStatus, error) {
	var index uint32
	res := vk.AcquireNextImage(sc.ctx.device, sc.handle, uint64(timeout.Nanoseconds()), semaphoreHandle(sem), vk.NullFence, &index)
	if res == vk.Timeout || res == vk.NotReady {
		return 0, gpu.PresentOptimal, core.NewError(core.KindSync, "vkAcquireNextImage timed out after %s", timeout)
	}
	status, err := presentStatus(res, "vkAcquireNextImage")
	return index, status, err
}

func (sc *swapchain) Present(index uint32, wait gpu.Semaphore) (gpu.PresentStatus, error) {
	info := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{sc.handle},
		PImageIndices:  []uint32{index},
	}
	if wait != nil {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{semaphoreHandle(wait)}
	}
	var res vk.Result
	sc.ctx.locks.SafeQueueCall(sc.ctx.physical.queueFamily, func() error {
		res = vk.QueuePresent(sc.ctx.queue, &info)
		return nil
	})
	return presentStatus(res, "vkQueuePresent")
}

func (sc *swapchain) Destroy() {
	if sc.handle == vk.NullSwapchain {
		return
	}
	sc.ctx.locks.SafeCall(SwapchainManagement, func() error {
		vk.DestroySwapchain(sc.ctx.device, sc.handle, nil)
		return nil
	})
	sc.handle = vk.NullSwapchain
	sc.images = nil
}
