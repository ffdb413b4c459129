package vulkan

import (
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/tessera/engine/core"
)

const portabilitySubset = "VK_KHR_portability_subset"

// PhysicalDeviceRequirements lists what a device must offer to be picked.
type PhysicalDeviceRequirements struct {
	DeviceExtensionNames []string
	// Preferred features only add to the score.
	PreferDiscrete    bool
	PreferAnisotropy  bool
	MinimumAPIVersion vk.Version
}

func defaultRequirements() PhysicalDeviceRequirements {
	return PhysicalDeviceRequirements{
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
		PreferDiscrete:       true,
		PreferAnisotropy:     true,
		// timeline semaphores are core from 1.2 on
		MinimumAPIVersion: vk.MakeVersion(1, 2, 0),
	}
}

type physicalDevice struct {
	handle      vk.PhysicalDevice
	name        string
	properties  vk.PhysicalDeviceProperties
	features    vk.PhysicalDeviceFeatures
	memory      vk.PhysicalDeviceMemoryProperties
	queueFamily uint32
	extensions  map[string]bool
	score       int
}

func (pd *physicalDevice) anisotropy() bool {
	return pd.features.SamplerAnisotropy == vk.True
}

// selectPhysicalDevice scores every device meeting req and returns the best one.
func selectPhysicalDevice(instance vk.Instance, req PhysicalDeviceRequirements) (*physicalDevice, error) {
	var count uint32
	if err := check(vk.EnumeratePhysicalDevices(instance, &count, nil), core.KindInit, "vkEnumeratePhysicalDevices"); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, core.Raise(core.ErrNoSuitableDevice, core.KindInit, "no devices which support Vulkan were found")
	}
	handles := make([]vk.PhysicalDevice, count)
	if err := check(vk.EnumeratePhysicalDevices(instance, &count, handles), core.KindInit, "vkEnumeratePhysicalDevices"); err != nil {
		return nil, err
	}

	var best *physicalDevice
	for _, h := range handles {
		pd, ok := evaluateDevice(instance, h, req)
		if !ok {
			continue
		}
		core.LogInfo("Candidate device '%s' scored %d.", pd.name, pd.score)
		if best == nil || pd.score > best.score {
			best = pd
		}
	}
	if best == nil {
		return nil, core.Raise(core.ErrNoSuitableDevice, core.KindInit, "no physical device meets the requirements")
	}
	logDevice(best)
	return best, nil
}

func evaluateDevice(instance vk.Instance, h vk.PhysicalDevice, req PhysicalDeviceRequirements) (*physicalDevice, bool) {
	pd := &physicalDevice{handle: h}
	vk.GetPhysicalDeviceProperties(h, &pd.properties)
	pd.properties.Deref()
	pd.properties.Limits.Deref()
	vk.GetPhysicalDeviceFeatures(h, &pd.features)
	pd.features.Deref()
	vk.GetPhysicalDeviceMemoryProperties(h, &pd.memory)
	pd.memory.Deref()
	pd.name = cString(pd.properties.DeviceName[:])

	if vk.Version(pd.properties.ApiVersion) < req.MinimumAPIVersion {
		core.LogInfo("Device '%s' is below the required API version, skipping.", pd.name)
		return nil, false
	}

	family, ok := graphicsPresentFamily(instance, h)
	if !ok {
		core.LogInfo("Device '%s' has no graphics queue with present support, skipping.", pd.name)
		return nil, false
	}
	pd.queueFamily = family

	pd.extensions = deviceExtensions(h)
	for _, name := range req.DeviceExtensionNames {
		if !pd.extensions[name] {
			core.LogInfo("Required extension not found: '%s', skipping device '%s'.", name, pd.name)
			return nil, false
		}
	}

	switch pd.properties.DeviceType {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		if req.PreferDiscrete {
			pd.score += 1000
		}
	case vk.PhysicalDeviceTypeIntegratedGpu:
		pd.score += 100
	case vk.PhysicalDeviceTypeVirtualGpu:
		pd.score += 10
	}
	if req.PreferAnisotropy && pd.anisotropy() {
		pd.score += 50
	}
	pd.score += int(pd.properties.Limits.MaxImageDimension2D / 1024)
	return pd, true
}

// graphicsPresentFamily returns the first queue family doing both graphics and presentation.
func graphicsPresentFamily(instance vk.Instance, h vk.PhysicalDevice) (uint32, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(h, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(h, &count, families)
	for i := range families {
		families[i].Deref()
		if vk.QueueFlagBits(families[i].QueueFlags)&vk.QueueGraphicsBit == 0 {
			continue
		}
		if glfw.GetPhysicalDevicePresentationSupport(instance, h, uint32(i)) {
			return uint32(i), true
		}
	}
	return 0, false
}

func deviceExtensions(h vk.PhysicalDevice) map[string]bool {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(h, "", &count, nil); !VulkanResultIsSuccess(res) {
		return nil
	}
	props := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(h, "", &count, props); !VulkanResultIsSuccess(res) {
		return nil
	}
	out := make(map[string]bool, count)
	for i := range props {
		props[i].Deref()
		out[cString(props[i].ExtensionName[:])] = true
	}
	return out
}

func logDevice(pd *physicalDevice) {
	core.LogInfo("Selected device: '%s'.", pd.name)
	switch pd.properties.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}
	v := vk.Version(pd.properties.ApiVersion)
	core.LogInfo("Vulkan API version: %d.%d.%d", v.Major(), v.Minor(), v.Patch())
	for i := uint32(0); i < pd.memory.MemoryHeapCount; i++ {
		heap := pd.memory.MemoryHeaps[i]
		heap.Deref()
		gib := float64(heap.Size) / (1 << 30)
		if vk.MemoryHeapFlagBits(heap.Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", gib)
		} else {
			core.LogInfo("Shared system memory: %.2f GiB", gib)
		}
	}
}

// createLogicalDevice opens one graphics+present queue with timeline semaphores enabled.
func createLogicalDevice(pd *physicalDevice) (vk.Device, vk.Queue, error) {
	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: pd.queueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	features := vk.PhysicalDeviceFeatures{SamplerAnisotropy: vkBool(pd.anisotropy())}
	f12 := vk.PhysicalDeviceVulkan12Features{
		SType:             vk.StructureTypePhysicalDeviceVulkan12Features,
		TimelineSemaphore: vk.True,
	}

	extensions := []string{vk.KhrSwapchainExtensionName}
	if pd.extensions[portabilitySubset] {
		core.LogInfo("Adding required extension '%s'.", portabilitySubset)
		extensions = append(extensions, portabilitySubset)
	}

	info := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		PNext:                   unsafe.Pointer(f12.Ref()),
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensions),
	}

	var device vk.Device
	if err := check(vk.CreateDevice(pd.handle, &info, nil, &device), core.KindInit, "vkCreateDevice"); err != nil {
		return nil, nil, err
	}
	core.LogInfo("Logical device created.")

	var queue vk.Queue
	vk.GetDeviceQueue(device, pd.queueFamily, 0, &queue)
	return device, queue, nil
}

func createCommandPool(device vk.Device, family uint32) (vk.CommandPool, error) {
	info := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if err := check(vk.CreateCommandPool(device, &info, nil, &pool), core.KindInit, "vkCreateCommandPool"); err != nil {
		return vk.NullCommandPool, err
	}
	core.LogInfo("Graphics command pool created.")
	return pool, nil
}

// detectDepthFormat returns the first candidate usable as an optimal-tiling depth attachment.
func detectDepthFormat(h vk.PhysicalDevice, candidates ...vk.Format) (vk.Format, bool) {
	for _, f := range candidates {
		var props vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(h, f, &props)
		props.Deref()
		if vk.FormatFeatureFlagBits(props.OptimalTilingFeatures)&vk.FormatFeatureDepthStencilAttachmentBit != 0 {
			return f, true
		}
	}
	return vk.FormatUndefined, false
}
