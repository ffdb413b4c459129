package vulkan

import (
	"runtime"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/tessera/engine/core"
)

const (
	validationLayer = "VK_LAYER_KHRONOS_validation"
	// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
	instanceEnumeratePortability = 0x00000001
)

func createInstance(cfg ContextConfig) (vk.Instance, error) {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 2, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(cfg.AppName),
		PEngineName:        VulkanSafeString("Tessera"),
	}

	extensions := appendUnique(nil, "VK_KHR_surface")
	extensions = appendUnique(extensions, cfg.Extensions...)
	var flags vk.InstanceCreateFlags
	if runtime.GOOS == "darwin" {
		extensions = appendUnique(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		flags |= instanceEnumeratePortability
	}

	var layers []string
	if cfg.Validation {
		extensions = appendUnique(extensions, vk.ExtDebugReportExtensionName)
		if err := requireLayers(validationLayer); err != nil {
			return nil, err
		}
		layers = append(layers, validationLayer)
	}
	for _, e := range extensions {
		core.LogDebug("instance extension: %s", e)
	}

	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		Flags:                   flags,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensions),
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     VulkanSafeStrings(layers),
	}

	var instance vk.Instance
	if err := check(vk.CreateInstance(&createInfo, nil, &instance), core.KindInit, "vkCreateInstance"); err != nil {
		return nil, err
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, core.WrapError(err, core.KindInit, "loading instance functions")
	}
	core.LogInfo("Vulkan instance created.")
	return instance, nil
}

func appendUnique(list []string, names ...string) []string {
next:
	for _, n := range names {
		for _, have := range list {
			if have == n {
				continue next
			}
		}
		list = append(list, n)
	}
	return list
}

func requireLayers(names ...string) error {
	var count uint32
	if err := check(vk.EnumerateInstanceLayerProperties(&count, nil), core.KindInit, "vkEnumerateInstanceLayerProperties"); err != nil {
		return err
	}
	available := make([]vk.LayerProperties, count)
	if err := check(vk.EnumerateInstanceLayerProperties(&count, available), core.KindInit, "vkEnumerateInstanceLayerProperties"); err != nil {
		return err
	}
	have := make(map[string]bool, count)
	for i := range available {
		available[i].Deref()
		have[cString(available[i].LayerName[:])] = true
	}
	for _, n := range names {
		if !have[n] {
			return core.NewError(core.KindInit, "required validation layer is missing: %s", n)
		}
		core.LogInfo("Found layer %s.", n)
	}
	return nil
}

func createDebugCallback(instance vk.Instance) (vk.DebugReportCallback, error) {
	info := vk.DebugReportCallbackCreateInfo{
		SType: vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit |
			vk.DebugReportPerformanceWarningBit | vk.DebugReportInformationBit),
		PfnCallback: debugCallback,
	}
	var cb vk.DebugReportCallback
	if err := check(vk.CreateDebugReportCallback(instance, &info, nil, &cb), core.KindInit, "vkCreateDebugReportCallback"); err != nil {
		return vk.NullDebugReportCallback, err
	}
	core.LogDebug("Vulkan debug callback created.")
	return cb, nil
}

// debugCallback forwards validation messages to the engine logger.
func debugCallback(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	bits := vk.DebugReportFlagBits(flags)
	switch {
	case bits&vk.DebugReportErrorBit != 0:
		core.LogError("[%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	case bits&(vk.DebugReportWarningBit|vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("[%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
