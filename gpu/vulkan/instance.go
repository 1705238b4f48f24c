// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vulkan

import (
	"fmt"
	"unsafe"

	"github.com/devblok/korender/gpu"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

// Instance is a Vulkan instance together with the object table shared by
// every device created from it.
type Instance struct {
	instance vk.Instance
	objects  *objects
	log      logrus.FieldLogger

	self    gpu.Handle
	debug   gpu.DebugCallback
	devices map[vk.PhysicalDevice]gpu.PhysicalDevice
}

func newInstance(desc gpu.InstanceDescriptor, log logrus.FieldLogger) (*Instance, error) {
	extensions := append([]string(nil), desc.Extensions...)
	var layers []string
	if desc.Debug {
		layers = append(layers, ValidationLayer)
		extensions = append(extensions, DebugReportExtension)
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(desc.APIVersion),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PApplicationName:   safeString(desc.AppName),
		PEngineName:        safeString("korender"),
	}
	ici := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     safeStrings(layers),
	}

	var instance vk.Instance
	if err := check("vk.CreateInstance", vk.CreateInstance(&ici, nil, &instance)); err != nil {
		return nil, err
	}
	vk.InitInstance(instance)

	i := &Instance{
		instance: instance,
		objects:  newObjects(),
		log:      log,
		devices:  make(map[vk.PhysicalDevice]gpu.PhysicalDevice),
	}
	i.self = i.objects.add(gpu.ObjectInstance, instance)

	if desc.Debug {
		if err := i.createDebugCallback(); err != nil {
			// validation output is a convenience, rendering works without it
			log.WithError(err).Warn("debug report callback unavailable")
		}
	}
	return i, nil
}

func (i *Instance) createDebugCallback() error {
	dci := vk.DebugReportCallbackCreateInfo{
		SType: vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit |
			vk.DebugReportPerformanceWarningBit),
		PfnCallback: i.report,
	}
	var cb vk.DebugReportCallback
	if err := check("vk.CreateDebugReportCallback", vk.CreateDebugReportCallback(i.instance, &dci, nil, &cb)); err != nil {
		return err
	}
	i.debug = gpu.DebugCallback(i.objects.add(gpu.ObjectDebugCallback, cb))
	return nil
}

// report forwards validation messages to the logger.
func (i *Instance) report(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	entry := i.log.WithFields(logrus.Fields{
		"layer": pLayerPrefix,
		"code":  messageCode,
	})
	switch level(flags) {
	case logrus.ErrorLevel:
		entry.Error(pMessage)
	case logrus.WarnLevel:
		entry.Warn(pMessage)
	case logrus.InfoLevel:
		entry.Info(pMessage)
	default:
		entry.Debug(pMessage)
	}
	return vk.False
}

// level picks the log level of a debug report.
func level(flags vk.DebugReportFlags) logrus.Level {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		return logrus.ErrorLevel
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		return logrus.WarnLevel
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		return logrus.InfoLevel
	}
	return logrus.DebugLevel
}

// DebugCallback implements gpu.Instance
func (i *Instance) DebugCallback() gpu.DebugCallback {
	return i.debug
}

// CreateSurface implements gpu.Instance
func (i *Instance) CreateSurface(w gpu.Window) (gpu.Surface, error) {
	if w == nil {
		return 0, errors.New("vulkan: nil window")
	}
	ptr, err := w.VulkanCreateSurface(i.instance)
	if err != nil {
		return 0, errors.Wrap(err, "window surface")
	}
	surface := vk.SurfaceFromPointer(uintptr(ptr))
	return gpu.Surface(i.objects.add(gpu.ObjectSurface, surface)), nil
}

func (i *Instance) surface(s gpu.Surface) vk.Surface {
	if v, ok := i.objects.get(gpu.ObjectSurface, gpu.Handle(s)); ok {
		return v.(vk.Surface)
	}
	return vk.NullSurface
}

func (i *Instance) physicalDevice(pd gpu.PhysicalDevice) (vk.PhysicalDevice, error) {
	for native, h := range i.devices {
		if h == pd {
			return native, nil
		}
	}
	return nil, fmt.Errorf("vulkan: unknown physical device %d", pd)
}

// PhysicalDevices implements gpu.Instance
func (i *Instance) PhysicalDevices(s gpu.Surface) ([]gpu.PhysicalDeviceInfo, error) {
	var count uint32
	if err := check("vk.EnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(i.instance, &count, nil)); err != nil {
		return nil, err
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := check("vk.EnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(i.instance, &count, devices)); err != nil {
		return nil, err
	}

	surface := i.surface(s)
	infos := make([]gpu.PhysicalDeviceInfo, 0, len(devices))
	for _, pd := range devices {
		h, ok := i.devices[pd]
		if !ok {
			h = gpu.PhysicalDevice(i.objects.add(gpu.ObjectUnknown, pd))
			i.devices[pd] = h
		}
		info, err := describe(pd, surface)
		if err != nil {
			return nil, err
		}
		info.Device = h
		infos = append(infos, info)
	}
	return infos, nil
}

// describe gathers everything device selection looks at.
func describe(pd vk.PhysicalDevice, surface vk.Surface) (gpu.PhysicalDeviceInfo, error) {
	var info gpu.PhysicalDeviceInfo

	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(pd, &props)
	props.Deref()
	props.Limits.Deref()
	info.Name = vk.ToString(props.DeviceName[:])
	info.Type = adapterType(props.DeviceType)
	info.ID = props.DeviceID
	info.VendorID = props.VendorID
	info.DriverVersion = props.DriverVersion
	info.APIVersion = gpu.Version(props.ApiVersion)
	info.Limits = gpu.Limits{
		MaxImageDimension2D:             props.Limits.MaxImageDimension2D,
		MinUniformBufferOffsetAlignment: uint64(props.Limits.MinUniformBufferOffsetAlignment),
	}

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(pd, &features)
	features.Deref()
	info.Features.GeometryShader = features.GeometryShader.B()

	var memory vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(pd, &memory)
	memory.Deref()
	for idx := uint32(0); idx < memory.MemoryHeapCount; idx++ {
		memory.MemoryHeaps[idx].Deref()
		info.Memory += uint64(memory.MemoryHeaps[idx].Size)
	}

	var numExtensions uint32
	if err := check("vk.EnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(pd, "", &numExtensions, nil)); err != nil {
		return info, err
	}
	extensions := make([]vk.ExtensionProperties, numExtensions)
	if err := check("vk.EnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(pd, "", &numExtensions, extensions)); err != nil {
		return info, err
	}
	for _, ext := range extensions {
		ext.Deref()
		info.Extensions = append(info.Extensions, vk.ToString(ext.ExtensionName[:]))
	}

	var numLayers uint32
	if err := check("vk.EnumerateDeviceLayerProperties", vk.EnumerateDeviceLayerProperties(pd, &numLayers, nil)); err != nil {
		return info, err
	}
	layers := make([]vk.LayerProperties, numLayers)
	if err := check("vk.EnumerateDeviceLayerProperties", vk.EnumerateDeviceLayerProperties(pd, &numLayers, layers)); err != nil {
		return info, err
	}
	for _, layer := range layers {
		layer.Deref()
		info.Layers = append(info.Layers, vk.ToString(layer.LayerName[:]))
	}

	var numFamilies uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &numFamilies, nil)
	families := make([]vk.QueueFamilyProperties, numFamilies)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &numFamilies, families)
	for idx := range families {
		families[idx].Deref()
		family := gpu.QueueFamily{
			Index:      uint32(idx),
			QueueCount: families[idx].QueueCount,
			Graphics:   families[idx].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0,
		}
		if surface != vk.NullSurface {
			var supported vk.Bool32
			vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(idx), surface, &supported)
			family.Present = supported.B()
		}
		info.QueueFamilies = append(info.QueueFamilies, family)
	}

	if surface == vk.NullSurface {
		return info, nil
	}
	return info, describeSurface(pd, surface, &info)
}

func describeSurface(pd vk.PhysicalDevice, surface vk.Surface, info *gpu.PhysicalDeviceInfo) error {
	var numFormats uint32
	if err := check("vk.GetPhysicalDeviceSurfaceFormats", vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &numFormats, nil)); err != nil {
		return err
	}
	formats := make([]vk.SurfaceFormat, numFormats)
	if err := check("vk.GetPhysicalDeviceSurfaceFormats", vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &numFormats, formats)); err != nil {
		return err
	}
	for _, f := range formats {
		f.Deref()
		info.SurfaceFormats = append(info.SurfaceFormats, gpu.SurfaceFormat{
			Format:     gpu.Format(f.Format),
			ColorSpace: gpu.ColorSpace(f.ColorSpace),
		})
	}

	var numModes uint32
	if err := check("vk.GetPhysicalDeviceSurfacePresentModes", vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &numModes, nil)); err != nil {
		return err
	}
	modes := make([]vk.PresentMode, numModes)
	if err := check("vk.GetPhysicalDeviceSurfacePresentModes", vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &numModes, modes)); err != nil {
		return err
	}
	for _, m := range modes {
		info.PresentModes = append(info.PresentModes, gpu.PresentMode(m))
	}

	var caps vk.SurfaceCapabilities
	if err := check("vk.GetPhysicalDeviceSurfaceCapabilities", vk.GetPhysicalDeviceSurfaceCapabilities(pd, surface, &caps)); err != nil {
		return err
	}
	info.Capabilities = surfaceCapabilities(caps)
	return nil
}

// SurfaceCapabilities implements gpu.Instance
func (i *Instance) SurfaceCapabilities(pd gpu.PhysicalDevice, s gpu.Surface) (gpu.SurfaceCapabilities, error) {
	native, err := i.physicalDevice(pd)
	if err != nil {
		return gpu.SurfaceCapabilities{}, err
	}
	var caps vk.SurfaceCapabilities
	if err := check("vk.GetPhysicalDeviceSurfaceCapabilities", vk.GetPhysicalDeviceSurfaceCapabilities(native, i.surface(s), &caps)); err != nil {
		return gpu.SurfaceCapabilities{}, err
	}
	return surfaceCapabilities(caps), nil
}

// CreateDevice implements gpu.Instance
func (i *Instance) CreateDevice(pd gpu.PhysicalDevice, desc gpu.DeviceDescriptor) (gpu.Device, error) {
	native, err := i.physicalDevice(pd)
	if err != nil {
		return nil, err
	}
	info, err := describe(native, vk.NullSurface)
	if err != nil {
		return nil, err
	}

	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: desc.QueueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{1},
	}}
	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(desc.Extensions)),
		PpEnabledExtensionNames: safeStrings(desc.Extensions),
		PEnabledFeatures: []vk.PhysicalDeviceFeatures{{
			GeometryShader: bool32(desc.Features.GeometryShader),
		}},
	}

	var device vk.Device
	if err := check("vk.CreateDevice", vk.CreateDevice(native, &dci, nil, &device)); err != nil {
		return nil, err
	}
	var queue vk.Queue
	vk.GetDeviceQueue(device, desc.QueueFamily, 0, &queue)

	var memory vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(native, &memory)
	memory.Deref()
	for idx := uint32(0); idx < memory.MemoryTypeCount; idx++ {
		memory.MemoryTypes[idx].Deref()
	}

	d := &Device{
		device:  device,
		queue:   queue,
		family:  desc.QueueFamily,
		memory:  memory,
		limits:  info.Limits,
		objects: i.objects,
		log:     i.log,
	}
	d.self = i.objects.add(gpu.ObjectDevice, d)
	return d, nil
}

// Destroy implements gpu.Destroyer for instance level objects.
func (i *Instance) Destroy(t gpu.ObjectType, h gpu.Handle) {
	switch t {
	case gpu.ObjectInstance:
		i.Release()
	case gpu.ObjectDebugCallback:
		if v, ok := i.objects.remove(t, h); ok {
			vk.DestroyDebugReportCallback(i.instance, v.(vk.DebugReportCallback), nil)
			i.debug = 0
		}
	case gpu.ObjectSurface:
		if v, ok := i.objects.remove(t, h); ok {
			vk.DestroySurface(i.instance, v.(vk.Surface), nil)
		}
	case gpu.ObjectDevice:
		if v, ok := i.objects.remove(t, h); ok {
			vk.DestroyDevice(v.(*Device).device, nil)
		}
	default:
		i.log.WithFields(logrus.Fields{"type": t, "handle": h}).Warn("instance asked to destroy device level object")
	}
}

// Release implements gpu.Instance
func (i *Instance) Release() {
	if _, ok := i.objects.remove(gpu.ObjectInstance, i.self); !ok {
		return
	}
	for _, h := range i.devices {
		i.objects.remove(gpu.ObjectUnknown, gpu.Handle(h))
	}
	i.devices = nil
	vk.DestroyInstance(i.instance, nil)
	if left := i.objects.len(); left > 0 {
		i.log.WithField("objects", left).Warn("instance released with live objects")
	}
}
