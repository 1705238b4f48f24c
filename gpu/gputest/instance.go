// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gputest

import (
	"fmt"

	"github.com/devblok/korender/gpu"
)

// Instance is a fake gpu.Instance.
type Instance struct {
	driver *Driver
	desc   gpu.InstanceDescriptor
	handle gpu.Handle
	debug  gpu.DebugCallback
}

// Descriptor returns the descriptor the instance was created with.
func (i *Instance) Descriptor() gpu.InstanceDescriptor {
	return i.desc
}

// DebugCallback implements gpu.Instance
func (i *Instance) DebugCallback() gpu.DebugCallback {
	return i.debug
}

// CreateSurface implements gpu.Instance
func (i *Instance) CreateSurface(w gpu.Window) (gpu.Surface, error) {
	if w == nil {
		return 0, fmt.Errorf("gputest: nil window")
	}
	if _, err := w.VulkanCreateSurface(i); err != nil {
		return 0, err
	}
	d := i.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failLocked("CreateSurface"); err != nil {
		return 0, err
	}
	o := d.newLocked(gpu.ObjectSurface, i.handle)
	d.logLocked("CreateSurface", nil, o.handle)
	return gpu.Surface(o.handle), nil
}

// PhysicalDevices implements gpu.Instance
func (i *Instance) PhysicalDevices(s gpu.Surface) ([]gpu.PhysicalDeviceInfo, error) {
	d := i.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failLocked("PhysicalDevices"); err != nil {
		return nil, err
	}
	infos := make([]gpu.PhysicalDeviceInfo, len(d.Adapters))
	for idx, a := range d.Adapters {
		a.Device = gpu.PhysicalDevice(idx + 1)
		if s == 0 {
			a.SurfaceFormats = nil
			a.PresentModes = nil
			a.Capabilities = gpu.SurfaceCapabilities{}
		}
		infos[idx] = a
	}
	return infos, nil
}

// SurfaceCapabilities implements gpu.Instance
func (i *Instance) SurfaceCapabilities(pd gpu.PhysicalDevice, s gpu.Surface) (gpu.SurfaceCapabilities, error) {
	d := i.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failLocked("SurfaceCapabilities"); err != nil {
		return gpu.SurfaceCapabilities{}, err
	}
	idx := int(pd) - 1
	if idx < 0 || idx >= len(d.Adapters) {
		return gpu.SurfaceCapabilities{}, fmt.Errorf("gputest: unknown physical device %d", pd)
	}
	return d.Adapters[idx].Capabilities, nil
}

// CreateDevice implements gpu.Instance
func (i *Instance) CreateDevice(pd gpu.PhysicalDevice, desc gpu.DeviceDescriptor) (gpu.Device, error) {
	d := i.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failLocked("CreateDevice"); err != nil {
		return nil, err
	}
	idx := int(pd) - 1
	if idx < 0 || idx >= len(d.Adapters) {
		return nil, fmt.Errorf("gputest: unknown physical device %d", pd)
	}
	o := d.newLocked(gpu.ObjectDevice, i.handle)
	dev := &Device{
		driver: d,
		handle: o.handle,
		limits: d.Adapters[idx].Limits,
		desc:   desc,
	}
	d.device = dev
	d.logLocked("CreateDevice", nil, o.handle)
	return dev, nil
}

// Destroy implements gpu.Destroyer for instance level objects.
func (i *Instance) Destroy(t gpu.ObjectType, h gpu.Handle) {
	if t == gpu.ObjectInstance {
		i.Release()
		return
	}
	d := i.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if !t.InstanceLevel() {
		d.violatef("instance asked to destroy device level %s %d", t, h)
	}
	d.destroyLocked(t, h)
}

// Release implements gpu.Instance
func (i *Instance) Release() {
	d := i.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyLocked(gpu.ObjectInstance, i.handle)
}
