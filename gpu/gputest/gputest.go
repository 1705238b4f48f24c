// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gputest is an in-memory gpu backend for tests. Submissions execute
// immediately on the CPU, fences and semaphores follow a simple timeline and
// every call is appended to an event log. Misuse that a real driver would only
// report through validation layers is collected as violations.
package gputest

import (
	"fmt"
	"sort"
	"sync"
	"unsafe"

	"github.com/devblok/korender/gpu"
)

// Event is one call made against the mock.
type Event struct {
	Op      string
	Handles []gpu.Handle
	Err     error
}

func (e Event) String() string {
	if e.Err != nil {
		return fmt.Sprintf("%s%v: %v", e.Op, e.Handles, e.Err)
	}
	return fmt.Sprintf("%s%v", e.Op, e.Handles)
}

type object struct {
	typ    gpu.ObjectType
	handle gpu.Handle
	// deps must stay alive for as long as this object is alive
	deps []gpu.Handle
	// owner is set for objects that die together with another one
	owner gpu.Handle

	data   []byte
	memory gpu.MemoryUsage
	mapped bool

	format gpu.Format
	layout gpu.ImageLayout
	extent gpu.Extent3D

	signaled bool
	observed bool

	commands  []Command
	recording bool
	pending   gpu.Fence
	pool      gpu.Handle

	images []gpu.Handle
	next   uint32
}

// Driver is a fake backend. The zero value is not usable, use NewDriver.
type Driver struct {
	// Adapters reported by every instance created from the driver.
	Adapters []gpu.PhysicalDeviceInfo

	mu         sync.Mutex
	next       gpu.Handle
	objects    map[gpu.Handle]*object
	events     []Event
	violations []string
	failures   map[string][]error
	executed   []Command

	instance *Instance
	device   *Device
}

// NewDriver returns a driver exposing a single discrete adapter.
func NewDriver() *Driver {
	return &Driver{
		Adapters: []gpu.PhysicalDeviceInfo{DiscreteAdapter()},
		objects:  make(map[gpu.Handle]*object),
		failures: make(map[string][]error),
	}
}

// DiscreteAdapter describes a fully capable discrete GPU whose surface has no
// fixed extent.
func DiscreteAdapter() gpu.PhysicalDeviceInfo {
	return gpu.PhysicalDeviceInfo{
		Name:          "Mock Discrete GPU",
		Type:          gpu.AdapterDiscrete,
		ID:            1,
		VendorID:      0x10de,
		DriverVersion: 1,
		APIVersion:    gpu.MakeVersion(1, 2, 0),
		Memory:        8 << 30,
		Limits: gpu.Limits{
			MaxImageDimension2D:             16384,
			MinUniformBufferOffsetAlignment: 256,
		},
		Features:      gpu.Features{GeometryShader: true},
		Extensions:    []string{"VK_KHR_swapchain", "VK_KHR_shader_draw_parameters"},
		QueueFamilies: []gpu.QueueFamily{{Index: 0, QueueCount: 16, Graphics: true, Present: true}},
		SurfaceFormats: []gpu.SurfaceFormat{
			{Format: gpu.FormatB8G8R8A8Unorm, ColorSpace: gpu.ColorSpaceSrgbNonlinear},
			{Format: gpu.FormatB8G8R8A8Srgb, ColorSpace: gpu.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []gpu.PresentMode{gpu.PresentModeFifo, gpu.PresentModeMailbox},
		Capabilities: gpu.SurfaceCapabilities{
			MinImageCount:           2,
			MaxImageCount:           8,
			CurrentExtent:           gpu.Extent2D{Width: 0xFFFFFFFF, Height: 0xFFFFFFFF},
			MinImageExtent:          gpu.Extent2D{Width: 1, Height: 1},
			MaxImageExtent:          gpu.Extent2D{Width: 4096, Height: 4096},
			CurrentTransform:        gpu.SurfaceTransformIdentity,
			SupportedCompositeAlpha: gpu.CompositeAlphaOpaque,
		},
	}
}

// IntegratedAdapter describes a smaller but suitable integrated GPU.
func IntegratedAdapter() gpu.PhysicalDeviceInfo {
	a := DiscreteAdapter()
	a.Name = "Mock Integrated GPU"
	a.Type = gpu.AdapterIntegrated
	a.ID = 2
	a.Limits.MaxImageDimension2D = 8192
	return a
}

// Window is a window stand-in that hands out fake surface pointers.
type Window struct {
	Err error
}

var surfaceToken byte

// VulkanCreateSurface implements gpu.Window
func (w Window) VulkanCreateSurface(instance interface{}) (unsafe.Pointer, error) {
	if w.Err != nil {
		return nil, w.Err
	}
	return unsafe.Pointer(&surfaceToken), nil
}

// FailNext makes the next call of op return err. Calls queue up per op.
func (d *Driver) FailNext(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[op] = append(d.failures[op], err)
}

// Events returns a copy of the event log.
func (d *Driver) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Event(nil), d.events...)
}

// ClearEvents empties the event log.
func (d *Driver) ClearEvents() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = nil
}

// Violations returns every misuse detected so far.
func (d *Driver) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.violations...)
}

// Live returns the number of live objects per type.
func (d *Driver) Live() map[gpu.ObjectType]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	live := make(map[gpu.ObjectType]int)
	for _, o := range d.objects {
		if o.owner != gpu.Null {
			continue
		}
		live[o.typ]++
	}
	return live
}

// LiveCount returns the total number of live objects.
func (d *Driver) LiveCount() int {
	var n int
	for _, c := range d.Live() {
		n += c
	}
	return n
}

// Handles returns the live handles of a type in creation order.
func (d *Driver) Handles(t gpu.ObjectType) []gpu.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	var hs []gpu.Handle
	for h, o := range d.objects {
		if o.typ == t && o.owner == gpu.Null {
			hs = append(hs, h)
		}
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	return hs
}

// Bytes returns the memory backing a live buffer or image.
func (d *Driver) Bytes(h gpu.Handle) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if o, ok := d.objects[h]; ok {
		return append([]byte(nil), o.data...)
	}
	return nil
}

// Layout returns the current layout of a live image.
func (d *Driver) Layout(img gpu.Image) gpu.ImageLayout {
	d.mu.Lock()
	defer d.mu.Unlock()
	if o, ok := d.objects[gpu.Handle(img)]; ok {
		return o.layout
	}
	return gpu.ImageLayoutUndefined
}

// Commands returns the commands last recorded into a command buffer.
func (d *Driver) Commands(cb gpu.CommandBuffer) []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	if o, ok := d.objects[gpu.Handle(cb)]; ok {
		return append([]Command(nil), o.commands...)
	}
	return nil
}

// Executed returns every command executed by submissions, in order.
func (d *Driver) Executed() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Command(nil), d.executed...)
}

// Instance returns the most recently created instance.
func (d *Driver) Instance() *Instance {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.instance
}

// Device returns the most recently created device.
func (d *Driver) Device() *Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.device
}

// CreateInstance implements gpu.Driver
func (d *Driver) CreateInstance(desc gpu.InstanceDescriptor) (gpu.Instance, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failLocked("CreateInstance"); err != nil {
		return nil, err
	}
	inst := &Instance{driver: d, desc: desc}
	inst.handle = d.newLocked(gpu.ObjectInstance).handle
	if desc.Debug {
		inst.debug = gpu.DebugCallback(d.newLocked(gpu.ObjectDebugCallback, inst.handle).handle)
	}
	d.instance = inst
	d.logLocked("CreateInstance", nil, inst.handle)
	return inst, nil
}

func (d *Driver) newLocked(t gpu.ObjectType, deps ...gpu.Handle) *object {
	d.next++
	o := &object{typ: t, handle: d.next, deps: deps}
	d.objects[o.handle] = o
	return o
}

func (d *Driver) failLocked(op string) error {
	queue := d.failures[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	d.failures[op] = queue[1:]
	d.events = append(d.events, Event{Op: op, Err: err})
	return err
}

func (d *Driver) logLocked(op string, err error, hs ...gpu.Handle) {
	d.events = append(d.events, Event{Op: op, Handles: hs, Err: err})
}

func (d *Driver) violatef(format string, args ...interface{}) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

func (d *Driver) lookupLocked(h gpu.Handle, t gpu.ObjectType) (*object, error) {
	o, ok := d.objects[h]
	if !ok {
		d.violatef("use of dead or unknown %s %d", t, h)
		return nil, fmt.Errorf("gputest: unknown %s %d", t, h)
	}
	if o.typ != t {
		d.violatef("handle %d is a %s, not a %s", h, o.typ, t)
		return nil, fmt.Errorf("gputest: handle %d is a %s, not a %s", h, o.typ, t)
	}
	return o, nil
}

// destroyLocked removes an object, reporting live dependants.
func (d *Driver) destroyLocked(t gpu.ObjectType, h gpu.Handle) {
	d.logLocked("Destroy:"+t.String(), nil, h)
	if h == gpu.Null {
		return
	}
	o, ok := d.objects[h]
	if !ok {
		d.violatef("double destroy of %s %d", t, h)
		return
	}
	if o.typ != t {
		d.violatef("destroy of %s %d as %s", o.typ, h, t)
	}
	for _, other := range d.objects {
		if other.owner == h {
			continue
		}
		for _, dep := range other.deps {
			if dep == h {
				d.violatef("%s %d destroyed before dependant %s %d", t, h, other.typ, other.handle)
			}
		}
	}
	for oh, other := range d.objects {
		if other.owner == h {
			delete(d.objects, oh)
		}
	}
	delete(d.objects, h)
}
