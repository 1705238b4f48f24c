// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vulkan implements the gpu contract on top of vulkan-go. Native
// objects never leave the package, callers only see gpu handles which are
// resolved through a per instance object table.
package vulkan

import (
	"math"
	"sync"
	"time"
	"unsafe"

	"github.com/devblok/korender/gpu"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

// Validation support enabled when the instance is created in debug mode.
const (
	ValidationLayer      = "VK_LAYER_KHRONOS_validation"
	DebugReportExtension = "VK_EXT_debug_report"
)

// Driver loads the Vulkan API. The loader entry point is either supplied by
// the windowing library or found by vulkan-go itself.
type Driver struct {
	procAddr unsafe.Pointer
	log      logrus.FieldLogger
}

// NewDriver returns a driver using procAddr as vkGetInstanceProcAddr. A nil
// procAddr makes vulkan-go look up the system loader.
func NewDriver(procAddr unsafe.Pointer, log logrus.FieldLogger) *Driver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Driver{procAddr: procAddr, log: log}
}

// CreateInstance implements gpu.Driver
func (d *Driver) CreateInstance(desc gpu.InstanceDescriptor) (gpu.Instance, error) {
	if d.procAddr == nil {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return nil, errors.New("vk.SetDefaultGetInstanceProcAddr(): " + err.Error())
		}
	} else {
		vk.SetGetInstanceProcAddr(d.procAddr)
	}
	if err := vk.Init(); err != nil {
		return nil, errors.New("vk.Init(): " + err.Error())
	}
	return newInstance(desc, d.log)
}

// Result converts a Vulkan result code into an error. Codes the renderer
// reacts to map onto the gpu sentinels.
func Result(r vk.Result) error {
	switch r {
	case vk.Success:
		return nil
	case vk.Timeout, vk.NotReady:
		return gpu.ErrTimeout
	case vk.Suboptimal:
		return gpu.ErrSuboptimal
	case vk.ErrorOutOfDate:
		return gpu.ErrOutOfDate
	case vk.ErrorDeviceLost:
		return gpu.ErrDeviceLost
	}
	if err := vk.Error(r); err != nil {
		return err
	}
	return nil
}

// check wraps a failed call with the name of the Vulkan function.
func check(call string, r vk.Result) error {
	if err := Result(r); err != nil {
		return errors.Wrap(err, call+"()")
	}
	return nil
}

// timeout converts a duration into the nanosecond count Vulkan takes, a
// negative duration waits forever.
func timeout(t time.Duration) uint64 {
	if t < 0 {
		return math.MaxUint64
	}
	return uint64(t)
}

type entry struct {
	t gpu.ObjectType
	v interface{}
}

// objects maps gpu handles onto native objects.
type objects struct {
	mu      sync.Mutex
	next    gpu.Handle
	entries map[gpu.Handle]entry
}

func newObjects() *objects {
	return &objects{entries: make(map[gpu.Handle]entry)}
}

func (o *objects) add(t gpu.ObjectType, v interface{}) gpu.Handle {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next++
	o.entries[o.next] = entry{t: t, v: v}
	return o.next
}

func (o *objects) get(t gpu.ObjectType, h gpu.Handle) (interface{}, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.entries[h]
	if !ok || e.t != t {
		return nil, false
	}
	return e.v, true
}

func (o *objects) remove(t gpu.ObjectType, h gpu.Handle) (interface{}, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.entries[h]
	if !ok || e.t != t {
		return nil, false
	}
	delete(o.entries, h)
	return e.v, true
}

func (o *objects) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}
