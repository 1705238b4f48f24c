// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package teardown keeps track of every GPU object the renderer creates, so
// they can be destroyed in the reverse order of their creation. Entries are
// plain data (object kind + handle), which makes the registry inspectable
// without a GPU.
package teardown

import (
	"sync"

	"github.com/devblok/korender/gpu"
	"github.com/sirupsen/logrus"
)

// Releaser is an owner entry that releases itself, such as the instance.
type Releaser interface {
	Release()
}

// Entry is one registered cleanup action.
type Entry struct {
	Type   gpu.ObjectType
	Handle gpu.Handle

	// Label and Owner are set for entries registered with PushOwner.
	Label string
	Owner Releaser
}

func (e Entry) String() string {
	if e.Owner != nil {
		return e.Label
	}
	return e.Type.String()
}

// Registry is an ordered stack of cleanup actions.
type Registry struct {
	log logrus.FieldLogger

	mutex   sync.Mutex
	entries []Entry
}

// New creates an empty Registry. A nil logger means the standard logger.
func New(log logrus.FieldLogger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{log: log}
}

// Push registers the destruction of a typed object. Null handles are ignored.
func (r *Registry) Push(t gpu.ObjectType, h gpu.Handle) {
	if h == gpu.Null {
		return
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.entries = append(r.entries, Entry{Type: t, Handle: h})
}

// PushOwner registers an object that knows how to release itself.
func (r *Registry) PushOwner(label string, owner Releaser) {
	if owner == nil {
		return
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.entries = append(r.entries, Entry{Label: label, Owner: owner})
}

// Replace swaps the handle of a registered entry in place, keeping its
// position. It reports false if old was never registered.
func (r *Registry) Replace(old, new gpu.Handle) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for i := range r.entries {
		if r.entries[i].Owner == nil && r.entries[i].Handle == old {
			r.entries[i].Handle = new
			return true
		}
	}
	return false
}

// Forget drops the entry for h without destroying anything. Used when an
// object is destroyed early by its owner.
func (r *Registry) Forget(h gpu.Handle) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].Owner == nil && r.entries[i].Handle == h {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Entries returns a copy of the entries in registration order.
func (r *Registry) Entries() []Entry {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Len returns the number of pending entries.
func (r *Registry) Len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.entries)
}

// Flush runs every entry from the most recently registered to the first one
// and empties the registry. Typed entries go to d. Flushing an empty registry
// does nothing.
//
// The caller must make sure the GPU no longer uses any of the objects.
func (r *Registry) Flush(d gpu.Destroyer) {
	r.mutex.Lock()
	entries := r.entries
	r.entries = nil
	r.mutex.Unlock()

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		r.log.WithField("object", e.String()).Debug("teardown")
		if e.Owner != nil {
			e.Owner.Release()
			continue
		}
		d.Destroy(e.Type, e.Handle)
	}
}

// Split routes instance level objects to one destroyer and the rest to
// another. The device itself is instance level.
type Split struct {
	Instance gpu.Destroyer
	Device   gpu.Destroyer
}

// Destroy implements gpu.Destroyer
func (s Split) Destroy(t gpu.ObjectType, h gpu.Handle) {
	if t.InstanceLevel() {
		if s.Instance != nil {
			s.Instance.Destroy(t, h)
		}
		return
	}
	if s.Device != nil {
		s.Device.Destroy(t, h)
	}
}
