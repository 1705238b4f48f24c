// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package scene holds what gets drawn: named materials and meshes, and the
// render objects referring to them.
package scene

import (
	"sort"

	"github.com/devblok/korender/gpu"
	"github.com/devblok/korender/model"
	glm "github.com/go-gl/mathgl/mgl32"
)

// Material is a pipeline and the layout it was built with. The scene does
// not own either.
type Material struct {
	Name     string
	Pipeline gpu.Pipeline
	Layout   gpu.PipelineLayout
}

// RenderObject is one drawn instance of a mesh. Mesh and Material must
// outlive it.
type RenderObject struct {
	Mesh      *model.Mesh
	Material  *Material
	Transform glm.Mat4
}

// Scene is a set of named materials, named meshes and render objects.
type Scene struct {
	materials map[string]*Material
	meshes    map[string]*model.Mesh
	// material names in registration order
	order []string

	Objects []RenderObject
}

// New returns an empty scene.
func New() *Scene {
	return &Scene{
		materials: make(map[string]*Material),
		meshes:    make(map[string]*model.Mesh),
	}
}

// AddMaterial registers a material under name, replacing any previous one.
func (s *Scene) AddMaterial(name string, pipeline gpu.Pipeline, layout gpu.PipelineLayout) *Material {
	if _, ok := s.materials[name]; !ok {
		s.order = append(s.order, name)
	}
	m := &Material{Name: name, Pipeline: pipeline, Layout: layout}
	s.materials[name] = m
	return m
}

// Material looks up a material by name.
func (s *Scene) Material(name string) (*Material, bool) {
	m, ok := s.materials[name]
	return m, ok
}

// Materials returns the registered materials in registration order.
func (s *Scene) Materials() []*Material {
	out := make([]*Material, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.materials[name])
	}
	return out
}

// AddMesh registers a mesh under name.
func (s *Scene) AddMesh(name string, mesh *model.Mesh) {
	s.meshes[name] = mesh
}

// Mesh looks up a mesh by name.
func (s *Scene) Mesh(name string) (*model.Mesh, bool) {
	m, ok := s.meshes[name]
	return m, ok
}

// Add appends render objects.
func (s *Scene) Add(objs ...RenderObject) {
	s.Objects = append(s.Objects, objs...)
}

// Sort orders the objects by material, then by mesh, so consecutive objects
// share as much bound state as possible. Objects keep their relative order
// otherwise.
func (s *Scene) Sort() {
	rank := make(map[*Material]int, len(s.order))
	for i, name := range s.order {
		rank[s.materials[name]] = i
	}
	meshRank := make(map[*model.Mesh]int)
	for _, o := range s.Objects {
		if _, ok := meshRank[o.Mesh]; !ok {
			meshRank[o.Mesh] = len(meshRank)
		}
	}
	sort.SliceStable(s.Objects, func(i, j int) bool {
		a, b := s.Objects[i], s.Objects[j]
		if rank[a.Material] != rank[b.Material] {
			return rank[a.Material] < rank[b.Material]
		}
		return meshRank[a.Mesh] < meshRank[b.Mesh]
	})
}

// ObjectData returns the per object storage records of objs, in order.
func ObjectData(objs []RenderObject) []model.GPUObjectData {
	data := make([]model.GPUObjectData, len(objs))
	for i, o := range objs {
		data[i].Model = o.Transform
	}
	return data
}
