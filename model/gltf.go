// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"path/filepath"
	"strings"

	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// Load reads a model file, picking the decoder by extension: .dae files are
// Collada, anything else glTF.
func Load(path string) (*Model, error) {
	if strings.EqualFold(filepath.Ext(path), ".dae") {
		return LoadCollada(path)
	}
	return LoadGLTF(path)
}

// LoadGLTF reads a .gltf or .glb file into meshes and texture pixels.
func LoadGLTF(path string) (*Model, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "gltf.Open(%s)", path)
	}
	return FromGLTF(doc, filepath.Dir(path))
}

// FromGLTF converts a parsed document. Starting from the first node of the
// default scene, nodes are walked children first and every node with a mesh
// becomes one Mesh, with all of its primitives merged. Relative image URIs
// are resolved against dir.
func FromGLTF(doc *gltf.Document, dir string) (*Model, error) {
	out := &Model{}

	var roots []int
	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
		roots = doc.Scenes[*doc.Scene].Nodes
	} else if len(doc.Scenes) > 0 {
		roots = doc.Scenes[0].Nodes
	}
	if len(roots) > 0 {
		if err := loadNode(doc, roots[0], out, map[int]bool{}); err != nil {
			return nil, err
		}
	}

	for i, tex := range doc.Textures {
		if tex.Source == nil || *tex.Source >= len(doc.Images) {
			continue
		}
		px, err := loadImage(doc, doc.Images[*tex.Source], dir)
		if err != nil {
			return nil, errors.Wrapf(err, "texture %d", i)
		}
		out.Textures = append(out.Textures, px)
	}
	return out, nil
}

func loadNode(doc *gltf.Document, idx int, out *Model, seen map[int]bool) error {
	if idx < 0 || idx >= len(doc.Nodes) || seen[idx] {
		return nil
	}
	seen[idx] = true
	node := doc.Nodes[idx]
	for _, child := range node.Children {
		if err := loadNode(doc, child, out, seen); err != nil {
			return err
		}
	}
	if node.Mesh == nil || *node.Mesh >= len(doc.Meshes) {
		return nil
	}

	mesh := &Mesh{}
	for pi, prim := range doc.Meshes[*node.Mesh].Primitives {
		if err := appendPrimitive(doc, prim, mesh); err != nil {
			return errors.Wrapf(err, "node %d primitive %d", idx, pi)
		}
	}
	out.Meshes = append(out.Meshes, mesh)
	return nil
}

// appendPrimitive adds the primitive's vertices to mesh and its indices,
// rebased onto where its vertices start.
func appendPrimitive(doc *gltf.Document, prim *gltf.Primitive, mesh *Mesh) error {
	posIdx, ok := prim.Attributes["POSITION"]
	if !ok {
		return errors.New("no POSITION attribute")
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return errors.Wrap(err, "modeler.ReadPosition()")
	}

	var normals [][3]float32
	if idx, ok := prim.Attributes["NORMAL"]; ok {
		normals, err = modeler.ReadNormal(doc, doc.Accessors[idx], nil)
		if err != nil {
			return errors.Wrap(err, "modeler.ReadNormal()")
		}
	}

	base := uint32(len(mesh.Vertices))
	for i, p := range positions {
		v := Vertex{Position: glm.Vec3{p[0], p[1], p[2]}}
		if i < len(normals) {
			v.Normal = glm.Vec3{normals[i][0], normals[i][1], normals[i][2]}
		}
		v.Color = v.Normal
		mesh.Vertices = append(mesh.Vertices, v)
	}

	if prim.Indices == nil {
		return nil
	}
	indices, err := modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
	if err != nil {
		return errors.Wrap(err, "modeler.ReadIndices()")
	}
	for _, i := range indices {
		mesh.Indices = append(mesh.Indices, base+i)
	}
	return nil
}

func loadImage(doc *gltf.Document, img *gltf.Image, dir string) (Pixels, error) {
	switch {
	case img.BufferView != nil:
		raw, err := modeler.ReadBufferView(doc, doc.BufferViews[*img.BufferView])
		if err != nil {
			return Pixels{}, errors.Wrap(err, "modeler.ReadBufferView()")
		}
		return DecodePixelsBytes(raw)
	case img.IsEmbeddedResource():
		raw, err := img.MarshalData()
		if err != nil {
			return Pixels{}, errors.Wrap(err, "embedded image")
		}
		return DecodePixelsBytes(raw)
	case img.URI != "":
		return LoadPixels(filepath.Join(dir, img.URI))
	}
	return Pixels{}, errors.New("image has no data")
}
