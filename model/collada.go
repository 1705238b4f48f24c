// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"encoding/xml"
	"fmt"
	"io/ioutil"
	"strings"

	"github.com/devblok/korender/util/collada"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// LoadCollada reads every geometry of a .dae file into a model.
func LoadCollada(path string) (*Model, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc collada.Collada
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "collada")
	}
	out := &Model{}
	for _, g := range doc.Geometries {
		mesh, err := ImportColladaMesh(g.Mesh)
		if err != nil {
			return nil, errors.Wrapf(err, "geometry %s", g.ID)
		}
		out.Meshes = append(out.Meshes, mesh)
	}
	return out, nil
}

// ImportColladaMesh converts one triangulated Collada mesh. The interleaved
// index list is expanded into unindexed vertices, normals double as colors.
func ImportColladaMesh(mesh collada.Mesh) (*Mesh, error) {
	positions, err := findSource(mesh.Source, "positions")
	if err != nil {
		return nil, err
	}
	normals, _ := findSource(mesh.Source, "normals")

	var (
		vertexOffset, normalOffset, stride uint
		hasNormals                         bool
	)
	for _, in := range mesh.Triangles.Inputs {
		switch in.Semantic {
		case "VERTEX":
			vertexOffset = in.Offset
		case "NORMAL":
			normalOffset = in.Offset
			hasNormals = len(normals.Floats.Data) > 0
		}
		if in.Offset+1 > stride {
			stride = in.Offset + 1
		}
	}
	if stride == 0 {
		return nil, errors.New("triangles without inputs")
	}

	idx := mesh.Triangles.Index
	out := &Mesh{}
	for v := 0; v+int(stride) <= len(idx); v += int(stride) {
		p := idx[v+int(vertexOffset)] * 3
		if p+2 >= len(positions.Floats.Data) {
			return nil, fmt.Errorf("position index %d out of range", p/3)
		}
		vert := Vertex{
			Position: glm.Vec3{
				positions.Floats.Data[p],
				positions.Floats.Data[p+1],
				positions.Floats.Data[p+2],
			},
			Color: glm.Vec3{1, 1, 0},
		}
		if hasNormals {
			n := idx[v+int(normalOffset)] * 3
			if n+2 < len(normals.Floats.Data) {
				vert.Normal = glm.Vec3{normals.Floats.Data[n], normals.Floats.Data[n+1], normals.Floats.Data[n+2]}
				vert.Color = vert.Normal
			}
		}
		out.Vertices = append(out.Vertices, vert)
	}
	return out, nil
}

func findSource(sources []collada.Source, dataType string) (collada.Source, error) {
	for _, s := range sources {
		if strings.HasSuffix(s.ID, fmt.Sprintf("-%s", dataType)) {
			return s, nil
		}
	}
	return collada.Source{}, errors.Errorf("source type %s not found", dataType)
}
