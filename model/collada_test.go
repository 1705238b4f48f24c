// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model_test

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"testing"

	"github.com/devblok/korender/model"
	"github.com/devblok/korender/util/collada"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadGeometry = `<COLLADA><library_geometries><geometry id="Quad-mesh" name="Quad"><mesh>
<source id="Quad-mesh-positions"><float_array id="Quad-mesh-positions-array" count="9">0 0 0 1 0 0 0 1 0</float_array></source>
<source id="Quad-mesh-normals"><float_array id="Quad-mesh-normals-array" count="3">0 0 1</float_array></source>
<triangles count="1">
<input semantic="VERTEX" source="#Quad-mesh-vertices" offset="0"/>
<input semantic="NORMAL" source="#Quad-mesh-normals" offset="1"/>
<p>0 0 1 0 2 0</p>
</triangles></mesh></geometry></library_geometries></COLLADA>`

func TestImportColladaMesh(t *testing.T) {
	var doc collada.Collada
	require.NoError(t, xml.Unmarshal([]byte(quadGeometry), &doc))
	require.Len(t, doc.Geometries, 1)

	mesh, err := model.ImportColladaMesh(doc.Geometries[0].Mesh)
	require.NoError(t, err)
	require.Len(t, mesh.Vertices, 3)
	assert.Equal(t, glm.Vec3{1, 0, 0}, mesh.Vertices[1].Position)
	assert.Equal(t, glm.Vec3{0, 0, 1}, mesh.Vertices[2].Normal)
	assert.Equal(t, mesh.Vertices[2].Normal, mesh.Vertices[2].Color)
	assert.Empty(t, mesh.Indices)
}

func TestImportColladaMissingPositions(t *testing.T) {
	_, err := model.ImportColladaMesh(collada.Mesh{})
	assert.Error(t, err)
}

func TestLoadByExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quad.DAE")
	require.NoError(t, os.WriteFile(path, []byte(quadGeometry), 0644))

	m, err := model.Load(path)
	require.NoError(t, err)
	require.Len(t, m.Meshes, 1)
	assert.Len(t, m.Meshes[0].Vertices, 3)

	_, err = model.Load(filepath.Join(t.TempDir(), "missing.gltf"))
	assert.Error(t, err)
}
