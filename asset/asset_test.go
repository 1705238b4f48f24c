// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package asset_test

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/devblok/korender/asset"
	"github.com/devblok/korender/asset/pack"
	"github.com/devblok/korender/gpu"
	"github.com/devblok/korender/gpu/gputest"
	"github.com/gobuffalo/packr"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shaderNames = []string{"broken.frag", "default_lit.frag", "mesh_triangle.vert"}

func device(t *testing.T) (*gputest.Driver, gpu.Device) {
	drv := gputest.NewDriver()
	inst, err := drv.CreateInstance(gpu.InstanceDescriptor{})
	require.NoError(t, err)
	dev, err := inst.CreateDevice(1, gpu.DeviceDescriptor{})
	require.NoError(t, err)
	return drv, dev
}

func packed(t *testing.T, dir string) string {
	b, err := pack.NewBuilder(pack.Header{Author: "devblok", DateCreated: time.Now().Unix(), Version: 1})
	require.NoError(t, err)
	defer b.Close()
	for _, name := range shaderNames {
		f, err := os.Open(filepath.Join("testdata", name+asset.Extension))
		require.NoError(t, err)
		require.NoError(t, b.Add(name+asset.Extension, f))
		f.Close()
	}
	require.NoError(t, b.Add("readme.txt", bytes.NewReader([]byte("not a shader"))))

	path := filepath.Join(dir, "shaders.kar")
	out, err := os.Create(path)
	require.NoError(t, err)
	_, err = b.WriteTo(out)
	require.NoError(t, err)
	require.NoError(t, out.Close())
	return path
}

func sources(t *testing.T) map[string]asset.Source {
	dir, err := ioutil.TempDir("", "asset")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	ps, err := asset.OpenPack(packed(t, dir))
	require.NoError(t, err)
	t.Cleanup(func() { asset.Close(ps) })

	return map[string]asset.Source{
		"dir":  asset.DirSource{Dir: "testdata"},
		"pack": ps,
		"box":  asset.BoxSource{Box: packr.NewBox("./testdata")},
	}
}

func TestSources(t *testing.T) {
	expected, err := ioutil.ReadFile(filepath.Join("testdata", "default_lit.frag.spv"))
	require.NoError(t, err)

	for name, src := range sources(t) {
		t.Run(name, func(t *testing.T) {
			names, err := src.List()
			require.NoError(t, err)
			assert.Equal(t, shaderNames, names)

			data, err := src.Open("default_lit.frag")
			require.NoError(t, err)
			assert.Equal(t, expected, data)

			_, err = src.Open("missing.vert")
			assert.Equal(t, asset.ErrShaderNotFound, errors.Cause(err))
		})
	}
}

func TestLoadShader(t *testing.T) {
	drv, dev := device(t)
	for name, src := range sources(t) {
		t.Run(name, func(t *testing.T) {
			module, err := asset.LoadShader(dev, src, "mesh_triangle.vert")
			require.NoError(t, err)
			assert.NotZero(t, module)
			dev.Destroy(gpu.ObjectShaderModule, gpu.Handle(module))

			_, err = asset.LoadShader(dev, src, "broken.frag")
			assert.Equal(t, asset.ErrMisaligned, errors.Cause(err))

			_, err = asset.LoadShader(dev, src, "missing.frag")
			assert.Equal(t, asset.ErrShaderNotFound, errors.Cause(err))
		})
	}
	assert.Empty(t, drv.Violations())
}

func TestParseSource(t *testing.T) {
	src, err := asset.ParseSource("testdata")
	require.NoError(t, err)
	assert.Equal(t, asset.DirSource{Dir: "testdata"}, src)

	src, err = asset.ParseSource("dir:testdata")
	require.NoError(t, err)
	assert.Equal(t, asset.DirSource{Dir: "testdata"}, src)

	asset.RegisterBox("shaders", packr.NewBox("./testdata"))
	src, err = asset.ParseSource("box:shaders")
	require.NoError(t, err)
	assert.IsType(t, asset.BoxSource{}, src)

	_, err = asset.ParseSource("box:nothing")
	assert.Error(t, err)

	_, err = asset.ParseSource("ftp:somewhere")
	assert.Error(t, err)

	_, err = asset.ParseSource("pack:testdata/missing.kar")
	assert.Error(t, err)
}
