// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTarget(t *testing.T) {
	dir := filepath.FromSlash("/tmp/out")

	p, err := target(dir, "shaders/default_lit.frag.spv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "shaders", "default_lit.frag.spv"), p)

	for _, name := range []string{"../escape", "a/../../escape", ".."} {
		_, err := target(dir, name)
		assert.Error(t, err, name)
	}
}

func TestRoundTrip(t *testing.T) {
	src, err := ioutil.TempDir("", "korepack-src")
	require.NoError(t, err)
	defer os.RemoveAll(src)
	out, err := ioutil.TempDir("", "korepack-out")
	require.NoError(t, err)
	defer os.RemoveAll(out)

	files := map[string]string{
		"mesh_triangle.vert.spv":      "vertex",
		"nested/default_lit.frag.spv": "fragment",
	}
	for name, content := range files {
		path := filepath.Join(src, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, ioutil.WriteFile(path, []byte(content), 0644))
	}

	paths, names, err := collect(src)
	require.NoError(t, err)
	assert.Len(t, paths, 2)
	assert.ElementsMatch(t, []string{"mesh_triangle.vert.spv", "nested/default_lit.frag.spv"}, names)

	log, _ := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	archive := filepath.Join(out, "shaders.kar")
	require.NoError(t, compressFiles(log, src, archive))

	// refuses to overwrite
	assert.Error(t, compressFiles(log, src, archive))

	var listing bytes.Buffer
	require.NoError(t, listFiles(&listing, archive))
	assert.Contains(t, listing.String(), "nested/default_lit.frag.spv")

	extracted := filepath.Join(out, "extracted")
	require.NoError(t, extractFiles(log, archive, extracted))
	for name, content := range files {
		data, err := ioutil.ReadFile(filepath.Join(extracted, filepath.FromSlash(name)))
		require.NoError(t, err)
		assert.Equal(t, content, string(data))
	}
}
