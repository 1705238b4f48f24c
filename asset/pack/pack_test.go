// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pack_test

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/devblok/korender/asset/pack"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testString1 = "idunvovkjnreovmegihjbrqlkmfrjnb"
	testString2 = "idunvovkjnreovmsdvwrvnervnreegihjbrqlkmfrjnb"
)

func build(t *testing.T, files map[string]string) []byte {
	builder, err := pack.NewBuilder(pack.Header{
		Author:      "devblok",
		DateCreated: time.Now().Unix(),
		Version:     1,
	})
	require.NoError(t, err)
	defer builder.Close()

	for name, data := range files {
		require.NoError(t, builder.Add(name, strings.NewReader(data)))
	}
	buf := &bytes.Buffer{}
	written, err := builder.WriteTo(buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), written)
	return buf.Bytes()
}

func TestCreateAndReadAll(t *testing.T) {
	raw := build(t, map[string]string{"test": testString1, "test2": testString2})

	ar, err := pack.Open(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "devblok", ar.Header().Author)
	assert.ElementsMatch(t, []string{"test", "test2"}, ar.Names())

	data, err := ar.ReadAll("test")
	require.NoError(t, err)
	assert.Equal(t, testString1, string(data))

	data, err = ar.ReadAll("test2")
	require.NoError(t, err)
	assert.Equal(t, testString2, string(data))
}

func TestOpenReader(t *testing.T) {
	raw := build(t, map[string]string{"test": testString1})
	ar, err := pack.Open(bytes.NewReader(raw))
	require.NoError(t, err)

	r, err := ar.Open("test")
	require.NoError(t, err)
	data, err := ioutil.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, testString1, string(data))
}

func TestMissingFile(t *testing.T) {
	ar, err := pack.Open(bytes.NewReader(build(t, nil)))
	require.NoError(t, err)
	_, err = ar.ReadAll("nope")
	assert.Equal(t, pack.ErrNotFound, errors.Cause(err))
}

func TestBadMagic(t *testing.T) {
	raw := build(t, map[string]string{"test": testString1})
	raw[0] = 'T'
	_, err := pack.Open(bytes.NewReader(raw))
	assert.Equal(t, pack.ErrFileFormat, errors.Cause(err))

	_, err = pack.Open(bytes.NewReader([]byte("KA")))
	assert.Equal(t, pack.ErrFileFormat, errors.Cause(err))
}

func TestTruncatedHeader(t *testing.T) {
	raw := build(t, map[string]string{"test": testString1})
	_, err := pack.Open(bytes.NewReader(raw[:pack.MagicLength+pack.HeaderSizeLength+2]))
	assert.Equal(t, pack.ErrFileFormat, errors.Cause(err))
}

func TestConcurrentAdd(t *testing.T) {
	builder, err := pack.NewBuilder(pack.Header{Version: 1})
	require.NoError(t, err)
	defer builder.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := filepath.Join("shaders", string(rune('a'+i)))
			assert.NoError(t, builder.Add(name, strings.NewReader(strings.Repeat(name, 100))))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8, builder.Len())
	assert.Error(t, builder.Add(filepath.Join("shaders", "a"), strings.NewReader("again")))
}

func TestOpenFile(t *testing.T) {
	raw := build(t, map[string]string{"mesh_triangle.vert.spv": testString1})
	dir, err := ioutil.TempDir("", "packtest")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "shaders.kar")
	require.NoError(t, ioutil.WriteFile(path, raw, 0644))

	f, err := pack.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	data, err := f.ReadAll("mesh_triangle.vert.spv")
	require.NoError(t, err)
	assert.Equal(t, testString1, string(data))
}

func BenchmarkReadAll(b *testing.B) {
	builder, err := pack.NewBuilder(pack.Header{})
	if err != nil {
		b.Fatal(err)
	}
	defer builder.Close()
	builder.Add("big", strings.NewReader(strings.Repeat(testString2, 4096)))
	buf := &bytes.Buffer{}
	builder.WriteTo(buf)

	ar, err := pack.Open(bytes.NewReader(buf.Bytes()))
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ar.ReadAll("big"); err != nil {
			b.Fatal(err)
		}
	}
}
