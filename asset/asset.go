// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package asset locates precompiled shader bytecode and turns it into shader
// modules. Bytecode may come from a directory, a korender pack archive or a
// packr box compiled into the binary.
package asset

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/devblok/korender/asset/pack"
	"github.com/devblok/korender/gpu"
	"github.com/gobuffalo/packd"
	"github.com/gobuffalo/packr"
	"github.com/pkg/errors"
)

// Extension of shader bytecode files
const Extension = ".spv"

var (
	// ErrShaderNotFound is returned when a source has no bytecode under a name.
	ErrShaderNotFound = errors.New("shader not found")

	// ErrMisaligned is returned for bytecode that is not a whole number of words.
	ErrMisaligned = errors.New("shader bytecode is not word aligned")
)

// Source serves shader bytecode by name. Names carry the stage suffix
// ("default_lit.frag") but not the bytecode extension.
type Source interface {
	Open(name string) ([]byte, error)
	List() ([]string, error)
}

// LoadShader reads name from src and creates a shader module from it.
func LoadShader(dev gpu.Device, src Source, name string) (gpu.ShaderModule, error) {
	code, err := src.Open(name)
	if err != nil {
		return 0, errors.Wrapf(err, "asset: load %s", name)
	}
	if len(code) == 0 || len(code)%4 != 0 {
		return 0, errors.Wrapf(ErrMisaligned, "asset: load %s: %d bytes", name, len(code))
	}
	module, err := dev.CreateShaderModule(code)
	if err != nil {
		return 0, errors.Wrapf(err, "asset: load %s", name)
	}
	return module, nil
}

// Close releases src if it holds anything open.
func Close(src Source) error {
	if c, ok := src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// DirSource reads <Dir>/<name>.spv files.
type DirSource struct {
	Dir string
}

// Open implements Source
func (s DirSource) Open(name string) ([]byte, error) {
	data, err := ioutil.ReadFile(filepath.Join(s.Dir, name+Extension))
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrShaderNotFound, "%s in %s", name, s.Dir)
	}
	return data, err
}

// List implements Source
func (s DirSource) List() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.Dir, "*"+Extension))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(m), Extension))
	}
	sort.Strings(names)
	return names, nil
}

// PackSource serves bytecode out of a pack archive.
type PackSource struct {
	Archive *pack.Archive

	closer io.Closer
}

// OpenPack opens the archive at path as a Source. Close it when done.
func OpenPack(path string) (*PackSource, error) {
	f, err := pack.OpenFile(path)
	if err != nil {
		return nil, err
	}
	return &PackSource{Archive: f.Archive, closer: f}, nil
}

// Open implements Source
func (s *PackSource) Open(name string) ([]byte, error) {
	data, err := s.Archive.ReadAll(name + Extension)
	if errors.Cause(err) == pack.ErrNotFound {
		return nil, errors.Wrap(ErrShaderNotFound, name)
	}
	return data, err
}

// List implements Source
func (s *PackSource) List() ([]string, error) {
	var names []string
	for _, n := range s.Archive.Names() {
		if strings.HasSuffix(n, Extension) {
			names = append(names, strings.TrimSuffix(n, Extension))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Close releases the mapped archive, if OpenPack opened it.
func (s *PackSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// BoxSource serves bytecode from a packr box.
type BoxSource struct {
	Box packr.Box
}

// Open implements Source
func (s BoxSource) Open(name string) ([]byte, error) {
	data, err := s.Box.Find(name + Extension)
	if err != nil {
		return nil, errors.Wrapf(ErrShaderNotFound, "%s: %v", name, err)
	}
	return data, nil
}

// List implements Source
func (s BoxSource) List() ([]string, error) {
	var names []string
	err := s.Box.Walk(func(path string, _ packd.File) error {
		if strings.HasSuffix(path, Extension) {
			names = append(names, strings.TrimSuffix(filepath.ToSlash(path), Extension))
		}
		return nil
	})
	sort.Strings(names)
	return names, err
}

var (
	boxesMu sync.RWMutex
	boxes   = make(map[string]packr.Box)
)

// RegisterBox makes a box reachable from ParseSource as "box:<name>".
// packr resolves box paths relative to the file calling packr.NewBox, so
// boxes are created by the binaries and registered here.
func RegisterBox(name string, box packr.Box) {
	boxesMu.Lock()
	defer boxesMu.Unlock()
	boxes[name] = box
}

// ParseSource resolves a source URI:
//
//	dir:<path>   a directory of .spv files
//	pack:<path>  a pack archive
//	box:<name>   a box added with RegisterBox
//
// A URI without a scheme is a directory.
func ParseSource(uri string) (Source, error) {
	scheme, rest := "dir", uri
	if i := strings.Index(uri, ":"); i > 1 {
		scheme, rest = uri[:i], uri[i+1:]
	}
	switch scheme {
	case "dir":
		return DirSource{Dir: rest}, nil
	case "pack":
		return OpenPack(rest)
	case "box":
		boxesMu.RLock()
		box, ok := boxes[rest]
		boxesMu.RUnlock()
		if !ok {
			return nil, errors.Errorf("asset: no box named %q", rest)
		}
		return BoxSource{Box: box}, nil
	}
	return nil, errors.Errorf("asset: unknown source scheme %q", scheme)
}
