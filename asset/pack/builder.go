// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pack

import (
	"io"
	"io/ioutil"
	"os"
	"sync"

	"github.com/pierrec/lz4"
	"github.com/pkg/errors"
)

// NewBuilder creates a new Builder. The Index of header is filled in by
// WriteTo.
func NewBuilder(header Header) (*Builder, error) {
	temp, err := ioutil.TempDir("", "korepack")
	if err != nil {
		return nil, errors.Wrap(err, "pack: temporary directory")
	}
	header.Index = nil
	return &Builder{
		tempDir: temp,
		header:  header,
	}, nil
}

type tempFile struct {
	// Name is the name the file is archived under
	Name string
	// Path of the compressed frame in the temporary directory
	Path string
	// Size uncompressed
	Size int64
	// Compressed is the size of the lz4 frame
	Compressed int64
}

// Builder creates archives. Archives cannot be appended to: every file is
// compressed into a temporary directory by Add, then WriteTo bundles them
// together.
type Builder struct {
	tempDir string
	header  Header

	mutex sync.Mutex
	files []tempFile
}

// Add compresses the contents of r and stores them under name. It blocks
// until compression finishes and is safe to call from several goroutines.
func (b *Builder) Add(name string, r io.Reader) error {
	f, err := ioutil.TempFile(b.tempDir, "frame")
	if err != nil {
		return errors.Wrap(err, "pack: temporary file")
	}
	defer f.Close()

	writer := lz4.NewWriter(f)
	written, err := io.Copy(writer, r)
	if err != nil {
		return errors.Wrapf(err, "pack: compress %s", name)
	}
	if err := writer.Close(); err != nil {
		return errors.Wrapf(err, "pack: compress %s", name)
	}
	info, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, "pack: temporary file")
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()
	for _, e := range b.files {
		if e.Name == name {
			os.Remove(f.Name())
			return errors.Errorf("pack: %s added twice", name)
		}
	}
	b.files = append(b.files, tempFile{
		Name:       name,
		Path:       f.Name(),
		Size:       written,
		Compressed: info.Size(),
	})
	return nil
}

// Len is the number of files added so far.
func (b *Builder) Len() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.files)
}

// WriteTo writes the archive of every file added so far to w.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	header := b.header
	var offset int64
	for _, f := range b.files {
		header.Index = append(header.Index, IndexEntry{
			Name:           f.Name,
			Offset:         offset,
			Size:           f.Size,
			CompressedSize: f.Compressed,
		})
		offset += f.Compressed
	}

	rawHeader, err := gobEncode(header)
	if err != nil {
		return 0, errors.Wrap(err, "pack: encode header")
	}

	var total int64
	for _, part := range [][]byte{preamble(len(rawHeader)), rawHeader} {
		n, err := w.Write(part)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	for _, f := range b.files {
		n, err := copyFile(w, f.Path)
		total += n
		if err != nil {
			return total, errors.Wrapf(err, "pack: write %s", f.Name)
		}
	}
	return total, nil
}

func copyFile(w io.Writer, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(w, f)
}

// Close removes the temporary files.
func (b *Builder) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.files = nil
	return os.RemoveAll(b.tempDir)
}
