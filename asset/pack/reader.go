// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pack

import (
	"bytes"
	"encoding/binary"
	"io"
	"io/ioutil"

	"github.com/pierrec/lz4"
	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"
)

// maxHeaderSize guards against allocating for a corrupted length.
const maxHeaderSize = 64 << 20

// Open opens the archive read from r. It fails with ErrFileFormat if r does
// not hold an archive.
func Open(r io.ReaderAt) (*Archive, error) {
	pre := make([]byte, preambleLength)
	if _, err := r.ReadAt(pre, 0); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrFileFormat
		}
		return nil, err
	}
	if !bytes.Equal(pre[:MagicLength], []byte(Magic)) {
		return nil, ErrFileFormat
	}

	headerSize := binary.LittleEndian.Uint64(pre[MagicLength:])
	if headerSize == 0 || headerSize > maxHeaderSize {
		return nil, ErrFileFormat
	}
	headerBytes := make([]byte, headerSize)
	if n, err := r.ReadAt(headerBytes, preambleLength); uint64(n) < headerSize {
		if err == nil || err == io.EOF {
			return nil, ErrFileFormat
		}
		return nil, err
	}

	ar := &Archive{
		reader: r,
		data:   preambleLength + int64(headerSize),
	}
	if err := gobDecode(&ar.header, headerBytes); err != nil {
		return nil, errors.Wrap(ErrFileFormat, err.Error())
	}
	return ar, nil
}

// Archive reads files of an archive. It is safe for concurrent use.
type Archive struct {
	reader io.ReaderAt
	header Header
	// data is where the first file starts
	data int64
}

// Header returns the archive header.
func (a *Archive) Header() Header {
	return a.header
}

// Names lists the archived files in archive order.
func (a *Archive) Names() []string {
	names := make([]string, len(a.header.Index))
	for i, e := range a.header.Index {
		names[i] = e.Name
	}
	return names
}

// Open returns a reader of the decompressed contents of the named file.
func (a *Archive) Open(name string) (io.Reader, error) {
	e, ok := a.header.Lookup(name)
	if !ok {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	section := io.NewSectionReader(a.reader, a.data+e.Offset, e.CompressedSize)
	return io.LimitReader(lz4.NewReader(section), e.Size), nil
}

// ReadAll returns the entire contents of the named file.
func (a *Archive) ReadAll(name string) ([]byte, error) {
	r, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "pack: read %s", name)
	}
	return data, nil
}

// File is an archive opened from a memory mapped file.
type File struct {
	*Archive
	mapped *mmap.ReaderAt
}

// OpenFile maps the archive at path into memory and opens it.
func OpenFile(path string) (*File, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "pack: map")
	}
	ar, err := Open(m)
	if err != nil {
		m.Close()
		return nil, err
	}
	return &File{Archive: ar, mapped: m}, nil
}

// Close unmaps the archive.
func (f *File) Close() error {
	return f.mapped.Close()
}
