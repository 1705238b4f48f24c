// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package pack is an lz4 backed archive format for renderer assets, such as
// shader bytecode. Unlike tar the archive is not compressed as a whole:
// every file is its own lz4 frame and the header up front lists where each
// one starts, so any file can be read in place, concurrently, straight from
// a memory mapped archive.
//
// Layout: the magic "KAR\x00", the header length as a little endian uint64,
// the gob encoded Header, then the compressed files back to back. Index
// offsets are relative to the end of the header.
package pack

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"

	"github.com/pkg/errors"
)

// Archive errors
var (
	ErrFileFormat = errors.New("pack: corrupted or not a pack archive")
	ErrNotFound   = errors.New("pack: file not in archive")
)

// Magic starts every archive.
const Magic = "KAR\x00"

// Sizes of the fixed part of the archive
const (
	MagicLength      = len(Magic)
	HeaderSizeLength = 8
	preambleLength   = int64(MagicLength + HeaderSizeLength)
)

// IndexEntry is info for one file in the file index.
type IndexEntry struct {
	Name           string
	Offset         int64
	Size           int64
	CompressedSize int64
}

// Header is the file header of an archive.
type Header struct {
	Author      string
	DateCreated int64
	Version     int64
	Index       []IndexEntry
}

// Lookup finds the index entry of the named file.
func (h *Header) Lookup(name string) (IndexEntry, bool) {
	for _, e := range h.Index {
		if e.Name == name {
			return e, true
		}
	}
	return IndexEntry{}, false
}

func preamble(headerSize int) []byte {
	bts := make([]byte, preambleLength)
	copy(bts, Magic)
	binary.LittleEndian.PutUint64(bts[MagicLength:], uint64(headerSize))
	return bts
}

func gobEncode(data interface{}) ([]byte, error) {
	var encoded bytes.Buffer
	if err := gob.NewEncoder(&encoded).Encode(data); err != nil {
		return nil, err
	}
	return encoded.Bytes(), nil
}

func gobDecode(obj interface{}, bts []byte) error {
	return gob.NewDecoder(bytes.NewReader(bts)).Decode(obj)
}
