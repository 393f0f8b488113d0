// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pe

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
)

const (
	// TinyPESize is the smallest PE executable size possible on Windows XP (x32).
	TinyPESize = 97
)

// Errors surfaced while walking the low-level PE layout. This package keeps
// the teacher's sentinel-error idiom; the higher decompiler layers wrap
// these into the richer tagged error taxonomy.
var (
	// ErrInvalidPESize is returned when the file size is less than the
	// smallest PE file size possible.
	ErrInvalidPESize = errors.New("not a PE file, smaller than tiny PE")

	// ErrDOSMagicNotFound is returned when the file has no MZ signature.
	ErrDOSMagicNotFound = errors.New("DOS header magic not found")

	// ErrInvalidElfanewValue is returned when e_lfanew is larger than the
	// file size.
	ErrInvalidElfanewValue = errors.New("invalid e_lfanew value, probably not a PE file")

	// ErrImageNtSignatureNotFound is returned when the PE00 magic signature
	// is not found at e_lfanew.
	ErrImageNtSignatureNotFound = errors.New("not a valid PE signature, magic not found")

	// ErrImageNtOptionalHeaderMagicNotFound is returned when the optional
	// header magic is not PE32.
	ErrImageNtOptionalHeaderMagicNotFound = errors.New(
		"not a valid PE32 signature, optional header magic not found")

	// ErrUnsupportedMachine is returned when the machine type isn't x86.
	// VB5/6 never targets anything else.
	ErrUnsupportedMachine = errors.New("unsupported machine type, VB5/6 P-Code targets x86 only")

	// ErrOutsideBoundary is reported when attempting to read data beyond
	// the file image limits.
	ErrOutsideBoundary = errors.New("reading data outside boundary")
)

// structUnpack reads a packed little-endian structure out of the file's
// backing buffer at the given offset, with an overflow-checked boundary
// check. This is the unaligned-read primitive: binary.Read never assumes
// the host's native struct layout, so it reads VB5/6's packed on-disk
// structures correctly regardless of host alignment rules.
func (pe *File) structUnpack(iface interface{}, offset, size uint32) error {
	totalSize := offset + size

	// Integer overflow.
	if (totalSize > offset) != (size > 0) {
		return ErrOutsideBoundary
	}

	if offset >= pe.size || totalSize > pe.size {
		return ErrOutsideBoundary
	}

	buf := bytes.NewReader(pe.data[offset : offset+size])
	return binary.Read(buf, binary.LittleEndian, iface)
}

// ReadBytesAtOffset returns a byte slice of the given size from offset.
func (pe *File) ReadBytesAtOffset(offset, size uint32) ([]byte, error) {
	totalSize := offset + size

	if (totalSize > offset) != (size > 0) {
		return nil, ErrOutsideBoundary
	}

	if offset >= pe.size || totalSize > pe.size {
		return nil, ErrOutsideBoundary
	}

	return pe.data[offset : offset+size], nil
}

// ReadUint32 reads a little-endian uint32 from the given offset.
func (pe *File) ReadUint32(offset uint32) (uint32, error) {
	if offset > pe.size-4 {
		return 0, ErrOutsideBoundary
	}
	return binary.LittleEndian.Uint32(pe.data[offset:]), nil
}

// ReadUint16 reads a little-endian uint16 from the given offset.
func (pe *File) ReadUint16(offset uint32) (uint16, error) {
	if offset > pe.size-2 {
		return 0, ErrOutsideBoundary
	}
	return binary.LittleEndian.Uint16(pe.data[offset:]), nil
}

// GetStringFromData returns the NUL-terminated ASCII string starting at
// offset within data.
func GetStringFromData(offset uint32, data []byte) []byte {
	dataSize := uint32(len(data))
	if dataSize == 0 || offset > dataSize {
		return nil
	}

	end := offset
	for end < dataSize && data[end] != 0 {
		end++
	}
	return data[offset:end]
}

// getStringAtOffset returns a NUL-stripped string of the given size at
// offset.
func (pe *File) getStringAtOffset(offset, size uint32) (string, error) {
	if offset+size > pe.size {
		return "", ErrOutsideBoundary
	}
	str := string(pe.data[offset : offset+size])
	return strings.Replace(str, "\x00", "", -1), nil
}

// RVAToOffset translates a relative virtual address into a file offset
// using the section table. An RVA that no section covers is returned as a
// flat offset when it lies inside the file (data embedded in the headers),
// and as ErrOutsideBoundary otherwise. VB5/6 P-Code addresses are raw VAs
// that vb.File.vaToRVA rebases (saturating to zero) before calling here.
func (pe *File) RVAToOffset(rva uint32) (uint32, error) {
	for _, s := range pe.Sections {
		start := s.Header.VirtualAddress
		end := start + s.Header.VirtualSize
		if s.Header.VirtualSize == 0 {
			end = start + s.Header.SizeOfRawData
		}
		if rva >= start && rva < end {
			delta := rva - start
			return s.Header.PointerToRawData + delta, nil
		}
	}
	// Fall back to a flat offset for data embedded in the headers.
	if rva < pe.size {
		return rva, nil
	}
	return 0, ErrOutsideBoundary
}

// ReadBytesAtRVA reads size bytes at the given RVA, translating through the
// section table first. Used by the vb package and the CLI, which only ever
// address VB5/6 structures by RVA/VA, never by raw file offset.
func (pe *File) ReadBytesAtRVA(rva, size uint32) ([]byte, error) {
	offset, err := pe.RVAToOffset(rva)
	if err != nil {
		return nil, err
	}
	return pe.ReadBytesAtOffset(offset, size)
}

// StringAtRVA returns the NUL-terminated ASCII string at the given RVA, at
// most maxLen bytes long, or "" if the RVA is zero or unreadable.
func (pe *File) StringAtRVA(rva, maxLen uint32) string {
	if rva == 0 {
		return ""
	}
	offset, err := pe.RVAToOffset(rva)
	if err != nil {
		return ""
	}
	end := offset + maxLen
	if end > pe.size {
		end = pe.size
	}
	if offset >= end {
		return ""
	}
	return string(GetStringFromData(0, pe.data[offset:end]))
}

// ImageBase returns the optional header's preferred load address, used to
// rebase a VB5/6 raw VA into an RVA.
func (pe *File) ImageBase() uint32 {
	return pe.NtHeader.OptionalHeader.ImageBase
}

// Size returns the total size, in bytes, of the mapped/wrapped image.
func (pe *File) Size() uint32 {
	return pe.size
}
