// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pe

import "encoding/binary"

// buildMinimalPE assembles a tiny but well-formed PE32 image in memory:
// DOS header, NT header (PE32/x86), one section, and optionally an import
// directory. There are no sample binaries in this module (unlike the
// teacher, which ships test/putty.exe); every pe package test builds its
// own synthetic buffer instead.
type peOptions struct {
	sectionName   string
	characteristics uint16
	withImports     bool
	importDLLName   string
}

func buildMinimalPE(opts peOptions) []byte {
	const (
		dosHeaderSize  = 64
		fileHeaderSize = 20
		// binary.Size(ImageOptionalHeader32{}): 96 bytes of scalar fields
		// followed by a 16-entry, 8-byte data directory array (128 bytes).
		optHeaderSize  = 224
		sectionHdrSize = 40
	)

	if opts.sectionName == "" {
		opts.sectionName = ".text"
	}

	sectionDataSize := uint32(0x200)
	importDirRVA := uint32(0)
	importDirSize := uint32(0)
	var importDescBytes []byte
	var dllNameBytes []byte

	if opts.withImports {
		name := opts.importDLLName
		if name == "" {
			name = "MSVBVM60.DLL"
		}
		dllNameBytes = append([]byte(name), 0)
	}

	lfanew := uint32(dosHeaderSize)
	ntHeaderOffset := lfanew
	sectionTableOffset := ntHeaderOffset + 4 + fileHeaderSize + uint32(optHeaderSize)
	sectionDataOffset := alignUp(sectionTableOffset+sectionHdrSize, 0x200)

	if opts.withImports {
		importDirRVA = sectionDataOffset // RVA == offset, single flat section
		// one descriptor (20 bytes) + terminator (20 bytes) + dll name.
		importDescBytes = make([]byte, 40)
		dllNameRVA := importDirRVA + 40
		binary.LittleEndian.PutUint32(importDescBytes[12:], dllNameRVA)
		importDirSize = 40 + uint32(len(dllNameBytes))
		sectionDataSize = importDirSize
	}

	total := sectionDataOffset + sectionDataSize
	buf := make([]byte, total)

	// DOS header.
	binary.LittleEndian.PutUint16(buf[0:], ImageDOSSignature)
	binary.LittleEndian.PutUint32(buf[0x3C:], lfanew)

	// NT signature + file header.
	off := ntHeaderOffset
	binary.LittleEndian.PutUint32(buf[off:], ImageNTSignature)
	off += 4
	binary.LittleEndian.PutUint16(buf[off:], ImageFileMachineI386) // Machine
	binary.LittleEndian.PutUint16(buf[off+2:], 1)                  // NumberOfSections
	binary.LittleEndian.PutUint16(buf[off+16:], uint16(optHeaderSize))
	characteristics := opts.characteristics
	if characteristics == 0 {
		characteristics = ImageFileExecutableImage
	}
	binary.LittleEndian.PutUint16(buf[off+18:], characteristics)

	// Optional header.
	optOff := ntHeaderOffset + 4 + fileHeaderSize
	binary.LittleEndian.PutUint16(buf[optOff:], ImageNtOptionalHeader32Magic)
	binary.LittleEndian.PutUint32(buf[optOff+28:], 0x400000) // ImageBase
	binary.LittleEndian.PutUint32(buf[optOff+32:], 0x1000)   // SectionAlignment
	binary.LittleEndian.PutUint32(buf[optOff+36:], 0x200)    // FileAlignment
	dataDirOff := optOff + 96
	if opts.withImports {
		binary.LittleEndian.PutUint32(buf[dataDirOff+8:], importDirRVA) // import dir entry
		binary.LittleEndian.PutUint32(buf[dataDirOff+12:], importDirSize)
	}

	// Section header.
	secOff := sectionTableOffset
	name := []byte(opts.sectionName)
	if len(name) > 8 {
		name = name[:8]
	}
	copy(buf[secOff:], name)
	binary.LittleEndian.PutUint32(buf[secOff+8:], sectionDataSize)    // VirtualSize
	binary.LittleEndian.PutUint32(buf[secOff+12:], sectionDataOffset) // VirtualAddress (RVA==offset)
	binary.LittleEndian.PutUint32(buf[secOff+16:], sectionDataSize)   // SizeOfRawData
	binary.LittleEndian.PutUint32(buf[secOff+20:], sectionDataOffset) // PointerToRawData
	binary.LittleEndian.PutUint32(buf[secOff+36:], ImageScnMemExecute|ImageScnCntCode)

	if opts.withImports {
		copy(buf[sectionDataOffset:], importDescBytes)
		copy(buf[sectionDataOffset+40:], dllNameBytes)
	}

	return buf
}

func alignUp(v, align uint32) uint32 {
	if v%align == 0 {
		return v
	}
	return (v/align + 1) * align
}
