// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vb

import (
	"encoding/binary"

	pe "github.com/vbdecomp/vbdecompiler"
)

const testImageBase = uint32(0x400000)

// vbImageOptions configures buildVBImage's synthetic layout.
type vbImageOptions struct {
	noMagic      bool   // omit the VB5! signature entirely
	nativeCode   bool   // set ProjectInfo.NativeCode != 0
	objectName   string // defaults to "Module1"
	methodName   string // defaults to "Main"
	pcode        []byte // defaults to a tiny synthetic P-Code stream
	hasOptional  bool   // set the 0x80 object-type bit + optional info
	projectName  string // VBHeader.ProjectName string, "" to omit
}

// buildVBImage assembles a minimal PE32 image with a full VB5/6 metadata
// chain embedded in a single flat section (RVA == section-local offset),
// the way buildMinimalPE in the pe package does for plain PE structures.
// There are no VB5/6 sample binaries in this module; every vb package test
// builds its own synthetic image instead.
func buildVBImage(opts vbImageOptions) *pe.File {
	if opts.objectName == "" {
		opts.objectName = "Module1"
	}
	if opts.methodName == "" {
		opts.methodName = "Main"
	}
	if opts.pcode == nil {
		opts.pcode = []byte{0x5E, 0x01, 0x00, 0x14} // LitI2 1; unlisted 0x00; ExitProc
	}

	headerSize := uint32(binary.Size(Header{}))
	projectInfoSize := uint32(binary.Size(ProjectInfo{}))
	objTableSize := uint32(binary.Size(ObjectTableHeader{}))
	descSize := uint32(binary.Size(PublicObjectDescriptor{}))
	objInfoSize := uint32(binary.Size(ObjectInfo{}))
	optInfoSize := uint32(binary.Size(OptionalObjectInfo{}))
	methodNameSize := uint32(binary.Size(MethodName{}))
	procDescSize := uint32(binary.Size(ProcDescInfo{}))

	// Lay out every sub-structure back to back within the section. The
	// section sits at RVA 0, so each section-local offset is also its RVA.
	var off uint32
	headerOff := off
	off += headerSize
	projectInfoOff := off
	off += projectInfoSize
	objTableOff := off
	off += objTableSize
	descOff := off
	off += descSize
	objInfoOff := off
	off += objInfoSize
	var optInfoOff uint32
	if opts.hasOptional {
		optInfoOff = off
		off += optInfoSize
	}
	methodArrayOff := off
	off += methodNameSize
	objNameOff := off
	objNameBytes := append([]byte(opts.objectName), 0)
	off += uint32(len(objNameBytes))
	methodNameOff := off
	methodNameBytes := append([]byte(opts.methodName), 0)
	off += uint32(len(methodNameBytes))
	var projectNameOff uint32
	var projectNameBytes []byte
	if opts.projectName != "" {
		projectNameOff = off
		projectNameBytes = append([]byte(opts.projectName), 0)
		off += uint32(len(projectNameBytes))
	}
	procDescOff := off
	off += procDescSize
	pcodeOff := off
	off += uint32(len(opts.pcode))

	blob := make([]byte, off)

	if !opts.noMagic {
		copy(blob[headerOff:], Magic[:])
	}
	putU32 := func(at uint32, v uint32) { binary.LittleEndian.PutUint32(blob[at:], v) }
	putU16 := func(at uint32, v uint16) { binary.LittleEndian.PutUint16(blob[at:], v) }
	va := func(rva uint32) uint32 { return testImageBase + rva }

	// VBHeader.ProjectInfo (offset 0x30).
	putU32(headerOff+0x30, va(projectInfoOff))
	if opts.projectName != "" {
		// VBHeader.ProjectName (offset 0x64).
		putU32(headerOff+0x64, va(projectNameOff))
	}

	// ProjectInfo.ObjectTable (offset 0x04), NativeCode (offset 0x20).
	putU32(projectInfoOff+0x04, va(objTableOff))
	if opts.nativeCode {
		putU32(projectInfoOff+0x20, 0x1000)
	}

	// ObjectTableHeader.TotalObjects (offset 0x0E), ObjectArray (offset 0x14).
	putU16(objTableOff+0x0E, 1)
	putU32(objTableOff+0x14, va(descOff))

	// PublicObjectDescriptor: ObjectInfo(0x00), ObjectName(0x18),
	// MethodCount(0x1C), MethodNamesArray(0x20), ObjectType(0x28).
	putU32(descOff+0x00, va(objInfoOff))
	putU32(descOff+0x18, va(objNameOff))
	putU32(descOff+0x1C, 1)
	putU32(descOff+0x20, va(methodArrayOff))
	objType := uint32(0x01)
	if opts.hasOptional {
		objType |= 0x80
	}
	putU32(descOff+0x28, objType)

	// ObjectInfo: MethodCount(0x20), Methods(0x24).
	putU16(objInfoOff+0x20, 1)
	putU32(objInfoOff+0x24, va(procDescOff))

	// MethodName: NamePtr(0x00).
	putU32(methodArrayOff+0x00, va(methodNameOff))

	copy(blob[objNameOff:], objNameBytes)
	copy(blob[methodNameOff:], methodNameBytes)
	if opts.projectName != "" {
		copy(blob[projectNameOff:], projectNameBytes)
	}

	// ProcDescInfo.ProcSize (offset 0x08).
	putU16(procDescOff+0x08, uint16(len(opts.pcode)))
	copy(blob[pcodeOff:], opts.pcode)

	return wrapInPE(blob)
}

// wrapInPE embeds sectionData as the single section of a minimal PE32
// image, with ImageBase == testImageBase and RVA == section-local offset
// (a flat, single-section layout), then parses it with the pe package's
// public API. Mirrors the pe package's own buildMinimalPE, rebuilt here
// on exported symbols only since this package sits outside pe.
func wrapInPE(sectionData []byte) *pe.File {
	const (
		dosHeaderSize  = 64
		fileHeaderSize = 20
		optHeaderSize  = 224
		sectionHdrSize = 40
	)

	lfanew := uint32(dosHeaderSize)
	ntHeaderOffset := lfanew
	sectionTableOffset := ntHeaderOffset + 4 + fileHeaderSize + uint32(optHeaderSize)
	sectionDataOffset := alignUp(sectionTableOffset+sectionHdrSize, 0x200)

	total := sectionDataOffset + uint32(len(sectionData))
	buf := make([]byte, total)

	binary.LittleEndian.PutUint16(buf[0:], pe.ImageDOSSignature)
	binary.LittleEndian.PutUint32(buf[0x3C:], lfanew)

	off := ntHeaderOffset
	binary.LittleEndian.PutUint32(buf[off:], pe.ImageNTSignature)
	off += 4
	binary.LittleEndian.PutUint16(buf[off:], pe.ImageFileMachineI386)
	binary.LittleEndian.PutUint16(buf[off+2:], 1) // NumberOfSections
	binary.LittleEndian.PutUint16(buf[off+16:], uint16(optHeaderSize))
	binary.LittleEndian.PutUint16(buf[off+18:], pe.ImageFileExecutableImage)

	optOff := ntHeaderOffset + 4 + fileHeaderSize
	binary.LittleEndian.PutUint16(buf[optOff:], pe.ImageNtOptionalHeader32Magic)
	binary.LittleEndian.PutUint32(buf[optOff+28:], testImageBase) // ImageBase
	binary.LittleEndian.PutUint32(buf[optOff+32:], 0x1000)        // SectionAlignment
	binary.LittleEndian.PutUint32(buf[optOff+36:], 0x200)         // FileAlignment

	secOff := sectionTableOffset
	copy(buf[secOff:], ".text")
	binary.LittleEndian.PutUint32(buf[secOff+8:], uint32(len(sectionData)))  // VirtualSize
	binary.LittleEndian.PutUint32(buf[secOff+12:], 0)                        // VirtualAddress
	binary.LittleEndian.PutUint32(buf[secOff+16:], uint32(len(sectionData))) // SizeOfRawData
	binary.LittleEndian.PutUint32(buf[secOff+20:], sectionDataOffset)       // PointerToRawData
	binary.LittleEndian.PutUint32(buf[secOff+36:], pe.ImageScnMemExecute|pe.ImageScnCntCode)

	copy(buf[sectionDataOffset:], sectionData)

	f, err := pe.NewBytes(buf, &pe.Options{})
	if err != nil {
		panic(err)
	}
	if err := f.Parse(); err != nil {
		panic(err)
	}
	return f
}

func alignUp(v, align uint32) uint32 {
	if v%align == 0 {
		return v
	}
	return (v/align + 1) * align
}
