// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package decompiler

import (
	"encoding/binary"

	pe "github.com/vbdecomp/vbdecompiler"
	"github.com/vbdecomp/vbdecompiler/vb"
)

const testImageBase = uint32(0x400000)

// vbImageOptions configures buildVBImageBytes's synthetic layout. Mirrors
// vb package's own test helper of the same shape, rebuilt here on raw
// bytes (rather than an already-parsed *pe.File) since DecompileBytes
// takes the image before any parsing happens.
type vbImageOptions struct {
	noMagic     bool
	nativeCode  bool
	objectName  string
	methodName  string
	pcode       []byte
	sectionName string // defaults to ".text"
	certPayload []byte // if non-nil, appended as a WIN_CERTIFICATE + payload and wired into the certificate data directory
}

func buildVBImageBytes(opts vbImageOptions) []byte {
	if opts.objectName == "" {
		opts.objectName = "Module1"
	}
	if opts.methodName == "" {
		opts.methodName = "Main"
	}
	if opts.pcode == nil {
		opts.pcode = []byte{0x5E, 0x01, 0x00, 0x14} // LitI2 1; unlisted 0x00; ExitProc
	}
	if opts.sectionName == "" {
		opts.sectionName = ".text"
	}

	headerSize := uint32(binary.Size(vb.Header{}))
	projectInfoSize := uint32(binary.Size(vb.ProjectInfo{}))
	objTableSize := uint32(binary.Size(vb.ObjectTableHeader{}))
	descSize := uint32(binary.Size(vb.PublicObjectDescriptor{}))
	objInfoSize := uint32(binary.Size(vb.ObjectInfo{}))
	methodNameSize := uint32(binary.Size(vb.MethodName{}))
	procDescSize := uint32(binary.Size(vb.ProcDescInfo{}))

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
	methodArrayOff := off
	off += methodNameSize
	objNameOff := off
	objNameBytes := append([]byte(opts.objectName), 0)
	off += uint32(len(objNameBytes))
	methodNameOff := off
	methodNameBytes := append([]byte(opts.methodName), 0)
	off += uint32(len(methodNameBytes))
	procDescOff := off
	off += procDescSize
	pcodeOff := off
	off += uint32(len(opts.pcode))

	blob := make([]byte, off)

	if !opts.noMagic {
		copy(blob[headerOff:], vb.Magic[:])
	}
	putU32 := func(at uint32, v uint32) { binary.LittleEndian.PutUint32(blob[at:], v) }
	putU16 := func(at uint32, v uint16) { binary.LittleEndian.PutUint16(blob[at:], v) }
	va := func(rva uint32) uint32 { return testImageBase + rva }

	putU32(headerOff+0x30, va(projectInfoOff)) // Header.ProjectInfo

	putU32(projectInfoOff+0x04, va(objTableOff)) // ProjectInfo.ObjectTable
	if opts.nativeCode {
		putU32(projectInfoOff+0x20, 0x1000) // ProjectInfo.NativeCode
	}

	putU16(objTableOff+0x0E, 1)          // ObjectTableHeader.TotalObjects
	putU32(objTableOff+0x14, va(descOff)) // ObjectTableHeader.ObjectArray

	putU32(descOff+0x00, va(objInfoOff))     // PublicObjectDescriptor.ObjectInfo
	putU32(descOff+0x18, va(objNameOff))     // .ObjectName
	putU32(descOff+0x1C, 1)                  // .MethodCount
	putU32(descOff+0x20, va(methodArrayOff)) // .MethodNamesArray
	putU32(descOff+0x28, 0x01)               // .ObjectType (module)

	putU16(objInfoOff+0x20, 1)           // ObjectInfo.MethodCount
	putU32(objInfoOff+0x24, va(procDescOff)) // ObjectInfo.Methods

	putU32(methodArrayOff+0x00, va(methodNameOff)) // MethodName.NamePtr

	copy(blob[objNameOff:], objNameBytes)
	copy(blob[methodNameOff:], methodNameBytes)

	putU16(procDescOff+0x08, uint16(len(opts.pcode))) // ProcDescInfo.ProcSize
	copy(blob[pcodeOff:], opts.pcode)

	return wrapInPEBytes(blob, opts.sectionName, opts.certPayload)
}

// buildCertDirectory lays out a minimal WIN_CERTIFICATE header followed by
// payload, mirroring the pe package's own test helper of the same name
// (security_test.go) since that one is unexported and unreachable from here.
func buildCertDirectory(payload []byte) []byte {
	buf := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint32(buf[0:], uint32(len(buf)))
	binary.LittleEndian.PutUint16(buf[4:], 0x0200) // Revision
	binary.LittleEndian.PutUint16(buf[6:], 0x0002) // WIN_CERT_TYPE_PKCS_SIGNED_DATA
	copy(buf[8:], payload)
	return buf
}

// wrapInPEBytes embeds sectionData as the single named section of a
// minimal PE32 image, flat layout (RVA == section-local offset). Mirrors
// the vb package's own wrapInPE, rebuilt to return raw bytes instead of
// an already-parsed *pe.File. When certPayload is non-nil, a
// WIN_CERTIFICATE entry wrapping it is appended past the section and wired
// into the certificate data directory (addressed by file offset, not RVA,
// per the PE spec's one exception to RVA-addressed directories).
func wrapInPEBytes(sectionData []byte, sectionName string, certPayload []byte) []byte {
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

	var certDir []byte
	var certDirOffset uint32
	if certPayload != nil {
		certDir = buildCertDirectory(certPayload)
		certDirOffset = sectionDataOffset + uint32(len(sectionData))
	}

	total := sectionDataOffset + uint32(len(sectionData)) + uint32(len(certDir))
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
	if certDir != nil {
		const certEntryOff = 96 + 8*4 // DataDirectory start + ImageDirectoryEntryCertificate index
		binary.LittleEndian.PutUint32(buf[optOff+certEntryOff:], certDirOffset)          // VirtualAddress (file offset for this one directory)
		binary.LittleEndian.PutUint32(buf[optOff+certEntryOff+4:], uint32(len(certDir))) // Size
	}

	secOff := sectionTableOffset
	copy(buf[secOff:], sectionName)
	binary.LittleEndian.PutUint32(buf[secOff+8:], uint32(len(sectionData)))   // VirtualSize
	binary.LittleEndian.PutUint32(buf[secOff+12:], 0)                        // VirtualAddress
	binary.LittleEndian.PutUint32(buf[secOff+16:], uint32(len(sectionData))) // SizeOfRawData
	binary.LittleEndian.PutUint32(buf[secOff+20:], sectionDataOffset)        // PointerToRawData
	binary.LittleEndian.PutUint32(buf[secOff+36:], pe.ImageScnMemExecute|pe.ImageScnCntCode)

	copy(buf[sectionDataOffset:], sectionData)
	if certDir != nil {
		copy(buf[certDirOffset:], certDir)
	}

	return buf
}

func alignUp(v, align uint32) uint32 {
	if v%align == 0 {
		return v
	}
	return (v/align + 1) * align
}
