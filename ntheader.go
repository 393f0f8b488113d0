// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pe

import (
	"encoding/binary"
)

// ImageNtHeader represents the PE header, the general term for the structure
// named IMAGE_NT_HEADERS.
type ImageNtHeader struct {
	// Signature is a DWORD containing the value 50h, 45h, 00h, 00h.
	Signature uint32 `json:"signature"`

	// FileHeader gives the most general characteristics of the file.
	FileHeader ImageFileHeader `json:"file_header"`

	// OptionalHeader is always an ImageOptionalHeader32. VB5/6 P-Code
	// binaries are always 32-bit; PE32+ is rejected by ParseNTHeader.
	OptionalHeader ImageOptionalHeader32 `json:"optional_header"`
}

// ImageFileHeader contains information about the physical layout and
// properties of the file.
type ImageFileHeader struct {
	// The number that identifies the type of target machine.
	Machine uint16 `json:"machine"`

	// The number of sections. This indicates the size of the section table,
	// which immediately follows the headers.
	NumberOfSections uint16 `json:"number_of_sections"`

	// The low 32 bits of the number of seconds since 00:00 January 1, 1970
	// that indicates when the file was created.
	TimeDateStamp uint32 `json:"time_date_stamp"`

	// The file offset of the COFF symbol table, deprecated for images.
	PointerToSymbolTable uint32 `json:"pointer_to_symbol_table"`

	// The number of entries in the symbol table.
	NumberOfSymbols uint32 `json:"number_of_symbols"`

	// The size of the optional header.
	SizeOfOptionalHeader uint16 `json:"size_of_optional_header"`

	// The flags that indicate the attributes of the file.
	Characteristics uint16 `json:"characteristics"`
}

// ImageOptionalHeader32 represents the PE32 format of the optional header.
type ImageOptionalHeader32 struct {
	// The unsigned integer that identifies the state of the image file.
	// 0x10B for a normal executable, which is the only value this module
	// accepts.
	Magic uint16 `json:"magic"`

	MajorLinkerVersion uint8  `json:"major_linker_version"`
	MinorLinkerVersion uint8  `json:"minor_linker_version"`
	SizeOfCode         uint32 `json:"size_of_code"`

	SizeOfInitializedData   uint32 `json:"size_of_initialized_data"`
	SizeOfUninitializedData uint32 `json:"size_of_uninitialized_data"`

	// The address of the entry point relative to the image base.
	AddressOfEntryPoint uint32 `json:"address_of_entrypoint"`
	BaseOfCode          uint32 `json:"base_of_code"`
	BaseOfData          uint32 `json:"base_of_data"`

	// The preferred address of the first byte of the image when loaded.
	ImageBase uint32 `json:"image_base"`

	SectionAlignment uint32 `json:"section_alignment"`
	FileAlignment    uint32 `json:"file_alignment"`

	MajorOperatingSystemVersion uint16 `json:"major_os_version"`
	MinorOperatingSystemVersion uint16 `json:"minor_os_version"`
	MajorImageVersion           uint16 `json:"major_image_version"`
	MinorImageVersion           uint16 `json:"minor_image_version"`
	MajorSubsystemVersion       uint16 `json:"major_subsystem_version"`
	MinorSubsystemVersion       uint16 `json:"minor_subsystem_version"`
	Win32VersionValue           uint32 `json:"win32_version_value"`

	// The size, in bytes, of the image as loaded in memory.
	SizeOfImage   uint32 `json:"size_of_image"`
	SizeOfHeaders uint32 `json:"size_of_headers"`
	CheckSum      uint32 `json:"checksum"`

	Subsystem          uint16 `json:"subsystem"`
	DllCharacteristics uint16 `json:"dll_characteristics"`

	SizeOfStackReserve uint32 `json:"size_of_stack_reserve"`
	SizeOfStackCommit  uint32 `json:"size_of_stack_commit"`
	SizeOfHeapReserve  uint32 `json:"size_of_heap_reserve"`
	SizeOfHeapCommit   uint32 `json:"size_of_heap_commit"`
	LoaderFlags        uint32 `json:"loader_flags"`

	// Number of entries in DataDirectory; always 16 in practice.
	NumberOfRvaAndSizes uint32 `json:"number_of_rva_and_sizes"`

	// The data directory table. VB5/6 P-Code only needs the import,
	// resource (zeroed out, §4.1) and certificate entries.
	DataDirectory [16]ImageDataDirectory `json:"data_directories"`
}

// ParseNTHeader parses the PE NT header referred to as IMAGE_NT_HEADERS, at
// the offset given by the DOS header's AddressOfNewEXEHeader (e_lfanew).
// This module only accepts PE32/x86 images, the only targets the VB5/6
// toolchain ever produced.
func (pe *File) ParseNTHeader() (err error) {
	ntHeaderOffset := pe.DOSHeader.AddressOfNewEXEHeader
	signature, err := pe.ReadUint32(ntHeaderOffset)
	if err != nil {
		return ErrImageNtSignatureNotFound
	}

	if signature != ImageNTSignature {
		return ErrImageNtSignatureNotFound
	}
	pe.NtHeader.Signature = signature

	fileHeaderSize := uint32(binary.Size(pe.NtHeader.FileHeader))
	fileHeaderOffset := ntHeaderOffset + 4
	if err = pe.structUnpack(&pe.NtHeader.FileHeader, fileHeaderOffset, fileHeaderSize); err != nil {
		return err
	}

	if pe.NtHeader.FileHeader.Machine != ImageFileMachineI386 {
		return ErrUnsupportedMachine
	}

	optHeaderOffset := ntHeaderOffset + fileHeaderSize + 4
	magic, err := pe.ReadUint16(optHeaderOffset)
	if err != nil {
		return err
	}
	if magic != ImageNtOptionalHeader32Magic {
		return ErrImageNtOptionalHeaderMagicNotFound
	}

	oh := ImageOptionalHeader32{}
	size := uint32(binary.Size(oh))
	if err = pe.structUnpack(&oh, optHeaderOffset, size); err != nil {
		return err
	}
	pe.NtHeader.OptionalHeader = oh

	// The 16th data directory entry is reserved and must be zero.
	if oh.DataDirectory[15] != (ImageDataDirectory{}) {
		pe.Anomalies = append(pe.Anomalies, AnoReservedDataDirectoryEntry)
	}

	pe.HasNTHdr = true
	return nil
}
