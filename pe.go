// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pe

// Image executable types.
const (
	// The DOS MZ executable format is the executable file format used
	// for .EXE files in DOS.
	ImageDOSSignature   = 0x5A4D // MZ
	ImageDOSZMSignature = 0x4D5A // ZM

	// The Portable Executable (PE) format is a file format for executables,
	// object code, DLLs and others used in 32-bit and 64-bit versions of
	// Windows operating systems.
	ImageNTSignature = 0x00004550 // PE00
)

// Optional Header magic.
const (
	ImageNtOptionalHeader32Magic = 0x10b
	ImageNtOptionalHeader64Magic = 0x20b
)

// Image file machine types. VB5/VB6 only ever targets x86.
const (
	ImageFileMachineUnknown = uint16(0x0)
	ImageFileMachineAMD64   = uint16(0x8664) // x64
	ImageFileMachineI386    = uint16(0x14c)  // Intel 386 or later processors and compatible processors
)

// The Characteristics field contains flags that indicate attributes of the
// object or image file. Only the handful this module consults are kept.
const (
	// Flag indicates that the file is an image file (EXE or DLL).
	ImageFileExecutableImage = 0x0002

	// The image file is a DLL rather than an EXE. It cannot be directly run.
	ImageFileDLL = 0x2000
)

// ImageDirectoryEntry identifies an entry inside the data directory array.
// Only the entries this module reads are named; the rest of the 16-entry
// array is skipped over.
type ImageDirectoryEntry int

// Data directory indices, per the PE32 optional header layout.
const (
	ImageDirectoryEntryExport ImageDirectoryEntry = iota
	ImageDirectoryEntryImport
	ImageDirectoryEntryResource
	ImageDirectoryEntryException
	ImageDirectoryEntryCertificate
	ImageDirectoryEntryBaseReloc
	ImageNumberOfDirectoryEntries = 16
)

// ImageDataDirectory represents the data directory entry found in the
// optional header, giving the RVA and size of a table or string used by
// the operating system (e.g. the import table, the export table).
type ImageDataDirectory struct {
	VirtualAddress uint32 `json:"virtual_address"`
	Size           uint32 `json:"size"`
}

// String stringifies a data directory entry.
func (entry ImageDirectoryEntry) String() string {
	dataDirMap := map[ImageDirectoryEntry]string{
		ImageDirectoryEntryExport:      "Export",
		ImageDirectoryEntryImport:      "Import",
		ImageDirectoryEntryResource:    "Resource",
		ImageDirectoryEntryException:   "Exception",
		ImageDirectoryEntryCertificate: "Security",
		ImageDirectoryEntryBaseReloc:   "Relocation",
	}
	return dataDirMap[entry]
}
