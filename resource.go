// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pe

// resourceDataDirectoryHeaderOffset is the byte offset of the resource data
// directory entry from e_lfanew in a PE32 file: 4 (PE signature) +
// sizeof(ImageFileHeader) (20) + 112, the entry's position within the
// optional header (the 16-entry DataDirectory array starts at byte 96 and
// the resource entry is index 2, 8 bytes per entry).
const resourceDataDirectoryHeaderOffset = 4 + 20 + 112

// zeroResourceDataDirectory blanks out the resource data directory entry
// (VirtualAddress + Size, 8 bytes) in the in-memory copy of the optional
// header before section/data-directory parsing continues.
//
// This core never decompiles resources (icons, dialogs, version info,
// string tables) — VB6 P-Code lives in the .text section's VB header, not
// in any resource. Some obfuscators and installers ship resource
// directories crafted to make naive PE parsers misbehave (recursive named
// entries, self-referential RVAs); rather than writing a resource-directory
// parser this module will never call, the resource entry is zeroed so nothing
// downstream ever walks it.
func (pe *File) zeroResourceDataDirectory() {
	off := pe.DOSHeader.AddressOfNewEXEHeader + resourceDataDirectoryHeaderOffset
	if off+8 <= pe.size {
		for i := uint32(0); i < 8; i++ {
			pe.data[off+i] = 0
		}
	}
	pe.NtHeader.OptionalHeader.DataDirectory[ImageDirectoryEntryResource] = ImageDataDirectory{}
}
