// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pe

import (
	"encoding/binary"
	"math"
	"sort"
	"strings"
)

// Section characteristic flags this module needs to reason about.
const (
	ImageScnCntCode        = 0x00000020
	ImageScnMemExecute     = 0x20000000
	ImageScnMemWrite       = 0x80000000
	ImageScnMemDiscardable = 0x02000000
)

// ImageSectionHeader describes one entry of the PE section table. Each
// struct is 40 bytes with no padding.
type ImageSectionHeader struct {
	// An 8-byte, null-padded UTF-8 string naming the section.
	Name [8]uint8

	// The total size of the section when loaded into memory.
	VirtualSize uint32

	// The RVA of the first byte of the section when loaded.
	VirtualAddress uint32

	// The size of the initialized data on disk.
	SizeOfRawData uint32

	// The file pointer to the first page of the section.
	PointerToRawData uint32

	PointerToRelocations uint32
	PointerToLineNumbers uint32
	NumberOfRelocations   uint16
	NumberOfLineNumbers   uint16

	// The flags describing the characteristics of the section.
	Characteristics uint32
}

// Section represents a PE section header plus its entropy, which is filled
// in only when Options.SectionEntropy is set.
type Section struct {
	Header  ImageSectionHeader
	Entropy float64 `json:",omitempty"`
}

// ParseSectionHeader parses the PE section table, which immediately follows
// the optional header.
func (pe *File) ParseSectionHeader() error {
	optionalHeaderOffset := pe.DOSHeader.AddressOfNewEXEHeader + 4 +
		uint32(binary.Size(pe.NtHeader.FileHeader))
	offset := optionalHeaderOffset + uint32(pe.NtHeader.FileHeader.SizeOfOptionalHeader)

	secHeader := ImageSectionHeader{}
	numberOfSections := pe.NtHeader.FileHeader.NumberOfSections
	secHeaderSize := uint32(binary.Size(secHeader))

	for i := uint16(0); i < numberOfSections; i++ {
		if err := pe.structUnpack(&secHeader, offset, secHeaderSize); err != nil {
			return err
		}

		if secEnd := int64(secHeader.PointerToRawData) + int64(secHeader.SizeOfRawData); secEnd > pe.OverlayOffset {
			pe.OverlayOffset = secEnd
		}

		sec := Section{Header: secHeader}
		if pe.opts.SectionEntropy {
			sec.Entropy = sec.CalculateEntropy(pe)
		}
		pe.Sections = append(pe.Sections, sec)

		offset += secHeaderSize
	}

	sort.Sort(byVirtualAddress(pe.Sections))

	pe.HasSections = true
	return nil
}

// String stringifies the section name.
func (section *Section) String() string {
	return strings.Replace(string(section.Header.Name[:]), "\x00", "", -1)
}

// Contains reports whether the section contains the given RVA.
func (section *Section) Contains(rva uint32, pe *File) bool {
	size := Max(section.Header.SizeOfRawData, section.Header.VirtualSize)
	start := section.Header.VirtualAddress
	return rva >= start && rva < start+size
}

// Data returns the raw bytes of the section, optionally sliced to
// [start, start+length) in RVA terms. length == 0 returns the whole
// section.
func (section *Section) Data(start, length uint32, pe *File) []byte {
	pointerToRawData := section.Header.PointerToRawData
	virtualAddress := section.Header.VirtualAddress

	var offset uint32
	if start == 0 {
		offset = pointerToRawData
	} else {
		offset = (start - virtualAddress) + pointerToRawData
	}

	if offset > pe.size {
		return nil
	}

	var end uint32
	if length != 0 {
		end = offset + length
	} else {
		end = offset + section.Header.SizeOfRawData
	}
	if end > pe.size {
		end = pe.size
	}

	return pe.data[offset:end]
}

// CalculateEntropy computes the Shannon entropy of the section's raw bytes,
// in bits per byte (0..8). The packer detector flags sections whose entropy
// exceeds HighEntropyThreshold as likely compressed or encrypted.
func (section *Section) CalculateEntropy(pe *File) float64 {
	sectionData := section.Data(0, 0, pe)
	if sectionData == nil {
		return 0.0
	}

	sectionSize := float64(len(sectionData))
	if sectionSize == 0.0 {
		return 0.0
	}

	var frequencies [256]uint64
	for _, v := range sectionData {
		frequencies[v]++
	}

	var entropy float64
	for _, p := range frequencies {
		if p > 0 {
			freq := float64(p) / sectionSize
			entropy += freq * math.Log2(freq)
		}
	}

	return -entropy
}

// Max returns the larger of x or y.
func Max(x, y uint32) uint32 {
	if x < y {
		return y
	}
	return x
}

// Min returns the smallest value in a non-empty slice.
func Min(values []uint32) uint32 {
	m := values[0]
	for _, v := range values {
		if v < m {
			m = v
		}
	}
	return m
}

// byVirtualAddress sorts sections by their VirtualAddress, so overlapping
// or out-of-order section tables in malformed/packed binaries still parse
// deterministically.
type byVirtualAddress []Section

func (s byVirtualAddress) Len() int      { return len(s) }
func (s byVirtualAddress) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s byVirtualAddress) Less(i, j int) bool {
	return s[i].Header.VirtualAddress < s[j].Header.VirtualAddress
}
