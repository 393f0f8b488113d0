// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pe

import (
	"bytes"
	"math"
	"strings"
)

// PackerType identifies a known executable packer/protector. VB5/6
// redistributables are commonly wrapped by one of these to shrink install
// size or deter reversing — none of them are themselves P-Code, so the
// decompiler core needs to recognize and report them rather than try (and
// fail) to disassemble their stub.
type PackerType int

const (
	PackerUnknown PackerType = iota
	PackerUPX
	PackerASPack
	PackerPECompact
	PackerThemida
	PackerFSG
	PackerPetite
	PackerMEW
	PackerNSPack
)

// Name returns the packer's human-readable name.
func (p PackerType) Name() string {
	switch p {
	case PackerUPX:
		return "UPX"
	case PackerASPack:
		return "ASPack"
	case PackerPECompact:
		return "PECompact"
	case PackerThemida:
		return "Themida/WinLicense"
	case PackerFSG:
		return "FSG"
	case PackerPetite:
		return "Petite"
	case PackerMEW:
		return "MEW"
	case PackerNSPack:
		return "NSPack"
	default:
		return "Unknown"
	}
}

// UnpackInstructions returns a short, actionable note on how to remove this
// packer before attempting decompilation again.
func (p PackerType) UnpackInstructions() string {
	switch p {
	case PackerUPX:
		return "Install UPX (https://upx.github.io/) and run:\n  upx -d <file>"
	case PackerASPack:
		return "Use an ASPack unpacker or a universal unpacker tool"
	case PackerPECompact:
		return "Use a PECompact unpacker or a universal unpacker tool"
	case PackerThemida:
		return "Themida uses advanced protection; manual unpacking or specialized tools are required"
	case PackerFSG:
		return "Use an FSG unpacker or a universal unpacker tool"
	case PackerPetite:
		return "Use a Petite unpacker or a universal unpacker tool"
	case PackerMEW:
		return "Use a MEW unpacker or a universal unpacker tool"
	case PackerNSPack:
		return "Use an NSPack unpacker or a universal unpacker tool"
	default:
		return "Manual unpacking required; try a universal unpacker"
	}
}

// DetectionMethod records which signal a PackerDetection was derived from.
type DetectionMethod int

const (
	DetectionSectionName DetectionMethod = iota
	DetectionEntropy
	DetectionImportTable
)

func (m DetectionMethod) String() string {
	switch m {
	case DetectionSectionName:
		return "section-name"
	case DetectionEntropy:
		return "entropy"
	case DetectionImportTable:
		return "import-table"
	default:
		return "unknown"
	}
}

// PackerDetection is the outcome of DetectPacker.
type PackerDetection struct {
	Packer     PackerType
	Confidence float64
	Method     DetectionMethod
}

// HighEntropyThreshold is the Shannon-entropy cutoff (bits per byte, 0-8)
// above which a section or buffer is treated as compressed or encrypted.
const HighEntropyThreshold = 7.2

var sectionNameSignatures = []struct {
	prefixes   []string
	exact      string
	packer     PackerType
	confidence float64
}{
	{prefixes: []string{"UPX"}, packer: PackerUPX, confidence: 0.95},
	{prefixes: []string{".aspack", ".adata"}, packer: PackerASPack, confidence: 0.90},
	{prefixes: []string{"PEC2", "PECompact"}, packer: PackerPECompact, confidence: 0.90},
	{prefixes: []string{".themida", ".winlice"}, packer: PackerThemida, confidence: 0.95},
	{exact: "FSG!", packer: PackerFSG, confidence: 0.90},
	{prefixes: []string{".petite"}, packer: PackerPetite, confidence: 0.90},
	{exact: "MEW", packer: PackerMEW, confidence: 0.85},
	{prefixes: []string{".nsp"}, packer: PackerNSPack, confidence: 0.85},
}

func matchSectionName(name string) (PackerType, float64, bool) {
	for _, sig := range sectionNameSignatures {
		if sig.exact != "" && strings.EqualFold(name, sig.exact) {
			return sig.packer, sig.confidence, true
		}
		for _, prefix := range sig.prefixes {
			if strings.HasPrefix(strings.ToLower(name), strings.ToLower(prefix)) {
				return sig.packer, sig.confidence, true
			}
		}
	}
	return PackerUnknown, 0, false
}

// DetectPacker inspects raw PE bytes for evidence of a known packer,
// without requiring a prior successful Parse — packed files routinely
// carry corrupted or hostile resource/data directories that would make a
// full Parse fail, so detection must work directly off the section-name
// table first, the way the original implementation's
// detect_by_section_names_raw does.
//
// Signals are tried in order, most to least reliable, and the first match
// wins: section-name signature, per-section entropy, sparse imports.
func DetectPacker(data []byte) (*PackerDetection, error) {
	if det := detectBySectionNamesRaw(data); det != nil {
		return det, nil
	}

	f, err := NewBytes(data, &Options{Fast: true, SectionEntropy: true})
	if err != nil {
		return detectByRawEntropy(data), nil
	}
	if err := f.Parse(); err != nil {
		return detectByRawEntropy(data), nil
	}

	if det := detectBySectionNames(f); det != nil {
		return det, nil
	}
	if det := detectByEntropy(f); det != nil {
		return det, nil
	}
	// Import-based detection needs the import directory, which Fast skips;
	// re-parse fully only if we got this far.
	full, err := NewBytes(data, &Options{})
	if err == nil && full.Parse() == nil {
		if det := detectByImports(full); det != nil {
			return det, nil
		}
	}

	return nil, nil
}

func detectBySectionNames(f *File) *PackerDetection {
	for _, s := range f.Sections {
		name := s.String()
		if packer, conf, ok := matchSectionName(name); ok {
			return &PackerDetection{Packer: packer, Confidence: conf, Method: DetectionSectionName}
		}
	}
	return nil
}

// detectBySectionNamesRaw re-implements the section-name scan directly off
// the byte buffer, bypassing any structured PE parse entirely. This is the
// "robust against hostile resource directories" path.
func detectBySectionNamesRaw(data []byte) *PackerDetection {
	if len(data) < 0x40 {
		return nil
	}
	peOffset := uint32(data[0x3C]) | uint32(data[0x3D])<<8 | uint32(data[0x3E])<<16 | uint32(data[0x3F])<<24
	if int(peOffset)+24 > len(data) {
		return nil
	}
	if !bytes.Equal(data[peOffset:peOffset+4], []byte("PE\x00\x00")) {
		return nil
	}

	numSections := uint16(data[peOffset+6]) | uint16(data[peOffset+7])<<8
	optHeaderSize := uint16(data[peOffset+20]) | uint16(data[peOffset+21])<<8
	sectionTableOffset := peOffset + 24 + uint32(optHeaderSize)

	for i := uint16(0); i < numSections; i++ {
		off := sectionTableOffset + uint32(i)*40
		if int(off)+8 > len(data) {
			break
		}
		name := strings.TrimRight(string(data[off:off+8]), "\x00")
		if packer, conf, ok := matchSectionName(name); ok {
			return &PackerDetection{Packer: packer, Confidence: conf, Method: DetectionSectionName}
		}
	}
	return nil
}

func detectByRawEntropy(data []byte) *PackerDetection {
	sampleSize := len(data)
	if sampleSize > 65536 {
		sampleSize = 65536
	}
	entropy := shannonEntropy(data[:sampleSize])
	if entropy > HighEntropyThreshold {
		return &PackerDetection{Packer: PackerUnknown, Confidence: 0.60, Method: DetectionEntropy}
	}
	return nil
}

func detectByEntropy(f *File) *PackerDetection {
	highEntropy, total := 0, 0
	for i := range f.Sections {
		if f.Sections[i].Header.SizeOfRawData == 0 {
			continue
		}
		total++
		if f.Sections[i].CalculateEntropy(f) > HighEntropyThreshold {
			highEntropy++
		}
	}
	if total > 0 && float64(highEntropy)/float64(total) > 0.6 {
		return &PackerDetection{Packer: PackerUnknown, Confidence: 0.70, Method: DetectionEntropy}
	}
	return nil
}

func detectByImports(f *File) *PackerDetection {
	if n := len(f.Imports); n > 0 && n < 5 {
		return &PackerDetection{Packer: PackerUnknown, Confidence: 0.50, Method: DetectionImportTable}
	}
	return nil
}

// shannonEntropy computes the Shannon entropy, in bits per byte, of a raw
// byte slice. Section.CalculateEntropy computes the same quantity over one
// section's raw bytes.
func shannonEntropy(data []byte) float64 {
	if len(data) == 0 {
		return 0.0
	}
	var freq [256]uint64
	for _, b := range data {
		freq[b]++
	}
	size := float64(len(data))
	var entropy float64
	for _, c := range freq {
		if c > 0 {
			p := float64(c) / size
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}
