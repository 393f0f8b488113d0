// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pe

import (
	"encoding/binary"
	"errors"
)

const maxDllLength = 0x200

// ErrDamagedImportTable is reported when the import directory's RVA can't
// be resolved to a valid offset.
var ErrDamagedImportTable = errors.New(
	"damaged import table information, import directory appears to be broken")

// ImageImportDescriptor describes one DLL this image imports from. The
// import directory table is an array of these, terminated by a
// zero-valued entry.
type ImageImportDescriptor struct {
	OriginalFirstThunk uint32 `json:"original_first_thunk"`
	TimeDateStamp      uint32 `json:"time_date_stamp"`
	ForwarderChain     uint32 `json:"forwarder_chain"`

	// The RVA of an ASCII string containing the name of the DLL.
	Name uint32 `json:"name"`

	FirstThunk uint32 `json:"first_thunk"`
}

// Import is a single imported DLL. This module doesn't need per-function
// import data — only the DLL count and names, which feed the packer
// detector's sparse-imports signal.
type Import struct {
	Offset     uint32                `json:"offset"`
	Name       string                `json:"name"`
	Descriptor ImageImportDescriptor `json:"descriptor"`
}

// parseImportDirectory walks the import directory table, recording one
// Import entry per imported DLL.
func (pe *File) parseImportDirectory(rva uint32) error {
	for {
		importDesc := ImageImportDescriptor{}
		fileOffset, err := pe.RVAToOffset(rva)
		if err != nil {
			return ErrDamagedImportTable
		}
		importDescSize := uint32(binary.Size(importDesc))
		if err := pe.structUnpack(&importDesc, fileOffset, importDescSize); err != nil {
			return err
		}

		if importDesc == (ImageImportDescriptor{}) {
			break
		}
		rva += importDescSize

		dllName := pe.StringAtRVA(importDesc.Name, maxDllLength)
		pe.Imports = append(pe.Imports, Import{
			Offset:     fileOffset,
			Name:       dllName,
			Descriptor: importDesc,
		})
	}

	if len(pe.Imports) > 0 {
		pe.HasImport = true
	}
	return nil
}

// ImportedDLLs returns the name of every DLL this image imports from, as
// recorded in the import directory (case preserved, in table order).
func (pe *File) ImportedDLLs() []string {
	names := make([]string, 0, len(pe.Imports))
	for _, imp := range pe.Imports {
		names = append(names, imp.Name)
	}
	return names
}
