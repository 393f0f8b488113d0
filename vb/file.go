// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vb

import (
	"bytes"
	"encoding/binary"
	"strconv"

	"github.com/go-kratos/kratos/v2/log"

	pe "github.com/vbdecomp/vbdecompiler"
	"github.com/vbdecomp/vbdecompiler/errs"
	"github.com/vbdecomp/vbdecompiler/internal/vblog"
)

const maxStringLength = 256

// File is a VB5/6-aware view over an already-parsed pe.File: the VB5!
// header, project info, object table, and every object's method list.
type File struct {
	PE *pe.File

	Header            Header
	HeaderRVA         uint32
	ProjectInfo       ProjectInfo
	ObjectTableHeader ObjectTableHeader
	Objects           []Object

	IsNativeCode bool

	logger *log.Helper
}

// FromPE walks the VB5/6 structures out of an already-parsed PE image.
// Returns errs.NotVBFile if no VB5! header is found.
func FromPE(f *pe.File, logger log.Logger) (*File, error) {
	vf := &File{PE: f, logger: vblog.New(logger)}

	if err := vf.findHeader(); err != nil {
		return nil, err
	}
	if err := vf.parseHeader(); err != nil {
		return nil, err
	}
	if err := vf.parseProjectInfo(); err != nil {
		return nil, err
	}
	if err := vf.parseObjectTable(); err != nil {
		return nil, err
	}
	vf.parseObjects()

	return vf, nil
}

// findHeader linearly scans every section's virtual range for the VB5!
// magic and records its RVA on first hit.
func (vf *File) findHeader() error {
	for _, s := range vf.PE.Sections {
		start := s.Header.VirtualAddress
		size := s.Header.VirtualSize
		if size == 0 {
			size = s.Header.SizeOfRawData
		}
		data, err := vf.PE.ReadBytesAtRVA(start, size)
		if err != nil {
			continue
		}
		if idx := bytes.Index(data, Magic[:]); idx >= 0 {
			vf.HeaderRVA = start + uint32(idx)
			return nil
		}
	}
	return errs.NotVBFile()
}

func (vf *File) parseHeader() error {
	if err := vf.readStruct(vf.HeaderRVA, &vf.Header); err != nil {
		return err
	}
	if vf.Header.Magic != Magic {
		return errs.InvalidVB("invalid VB header signature")
	}
	return nil
}

func (vf *File) parseProjectInfo() error {
	if vf.Header.ProjectInfo == 0 {
		return errs.InvalidVB("no project info pointer in VB header")
	}
	rva := vf.vaToRVA(vf.Header.ProjectInfo)
	if err := vf.readStruct(rva, &vf.ProjectInfo); err != nil {
		return err
	}
	vf.IsNativeCode = vf.ProjectInfo.NativeCode != 0
	return nil
}

func (vf *File) parseObjectTable() error {
	if vf.ProjectInfo.ObjectTable == 0 {
		return errs.InvalidVB("no object table pointer in project info")
	}
	rva := vf.vaToRVA(vf.ProjectInfo.ObjectTable)
	return vf.readStruct(rva, &vf.ObjectTableHeader)
}

// parseObjects walks the object array. A malformed descriptor for one
// object is skipped rather than aborting the rest of the walk — see
// spec's "failure policy" for the VB walker.
func (vf *File) parseObjects() {
	if vf.ObjectTableHeader.TotalObjects == 0 {
		return
	}

	arrayRVA := vf.vaToRVA(vf.ObjectTableHeader.ObjectArray)
	descSize := uint32(binary.Size(PublicObjectDescriptor{}))

	for i := uint16(0); i < vf.ObjectTableHeader.TotalObjects; i++ {
		objRVA := arrayRVA + uint32(i)*descSize

		var desc PublicObjectDescriptor
		if err := vf.readStruct(objRVA, &desc); err != nil {
			vf.logger.Warnf("skipping object %d: %v", i, err)
			continue
		}

		vf.Objects = append(vf.Objects, vf.parseObject(desc, uint32(i)))
	}
}

func (vf *File) parseObject(desc PublicObjectDescriptor, index uint32) Object {
	obj := Object{
		Name:       "",
		Index:      index,
		ObjectType: desc.ObjectType,
		Descriptor: desc,
	}

	if desc.ObjectName != 0 {
		if name := vf.PE.StringAtRVA(vf.vaToRVA(desc.ObjectName), maxStringLength); name != "" {
			obj.Name = name
		}
	}
	if obj.Name == "" {
		obj.Name = syntheticName("Object", index)
	}

	if desc.ObjectInfo != 0 {
		infoRVA := vf.vaToRVA(desc.ObjectInfo)
		var info ObjectInfo
		if err := vf.readStruct(infoRVA, &info); err == nil {
			obj.Info = &info

			if desc.ObjectType&objTypeHasOptional != 0 {
				optRVA := infoRVA + uint32(binary.Size(info))
				var opt OptionalObjectInfo
				if err := vf.readStruct(optRVA, &opt); err == nil {
					obj.OptionalInfo = &opt
				}
			}
		}
	}

	obj.MethodNames = vf.parseMethodNames(desc)
	return obj
}

func (vf *File) parseMethodNames(desc PublicObjectDescriptor) []string {
	if desc.MethodCount == 0 || desc.MethodNamesArray == 0 {
		return nil
	}

	arrayRVA := vf.vaToRVA(desc.MethodNamesArray)
	entrySize := uint32(binary.Size(MethodName{}))
	names := make([]string, 0, desc.MethodCount)

	for i := uint32(0); i < desc.MethodCount; i++ {
		entryRVA := arrayRVA + i*entrySize

		var entry MethodName
		if err := vf.readStruct(entryRVA, &entry); err != nil {
			names = append(names, syntheticName("Method", i))
			continue
		}

		if entry.NamePtr == 0 {
			names = append(names, syntheticName("Method", i))
			continue
		}

		name := vf.PE.StringAtRVA(vf.vaToRVA(entry.NamePtr), maxStringLength)
		if name == "" {
			name = syntheticName("Method", i)
		}
		names = append(names, name)
	}

	return names
}

// PCodeForMethod returns the P-Code bytes for (objectIndex, methodIndex),
// or nil if the file is native-compiled, the indices are out of range, or
// any structure along the way fails to read.
func (vf *File) PCodeForMethod(objectIndex, methodIndex int) []byte {
	if !vf.IsPCode() {
		return nil
	}
	if objectIndex < 0 || objectIndex >= len(vf.Objects) {
		return nil
	}

	obj := vf.Objects[objectIndex]
	if obj.Info == nil || obj.Info.Methods == 0 {
		return nil
	}
	if methodIndex < 0 || methodIndex >= int(obj.Info.MethodCount) {
		return nil
	}

	methodTableRVA := vf.vaToRVA(obj.Info.Methods)
	procDescSize := uint32(binary.Size(ProcDescInfo{}))
	procDescRVA := methodTableRVA + uint32(methodIndex)*procDescSize

	var proc ProcDescInfo
	if err := vf.readStruct(procDescRVA, &proc); err != nil {
		return nil
	}
	if proc.ProcSize == 0 {
		return nil
	}

	pcodeRVA := procDescRVA + procDescSize
	pcode, err := vf.PE.ReadBytesAtRVA(pcodeRVA, uint32(proc.ProcSize))
	if err != nil {
		return nil
	}
	return pcode
}

// ProjectName returns the project's declared name, preferring the VB
// header's bSzProjectName pointer and falling back to the project path
// embedded in ProjectInfo.
func (vf *File) ProjectName() string {
	if vf.Header.ProjectName != 0 {
		if name := vf.PE.StringAtRVA(vf.vaToRVA(vf.Header.ProjectName), maxStringLength); name != "" {
			return name
		}
	}
	if vf.ProjectInfo.Path1[0] != 0 {
		if path := string(pe.GetStringFromData(0, vf.ProjectInfo.Path1[:])); path != "" {
			return path
		}
	}
	return ""
}

// IsValid reports whether a VB5! header was found and parsed.
func (vf *File) IsValid() bool {
	return vf.Header.Magic == Magic
}

// IsPCode reports whether this file is compiled to P-Code (as opposed to
// native machine code, which this module never decompiles).
func (vf *File) IsPCode() bool {
	return vf.IsValid() && !vf.IsNativeCode
}

// Object returns the parsed object at index, or nil if out of range.
func (vf *File) Object(index int) *Object {
	if index < 0 || index >= len(vf.Objects) {
		return nil
	}
	return &vf.Objects[index]
}

// ObjectByName returns the first parsed object with the given name, or nil.
func (vf *File) ObjectByName(name string) *Object {
	for i := range vf.Objects {
		if vf.Objects[i].Name == name {
			return &vf.Objects[i]
		}
	}
	return nil
}

// readStruct unpacks a packed little-endian struct at the given RVA.
func (vf *File) readStruct(rva uint32, iface interface{}) error {
	size := uint32(binary.Size(iface))
	// binary.Size returns -1 for a type it can't measure; callers only
	// ever pass fixed-layout structs, so this never happens in practice.
	data, err := vf.PE.ReadBytesAtRVA(rva, size)
	if err != nil {
		return errs.OutOfBounds(rva)
	}
	return binary.Read(bytes.NewReader(data), binary.LittleEndian, iface)
}

// vaToRVA rebases a raw VB5/6 virtual address to an RVA by subtracting the
// image base, saturating to zero rather than underflowing (malformed or
// obfuscated binaries sometimes carry VAs below the image base).
func (vf *File) vaToRVA(va uint32) uint32 {
	base := vf.PE.ImageBase()
	if va < base {
		return 0
	}
	return va - base
}

func syntheticName(kind string, index uint32) string {
	return "<" + kind + strconv.FormatUint(uint64(index), 10) + ">"
}
