// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package vb walks the VB5/6-specific structures a P-Code compiled
// executable carries inside its PE image: the VB5! header, project info,
// object table, and per-object method tables.
package vb

// Magic is the 4-byte signature that opens every VB5/6 header.
var Magic = [4]byte{'V', 'B', '5', '!'}

// Header is the VB5/6 runtime header (104 bytes), located by scanning every
// PE section for Magic.
type Header struct {
	Magic                  [4]byte
	RuntimeBuild           uint16
	LanguageDLL            [14]byte
	SecLanguageDLL         [14]byte
	RuntimeDLLVersion      uint16
	LCID                   uint32
	SecLCID                uint32
	SubMain                uint32
	ProjectInfo            uint32
	MDLIntObjs             uint32
	MDLIntObjs2            uint32
	ThreadFlags            uint32
	ThreadCount            uint32
	FormCount              uint16
	ExternalCount          uint16
	ThunkCount             uint32
	GUITable               uint32
	ExternalComponentTable uint32
	ComRegisterData        uint32
	ProjectDescription     uint32
	ProjectExeName         uint32
	ProjectHelpFile        uint32
	ProjectName            uint32
}

// ProjectInfo is the VB5/6 project-info structure (564 bytes).
type ProjectInfo struct {
	Version         uint32
	ObjectTable     uint32
	Null            uint32
	CodeStart       uint32
	CodeEnd         uint32
	DataSize        uint32
	ThreadSpace     uint32
	VBASEH          uint32
	NativeCode      uint32
	Path1           [260]byte
	Path2           [260]byte
	ExternalTable   uint32
	ExternalCount   uint32
}

// ObjectTableHeader is the VB5/6 object-table header (60 bytes).
type ObjectTableHeader struct {
	HeapLink       uint32
	ExecProj       uint32
	ProjectInfo2   uint32
	Reserved       uint16
	TotalObjects   uint16
	CompiledObjs   uint16
	ObjectsInUse   uint16
	ObjectArray    uint32
	IDEFlag        uint32
	IDEFlag2       uint32
	IDEData        uint32
	IDEData2       uint32
	ProjectName    uint32
	LCID           uint32
	LCID2          uint32
	IDEData3       uint32
	Identifier     uint32
}

// PublicObjectDescriptor describes one object (form, module, or class) in
// the object table (48 bytes).
type PublicObjectDescriptor struct {
	ObjectInfo       uint32
	Reserved         uint32
	PublicBytes      uint32
	StaticBytes      uint32
	ModulePublic     uint32
	ModuleStatic     uint32
	ObjectName       uint32
	MethodCount      uint32
	MethodNamesArray uint32
	StaticVars       uint32
	ObjectType       uint32
	Null             uint32
}

// ObjectInfo carries the per-object method table pointer (56 bytes).
type ObjectInfo struct {
	RefCount      uint16
	ObjectIndex   uint16
	ObjectTable   uint32
	IDEData       uint32
	PrivateObject uint32
	Reserved      uint32
	Null          uint32
	Object        uint32
	ProjectData   uint32
	MethodCount   uint16
	MethodCount2  uint16
	Methods       uint32
	Constants     uint16
	MaxConstants  uint16
	IDEData2      uint32
	IDEData3      uint32
	ConstantsPtr  uint32
}

// OptionalObjectInfo carries form-specific data (64 bytes), present only
// when PublicObjectDescriptor.ObjectType has bit 0x80 set.
type OptionalObjectInfo struct {
	DesignerFlag     uint32
	ObjectCLSID      uint32
	Null1            uint32
	GUIDObjectGUI    uint32
	DefaultIIDCount  uint32
	EventsIIDTable   uint32
	EventsIIDCount   uint32
	DefaultIIDTable  uint32
	ControlCount     uint32
	ControlArray     uint32
	EventCount       uint16
	PCodeCount       uint16
	InitializeEvent  uint16
	TerminateEvent   uint16
	EventLinkArray   uint32
	BasicClassObject uint32
	Null2            uint32
	Flags            uint32
}

// ProcDescInfo is one method's procedure descriptor (30 bytes); the P-Code
// bytes immediately follow it in the image.
type ProcDescInfo struct {
	Table      uint32
	Reserved1  uint16
	FrameSize  uint16
	ProcSize   uint16
	Reserved2  uint16
	Reserved3  uint16
	Reserved4  uint16
	Reserved5  uint16
	Reserved6  uint16
	Reserved7  uint16
	Reserved8  uint16
	Reserved9  uint16
	Reserved10 uint16
	Flags      uint16
}

// MethodName is one entry of an object's method-names array (8 bytes).
type MethodName struct {
	NamePtr uint32
	Flags   uint32
}
