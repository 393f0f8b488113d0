// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vb

// Object type-flag bits (PublicObjectDescriptor.ObjectType).
const (
	objTypeModule       = 0x01
	objTypeClass        = 0x02
	objTypeForm         = 0x10
	objTypeHasOptional  = 0x80
)

// Object is the high-level, already-parsed view of one VB5/6 object
// (a form, standard module, or class).
type Object struct {
	Name         string
	Index        uint32
	ObjectType   uint32
	MethodNames  []string
	Descriptor   PublicObjectDescriptor
	Info         *ObjectInfo
	OptionalInfo *OptionalObjectInfo
}

// IsForm reports whether this object is a form (has a visual designer).
func (o *Object) IsForm() bool {
	return o.ObjectType&objTypeForm != 0
}

// IsModule reports whether this object is a standard (.bas) module.
func (o *Object) IsModule() bool {
	return o.ObjectType&objTypeModule != 0
}

// IsClass reports whether this object is a class module.
func (o *Object) IsClass() bool {
	return o.ObjectType&objTypeClass != 0
}

// HasOptionalInfo reports whether this object carries an
// OptionalObjectInfo (forms and some ActiveX objects do).
func (o *Object) HasOptionalInfo() bool {
	return o.ObjectType&objTypeHasOptional != 0
}

// MethodCount returns the number of methods declared for this object.
func (o *Object) MethodCount() int {
	return len(o.MethodNames)
}
