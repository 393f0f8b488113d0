// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package errs defines the tagged error type shared by the packages above
// the PE loader (vb, pcode, lifter, x86util, decompiler), so callers can branch on failure class without string
// matching a message.
package errs

import "fmt"

// Kind tags the category of an *Error, mirroring the original
// implementation's error enum so callers can branch on failure class
// without string-matching a message.
type Kind int

const (
	// KindIO wraps a filesystem/IO failure.
	KindIO Kind = iota
	// KindInvalidPE means the input isn't a PE image this module accepts.
	KindInvalidPE
	// KindInvalidVB means a VB5/6 structure failed validation.
	KindInvalidVB
	// KindNotVBFile means the PE parsed fine but carries no VB5! header.
	KindNotVBFile
	// KindPCodeDisassembly means the P-Code disassembler rejected a method.
	KindPCodeDisassembly
	// KindIRLift means the lifter couldn't turn P-Code into IR.
	KindIRLift
	// KindDecompilation is a generic failure during orchestration.
	KindDecompilation
	// KindNotImplemented flags a deliberately unsupported code path.
	KindNotImplemented
	// KindParse is a generic structured-data parse failure.
	KindParse
	// KindOutOfBounds means an offset/RVA fell outside the image.
	KindOutOfBounds
	// KindUnsupported flags input this module recognizes but refuses: a
	// packed binary under SkipPacked. PE32+ and non-x86 images are
	// reported as KindInvalidPE.
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindInvalidPE:
		return "invalid PE file"
	case KindInvalidVB:
		return "invalid VB structure"
	case KindNotVBFile:
		return "not a VB file"
	case KindPCodeDisassembly:
		return "P-Code disassembly failed"
	case KindIRLift:
		return "IR lift failed"
	case KindDecompilation:
		return "decompilation failed"
	case KindNotImplemented:
		return "not implemented"
	case KindParse:
		return "parse error"
	case KindOutOfBounds:
		return "out of bounds access"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is this module's tagged error type: a Kind plus a message, and
// optionally a wrapped underlying error (used for KindIO).
type Error struct {
	Kind    Kind
	Message string
	Offset  uint32 // meaningful only for KindOutOfBounds
	Err     error  // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Kind == KindOutOfBounds {
		return fmt.Sprintf("out of bounds access at offset %#x", e.Offset)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return e.Kind.String()
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether this error was tagged with the given Kind.
func (e *Error) Is(kind Kind) bool {
	return e.Kind == kind
}

// IOError wraps an underlying I/O failure (file open/read/mmap).
func IOError(err error) *Error {
	return &Error{Kind: KindIO, Err: err}
}

// InvalidPE reports that the target isn't a PE image this module accepts.
func InvalidPE(msg string) *Error {
	return &Error{Kind: KindInvalidPE, Message: msg}
}

// InvalidVB reports a VB5/6 structure that failed validation.
func InvalidVB(msg string) *Error {
	return &Error{Kind: KindInvalidVB, Message: msg}
}

// NotVBFile reports a PE image with no VB5! header.
func NotVBFile() *Error {
	return &Error{Kind: KindNotVBFile, Message: "VB5! signature not found"}
}

// PCodeDisassembly reports a P-Code disassembly failure.
func PCodeDisassembly(msg string) *Error {
	return &Error{Kind: KindPCodeDisassembly, Message: msg}
}

// IRLift reports an IR-lifting failure.
func IRLift(msg string) *Error {
	return &Error{Kind: KindIRLift, Message: msg}
}

// Decompilation reports a generic orchestration failure.
func Decompilation(msg string) *Error {
	return &Error{Kind: KindDecompilation, Message: msg}
}

// NotImplemented flags a deliberately unsupported code path.
func NotImplemented(msg string) *Error {
	return &Error{Kind: KindNotImplemented, Message: msg}
}

// Parse reports a generic structured-data parse failure.
func Parse(msg string) *Error {
	return &Error{Kind: KindParse, Message: msg}
}

// OutOfBounds reports an offset/RVA access outside the image.
func OutOfBounds(offset uint32) *Error {
	return &Error{Kind: KindOutOfBounds, Offset: offset}
}

// Unsupported flags input this module recognizes but refuses.
func Unsupported(msg string) *Error {
	return &Error{Kind: KindUnsupported, Message: msg}
}
