// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package pcode disassembles Visual Basic P-Code: a stack-based,
// variable-length bytecode format compiled by the VB5/6 IDE when a
// project targets "P-Code" rather than native machine code.
package pcode

// Category groups opcodes by the kind of work they do.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryControlFlow
	CategoryStack
	CategoryVariable
	CategoryCall
	CategoryString
	CategoryArray
	CategoryLoop
	CategoryMemory
	CategoryArithmetic
	CategoryLogical
	CategoryComparison
	CategoryConversion
)

func (c Category) String() string {
	switch c {
	case CategoryControlFlow:
		return "ControlFlow"
	case CategoryStack:
		return "Stack"
	case CategoryVariable:
		return "Variable"
	case CategoryCall:
		return "Call"
	case CategoryString:
		return "String"
	case CategoryArray:
		return "Array"
	case CategoryLoop:
		return "Loop"
	case CategoryMemory:
		return "Memory"
	case CategoryArithmetic:
		return "Arithmetic"
	case CategoryLogical:
		return "Logical"
	case CategoryComparison:
		return "Comparison"
	case CategoryConversion:
		return "Conversion"
	default:
		return "Unknown"
	}
}

// DataType is a P-Code operand data type specifier.
type DataType int

const (
	TypeUnknown DataType = iota
	TypeByte
	TypeBoolean
	TypeInteger
	TypeLong
	TypeSingle
	TypeVariant
	TypeString
	TypeObject
)

func (t DataType) String() string {
	switch t {
	case TypeByte:
		return "Byte"
	case TypeBoolean:
		return "Boolean"
	case TypeInteger:
		return "Integer"
	case TypeLong:
		return "Long"
	case TypeSingle:
		return "Single"
	case TypeVariant:
		return "Variant"
	case TypeString:
		return "String"
	case TypeObject:
		return "Object"
	default:
		return "Unknown"
	}
}

// info is one entry of the 256-slot static opcode table: mnemonic,
// operand format string, category, stack delta, and control-flow flags.
type info struct {
	mnemonic            string
	format              string
	category            Category
	stackDelta          int
	isBranch            bool
	isConditionalBranch bool
	isCall              bool
	isReturn            bool
}

// opcodeTable is keyed by primary opcode (0x00-0xFA); extended opcodes
// (0xFB-0xFF) are decoded separately in the disassembler. Unlisted entries
// are filled in by init with mnemonic "Unknown", category Unknown.
var opcodeTable [256]info

func reg(op byte, mnemonic, format string, category Category, stackDelta int) *info {
	opcodeTable[op] = info{mnemonic: mnemonic, format: format, category: category, stackDelta: stackDelta}
	return &opcodeTable[op]
}

func (i *info) branch(conditional bool) *info {
	i.isBranch = true
	i.isConditionalBranch = conditional
	return i
}

func (i *info) call() *info {
	i.isCall = true
	return i
}

func (i *info) ret() *info {
	i.isReturn = true
	return i
}

func init() {
	for i := range opcodeTable {
		opcodeTable[i] = info{mnemonic: "Unknown", category: CategoryUnknown}
	}

	// Control flow.
	reg(0x13, "ExitProcHresult", "", CategoryControlFlow, 0).ret()
	reg(0x14, "ExitProc", "", CategoryControlFlow, 0).ret()
	reg(0x1C, "BranchF", "l", CategoryControlFlow, -1).branch(true)
	reg(0x1D, "BranchT", "l", CategoryControlFlow, -1).branch(true)
	reg(0x1E, "Branch", "l", CategoryControlFlow, 0).branch(false)
	reg(0x4B, "OnErrorGoto", "l", CategoryControlFlow, 0)

	// Stack operations - literals.
	reg(0x1B, "LitStr", "z", CategoryStack, 1)
	reg(0x27, "LitVar_Missing", "", CategoryStack, 1)
	reg(0x28, "LitVarI2", "a%", CategoryStack, 1)
	reg(0x3A, "LitVarStr", "az", CategoryStack, 1)
	reg(0x5E, "LitI2", "a%", CategoryStack, 1)
	reg(0x5F, "LitI4", "d&", CategoryStack, 1)
	reg(0x60, "LitR4", "f!", CategoryStack, 1)
	reg(0x61, "LitR8", "g#", CategoryStack, 1)
	reg(0xA7, "LitVarI2_Byte", "b%", CategoryStack, 1)

	// Variable operations.
	reg(0x04, "FLdRfVar", "a", CategoryVariable, 1)
	reg(0x43, "FStStrCopy", "a", CategoryString, -1)
	reg(0x62, "FLdPrThis", "", CategoryVariable, 1)
	reg(0x69, "FLdI2", "a", CategoryVariable, 1)
	reg(0x6A, "FLdI4", "a", CategoryVariable, 1)
	reg(0x6D, "FStI2", "a", CategoryVariable, -1)
	reg(0x6E, "FStI4", "a", CategoryVariable, -1)

	// Function/method calls.
	reg(0x05, "ImpAdLdRf", "c", CategoryCall, 1)
	reg(0x09, "ImpAdCallHresult", "", CategoryCall, 0).call()
	reg(0x0A, "ImpAdCallFPR4", "x", CategoryCall, 0).call()
	reg(0x0D, "VCallHresult", "v", CategoryCall, 0).call()
	reg(0x7F, "CallHresult", "n", CategoryCall, 0).call()
	reg(0x80, "CallI2", "n", CategoryCall, 1).call()
	reg(0x81, "CallI4", "n", CategoryCall, 1).call()

	// String operations.
	reg(0x2A, "ConcatStr", "", CategoryString, -1)
	reg(0x2F, "FFree1Str", "", CategoryString, 0)
	reg(0x32, "FFreeStr", "", CategoryString, 0)
	reg(0x33, "LdFixedStr", "z", CategoryString, 1)
	reg(0x34, "CStr2Ansi", "", CategoryString, 0)
	reg(0x4A, "FnLenStr", "", CategoryString, 0)

	// Array operations.
	reg(0x3B, "Ary1StStrCopy", "", CategoryArray, -2)
	reg(0x40, "Ary1LdRf", "", CategoryArray, 0)
	reg(0x41, "Ary1LdPr", "", CategoryArray, 0)

	// Memory management.
	reg(0x1A, "FFree1Ad", "", CategoryMemory, 0)
	reg(0x29, "FFreeAd", "", CategoryMemory, 0)
	reg(0x35, "FFree1Var", "", CategoryMemory, 0)
	reg(0x36, "FFreeVar", "", CategoryMemory, 0)

	// Arithmetic.
	reg(0x95, "AddI2", "", CategoryArithmetic, -1)
	reg(0x96, "SubI2", "", CategoryArithmetic, -1)
	reg(0x97, "MulI2", "", CategoryArithmetic, -1)
	reg(0x9A, "NegI2", "", CategoryArithmetic, 0)

	// Comparison.
	reg(0xA0, "EqI2", "", CategoryComparison, -1)
	reg(0xA1, "NeI2", "", CategoryComparison, -1)
	reg(0xA2, "LeI2", "", CategoryComparison, -1)
	reg(0xA3, "GeI2", "", CategoryComparison, -1)
	reg(0xA4, "LtI2", "", CategoryComparison, -1)
	reg(0xA5, "GtI2", "", CategoryComparison, -1)
}

// opcodeInfo returns the static table entry for a standard (non-extended)
// opcode.
func opcodeInfo(opcode byte) *info {
	return &opcodeTable[opcode]
}

// isExtendedOpcode reports whether opcode introduces a two-byte extended
// instruction (0xFB-0xFF).
func isExtendedOpcode(opcode byte) bool {
	return opcode >= 0xFB
}
