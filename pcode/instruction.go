// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pcode

import (
	"fmt"
	"strconv"
	"strings"
)

// OperandKind tags which field of OperandValue is live.
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandByte
	OperandInt16
	OperandInt32
	OperandFloat
	OperandString
)

// OperandValue is a decoded operand's payload. Exactly one field is
// meaningful, selected by Kind.
type OperandValue struct {
	Kind  OperandKind
	Byte  uint8
	Int16 int16
	Int32 int32
	Float float32
	Str   string
}

func (v OperandValue) String() string {
	switch v.Kind {
	case OperandByte:
		return fmt.Sprintf("0x%02X", v.Byte)
	case OperandInt16:
		return strconv.FormatInt(int64(v.Int16), 10)
	case OperandInt32:
		return strconv.FormatInt(int64(v.Int32), 10)
	case OperandFloat:
		return strconv.FormatFloat(float64(v.Float), 'g', -1, 32)
	case OperandString:
		return `"` + v.Str + `"`
	default:
		return ""
	}
}

// Operand is one decoded instruction operand.
type Operand struct {
	Value    OperandValue
	DataType DataType
}

// Instruction is a fully decoded P-Code instruction.
type Instruction struct {
	Address             uint32
	Opcode               byte
	ExtendedOpcode       *byte
	Mnemonic             string
	Operands             []Operand
	Bytes                []byte
	Category             Category
	StackDelta           int
	IsBranch             bool
	IsConditionalBranch  bool
	IsCall               bool
	IsReturn             bool
	BranchOffset         *int32
}

// String renders the instruction assembly-style: "AAAAAAAA  Mnemonic  ops".
func (instr *Instruction) String() string {
	operands := make([]string, len(instr.Operands))
	for i, op := range instr.Operands {
		operands[i] = op.Value.String()
	}
	operandsStr := strings.Join(operands, ", ")

	if operandsStr == "" {
		return fmt.Sprintf("%08X  %s", instr.Address, instr.Mnemonic)
	}
	return fmt.Sprintf("%08X  %s  %s", instr.Address, instr.Mnemonic, operandsStr)
}

// BytesHex renders the instruction's raw bytes as space-separated hex.
func (instr *Instruction) BytesHex() string {
	parts := make([]string, len(instr.Bytes))
	for i, b := range instr.Bytes {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}
