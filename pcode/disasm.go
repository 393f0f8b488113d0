// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pcode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/vbdecomp/vbdecompiler/errs"
)

// Disassembler walks a P-Code byte stream and produces Instructions.
type Disassembler struct {
	data   []byte
	offset int
}

// NewDisassembler wraps a method's raw P-Code bytes for disassembly.
func NewDisassembler(data []byte) *Disassembler {
	return &Disassembler{data: data}
}

// Disassemble decodes instructions from the current offset until a return
// instruction is hit, the buffer is exhausted, or a read overruns the
// buffer. A read overrun stops the walk and returns the partial stream
// alongside the error, matching the "partial stream returned" failure
// semantics for the P-Code disassembler.
func (d *Disassembler) Disassemble(address uint32) ([]Instruction, error) {
	var instructions []Instruction
	current := address

	for d.offset < len(d.data) {
		instr, err := d.disassembleOne(current)
		if err != nil {
			return instructions, err
		}

		current += uint32(len(instr.Bytes))
		done := instr.IsReturn
		instructions = append(instructions, *instr)
		if done {
			break
		}
	}

	return instructions, nil
}

func (d *Disassembler) disassembleOne(address uint32) (*Instruction, error) {
	start := d.offset

	opcode, err := d.readByte()
	if err != nil {
		return nil, err
	}

	instr := &Instruction{Address: address, Opcode: opcode}

	if isExtendedOpcode(opcode) {
		ext, err := d.readByte()
		if err != nil {
			return nil, err
		}
		instr.ExtendedOpcode = &ext
		instr.Mnemonic = extendedMnemonic(opcode, ext)
		instr.Category = CategoryUnknown
	} else {
		op := opcodeInfo(opcode)
		instr.Mnemonic = op.mnemonic
		instr.Category = op.category
		instr.StackDelta = op.stackDelta
		instr.IsBranch = op.isBranch
		instr.IsConditionalBranch = op.isConditionalBranch
		instr.IsCall = op.isCall
		instr.IsReturn = op.isReturn

		if err := d.decodeOperands(instr, op.format); err != nil {
			return nil, err
		}
	}

	instr.Bytes = append([]byte(nil), d.data[start:d.offset]...)
	return instr, nil
}

func (d *Disassembler) decodeOperands(instr *Instruction, format string) error {
	for i := 0; i < len(format); i++ {
		switch format[i] {
		case 'a':
			v, err := d.readByte()
			if err != nil {
				return err
			}
			instr.Operands = append(instr.Operands, Operand{Value: OperandValue{Kind: OperandByte, Byte: v}, DataType: TypeUnknown})
		case 'b':
			v, err := d.readByte()
			if err != nil {
				return err
			}
			instr.Operands = append(instr.Operands, Operand{Value: OperandValue{Kind: OperandByte, Byte: v}, DataType: TypeByte})
		case 'c':
			v, err := d.readInt16()
			if err != nil {
				return err
			}
			instr.Operands = append(instr.Operands, Operand{Value: OperandValue{Kind: OperandInt16, Int16: v}, DataType: TypeUnknown})
		case 'd':
			v, err := d.readInt32()
			if err != nil {
				return err
			}
			instr.Operands = append(instr.Operands, Operand{Value: OperandValue{Kind: OperandInt32, Int32: v}, DataType: TypeLong})
		case 'f':
			v, err := d.readFloat32()
			if err != nil {
				return err
			}
			instr.Operands = append(instr.Operands, Operand{Value: OperandValue{Kind: OperandFloat, Float: v}, DataType: TypeSingle})
		case 'l':
			v, err := d.readInt16()
			if err != nil {
				return err
			}
			off := int32(v)
			instr.BranchOffset = &off
			instr.Operands = append(instr.Operands, Operand{Value: OperandValue{Kind: OperandInt16, Int16: v}, DataType: TypeUnknown})
		case 'n':
			v, err := d.readInt16()
			if err != nil {
				return err
			}
			instr.Operands = append(instr.Operands, Operand{Value: OperandValue{Kind: OperandInt16, Int16: v}, DataType: TypeUnknown})
		case 'v':
			v, err := d.readInt16()
			if err != nil {
				return err
			}
			instr.Operands = append(instr.Operands, Operand{Value: OperandValue{Kind: OperandInt16, Int16: v}, DataType: TypeUnknown})
		case 'x':
			v, err := d.readByte()
			if err != nil {
				return err
			}
			instr.Operands = append(instr.Operands, Operand{Value: OperandValue{Kind: OperandByte, Byte: v}, DataType: TypeUnknown})
		case 'z':
			s, err := d.readString()
			if err != nil {
				return err
			}
			instr.Operands = append(instr.Operands, Operand{Value: OperandValue{Kind: OperandString, Str: s}, DataType: TypeString})
		case '%', '&', '!', '#', '~':
			// Type suffix: consumes no bytes and does not re-tag the
			// previous operand, which keeps the DataType its own format
			// character gave it.
		default:
			// Unknown format character: skip.
		}
	}
	return nil
}

func (d *Disassembler) readByte() (byte, error) {
	if d.offset >= len(d.data) {
		return 0, errs.Parse("unexpected end of P-Code")
	}
	v := d.data[d.offset]
	d.offset++
	return v, nil
}

func (d *Disassembler) readInt16() (int16, error) {
	if d.offset+2 > len(d.data) {
		return 0, errs.Parse("unexpected end of P-Code")
	}
	v := int16(binary.LittleEndian.Uint16(d.data[d.offset:]))
	d.offset += 2
	return v, nil
}

func (d *Disassembler) readInt32() (int32, error) {
	if d.offset+4 > len(d.data) {
		return 0, errs.Parse("unexpected end of P-Code")
	}
	v := int32(binary.LittleEndian.Uint32(d.data[d.offset:]))
	d.offset += 4
	return v, nil
}

func (d *Disassembler) readFloat32() (float32, error) {
	if d.offset+4 > len(d.data) {
		return 0, errs.Parse("unexpected end of P-Code")
	}
	bits := binary.LittleEndian.Uint32(d.data[d.offset:])
	d.offset += 4
	return math.Float32frombits(bits), nil
}

func (d *Disassembler) readString() (string, error) {
	start := d.offset
	for d.offset < len(d.data) && d.data[d.offset] != 0 {
		d.offset++
	}
	if d.offset >= len(d.data) {
		return "", errs.Parse("unterminated string operand")
	}
	s := string(d.data[start:d.offset])
	d.offset++ // skip NUL
	return s, nil
}

func extendedMnemonic(opcode, ext byte) string {
	return fmt.Sprintf("Extended_%02X_%02X", opcode, ext)
}
