// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package x86util disassembles native x86 machine code: the fallback view
// offered for VB5/6 binaries compiled to native code rather than P-Code,
// which this module's core pipeline never lifts.
package x86util

import (
	"golang.org/x/arch/x86/x86asm"

	"github.com/vbdecomp/vbdecompiler/errs"
)

// Instruction is one decoded native x86 instruction.
type Instruction struct {
	Address uint32
	Bytes   []byte
	Text    string
	Length  int
}

// Disassembler decodes native x86 machine code at a fixed bitness. VB5/6
// executables are always 32-bit, so New32 covers every real input
// this module sees; the bitness is still a field, not a constant, so a
// caller inspecting a 64-bit host stub isn't forced to fork the type.
type Disassembler struct {
	mode int
}

// New returns a Disassembler for the given processor mode: 16, 32, or 64.
func New(mode int) *Disassembler {
	return &Disassembler{mode: mode}
}

// New32 returns a Disassembler for 32-bit mode, the VB5/6 default.
func New32() *Disassembler {
	return New(32)
}

// Disassemble decodes every instruction in code starting at address,
// stopping at the first byte it cannot decode. A partial result is
// returned alongside nil error; code that decodes nothing at all still
// returns an empty, non-nil slice.
func (d *Disassembler) Disassemble(code []byte, address uint32) ([]Instruction, error) {
	out := []Instruction{}
	offset := 0

	for offset < len(code) {
		inst, err := x86asm.Decode(code[offset:], d.mode)
		if err != nil || inst.Len == 0 {
			break
		}

		out = append(out, Instruction{
			Address: address + uint32(offset),
			Bytes:   code[offset : offset+inst.Len],
			Text:    x86asm.IntelSyntax(inst, uint64(address)+uint64(offset), nil),
			Length:  inst.Len,
		})
		offset += inst.Len
	}

	return out, nil
}

// DisassembleOne decodes a single instruction at the start of code.
func (d *Disassembler) DisassembleOne(code []byte, address uint32) (Instruction, error) {
	inst, err := x86asm.Decode(code, d.mode)
	if err != nil {
		return Instruction{}, errs.Decompilation("no instruction decoded: " + err.Error())
	}
	return Instruction{
		Address: address,
		Bytes:   code[:inst.Len],
		Text:    x86asm.IntelSyntax(inst, uint64(address), nil),
		Length:  inst.Len,
	}, nil
}
