// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package lifter converts a disassembled P-Code instruction stream into an
// ir.Function: a two-pass process that first discovers basic-block
// boundaries at every branch target, then walks the instructions again,
// maintaining a virtual evaluation stack, to build typed IR expressions
// and statements.
package lifter

import (
	"fmt"
	"strings"

	"github.com/vbdecomp/vbdecompiler/errs"
	"github.com/vbdecomp/vbdecompiler/ir"
	"github.com/vbdecomp/vbdecompiler/pcode"
)

// Lifter lifts one method's P-Code instructions at a time; the only state
// it keeps between calls to Lift is the failure detail LastError reports.
type Lifter struct {
	lastError string
}

// New returns a ready-to-use Lifter.
func New() *Lifter {
	return &Lifter{}
}

// LastError returns the most recent lift failure's detail, or "" if the
// last Lift call succeeded.
func (l *Lifter) LastError() string {
	return l.lastError
}

// Lift converts instructions into a fully-built ir.Function named
// functionName. Lifting stops at the first return instruction.
func (l *Lifter) Lift(instructions []pcode.Instruction, functionName string) (*ir.Function, error) {
	l.lastError = ""
	if len(instructions) == 0 {
		return nil, errs.Decompilation("no instructions to lift")
	}

	ctx := newLiftContext(functionName)

	// Pass 1: discover every basic-block boundary a branch can target.
	for _, instr := range instructions {
		if !instr.IsBranch || instr.BranchOffset == nil || *instr.BranchOffset == 0 {
			continue
		}
		target := instr.Address + uint32(len(instr.Bytes)) + uint32(*instr.BranchOffset)
		ctx.getOrCreateBlock(target)
	}

	// Pass 2: lift each instruction in address order.
	for i := range instructions {
		instr := &instructions[i]

		if blockID, ok := ctx.addressToBlock[instr.Address]; ok && blockID != ctx.currentBlockID {
			if current := ctx.currentBlock(); current != nil && len(current.Statements) > 0 {
				ctx.connect(current.ID, blockID)
			}
			ctx.currentBlockID = blockID
		}

		if err := l.liftInstruction(instr, ctx); err != nil {
			l.lastError = fmt.Sprintf("failed to lift %s: %v", instr.Mnemonic, err)
			return nil, err
		}

		if instr.IsReturn {
			break
		}
	}

	return ctx.function, nil
}

func (l *Lifter) liftInstruction(instr *pcode.Instruction, ctx *liftContext) error {
	switch instr.Category {
	case pcode.CategoryArithmetic:
		return l.liftArithmetic(instr, ctx)
	case pcode.CategoryComparison:
		return l.liftComparison(instr, ctx)
	case pcode.CategoryLogical:
		return l.liftLogical(instr, ctx)
	case pcode.CategoryStack, pcode.CategoryVariable:
		return l.liftStack(instr, ctx)
	case pcode.CategoryMemory, pcode.CategoryArray:
		return nil
	case pcode.CategoryControlFlow:
		switch {
		case instr.IsBranch:
			return l.liftBranch(instr, ctx)
		case instr.IsReturn || strings.Contains(instr.Mnemonic, "Exit") || strings.Contains(instr.Mnemonic, "Return"):
			return l.liftReturn(instr, ctx)
		default:
			return nil
		}
	case pcode.CategoryCall:
		return l.liftCall(instr, ctx)
	default:
		return nil
	}
}

func arithmeticOp(mnemonic string) (string, bool) {
	switch {
	case strings.Contains(mnemonic, "Add"):
		return "+", true
	case strings.Contains(mnemonic, "Sub"):
		return "-", true
	case strings.Contains(mnemonic, "Mul"):
		return "*", true
	case strings.Contains(mnemonic, "Idiv"):
		return `\`, true
	case strings.Contains(mnemonic, "Div"):
		return "/", true
	case strings.Contains(mnemonic, "Mod"):
		return "Mod", true
	case strings.Contains(mnemonic, "Concat"):
		return "&", true
	default:
		return "", false
	}
}

func (l *Lifter) liftArithmetic(instr *pcode.Instruction, ctx *liftContext) error {
	op, ok := arithmeticOp(instr.Mnemonic)
	if !ok {
		return nil
	}
	right, err := ctx.pop()
	if err != nil {
		return err
	}
	left, err := ctx.pop()
	if err != nil {
		return err
	}
	ctx.push(ir.NewBinary(op, left, right, ir.Type{Kind: ir.KindVariant}))
	return nil
}

func comparisonOp(mnemonic string) (string, bool) {
	switch {
	case strings.Contains(mnemonic, "Eq"):
		return "=", true
	case strings.Contains(mnemonic, "Ne"):
		return "<>", true
	case strings.Contains(mnemonic, "Le"):
		return "<=", true
	case strings.Contains(mnemonic, "Ge"):
		return ">=", true
	case strings.Contains(mnemonic, "Lt"):
		return "<", true
	case strings.Contains(mnemonic, "Gt"):
		return ">", true
	default:
		return "", false
	}
}

func (l *Lifter) liftComparison(instr *pcode.Instruction, ctx *liftContext) error {
	op, ok := comparisonOp(instr.Mnemonic)
	if !ok {
		return nil
	}
	right, err := ctx.pop()
	if err != nil {
		return err
	}
	left, err := ctx.pop()
	if err != nil {
		return err
	}
	ctx.push(ir.NewBinary(op, left, right, ir.Type{Kind: ir.KindBoolean}))
	return nil
}

func (l *Lifter) liftLogical(instr *pcode.Instruction, ctx *liftContext) error {
	if strings.Contains(instr.Mnemonic, "Not") {
		operand, err := ctx.pop()
		if err != nil {
			return err
		}
		ctx.push(ir.NewUnary("Not", operand, ir.Type{Kind: ir.KindBoolean}))
		return nil
	}

	var op string
	switch {
	case strings.Contains(instr.Mnemonic, "And"):
		op = "And"
	case strings.Contains(instr.Mnemonic, "Or"):
		op = "Or"
	case strings.Contains(instr.Mnemonic, "Xor"):
		op = "Xor"
	default:
		return nil
	}

	right, err := ctx.pop()
	if err != nil {
		return err
	}
	left, err := ctx.pop()
	if err != nil {
		return err
	}
	ctx.push(ir.NewBinary(op, left, right, ir.Type{Kind: ir.KindBoolean}))
	return nil
}

func (l *Lifter) liftStack(instr *pcode.Instruction, ctx *liftContext) error {
	switch {
	case strings.Contains(instr.Mnemonic, "Lit"):
		return l.liftLiteral(instr, ctx)
	case strings.Contains(instr.Mnemonic, "LdLoc") || strings.Contains(instr.Mnemonic, "LoadLocal"):
		return l.liftLoadLocal(instr, ctx)
	case strings.Contains(instr.Mnemonic, "StLoc") || strings.Contains(instr.Mnemonic, "StoreLocal"):
		return l.liftStoreLocal(instr, ctx)
	default:
		return nil
	}
}

func (l *Lifter) liftLiteral(instr *pcode.Instruction, ctx *liftContext) error {
	if len(instr.Operands) == 0 {
		return errs.Decompilation("literal with no operands")
	}

	operand := instr.Operands[0]
	var value ir.Constant
	switch operand.Value.Kind {
	case pcode.OperandByte:
		value = ir.Constant{Kind: ir.ConstantByte, Byte: operand.Value.Byte}
	case pcode.OperandInt16:
		value = ir.Constant{Kind: ir.ConstantInt16, Int16: operand.Value.Int16}
	case pcode.OperandInt32:
		value = ir.Constant{Kind: ir.ConstantInt32, Int32: operand.Value.Int32}
	case pcode.OperandFloat:
		value = ir.Constant{Kind: ir.ConstantFloat, Float: operand.Value.Float}
	case pcode.OperandString:
		value = ir.Constant{Kind: ir.ConstantString, Str: operand.Value.Str}
	default:
		return errs.Decompilation("literal with no operand value")
	}

	typ := ir.FromPCodeType(operand.DataType.String())
	ctx.push(ir.NewConstant(value, typ))
	return nil
}

func localIndex(operand pcode.Operand) (uint32, bool) {
	switch operand.Value.Kind {
	case pcode.OperandByte:
		return uint32(operand.Value.Byte), true
	case pcode.OperandInt16:
		return uint32(operand.Value.Int16), true
	case pcode.OperandInt32:
		return uint32(operand.Value.Int32), true
	default:
		return 0, false
	}
}

func (l *Lifter) liftLoadLocal(instr *pcode.Instruction, ctx *liftContext) error {
	if len(instr.Operands) == 0 {
		return errs.Decompilation("load-local with no operands")
	}
	idx, ok := localIndex(instr.Operands[0])
	if !ok {
		return errs.Decompilation("load-local with invalid index type")
	}

	name := fmt.Sprintf("local%d", idx)
	typ := ir.FromPCodeType(instr.Operands[0].DataType.String())
	ctx.push(ir.NewVariable(name, typ))
	return nil
}

func (l *Lifter) liftStoreLocal(instr *pcode.Instruction, ctx *liftContext) error {
	if len(instr.Operands) == 0 {
		return errs.Decompilation("store-local with no operands")
	}

	value, err := ctx.pop()
	if err != nil {
		return err
	}

	idx, ok := localIndex(instr.Operands[0])
	if !ok {
		return errs.Decompilation("store-local with invalid index type")
	}

	name := fmt.Sprintf("local%d", idx)
	if block := ctx.currentBlock(); block != nil {
		block.Statements = append(block.Statements, ir.NewAssign(name, value))
	}
	return nil
}

func (l *Lifter) liftBranch(instr *pcode.Instruction, ctx *liftContext) error {
	if instr.BranchOffset == nil {
		return errs.Decompilation("branch instruction with no offset")
	}
	target := instr.Address + uint32(len(instr.Bytes)) + uint32(*instr.BranchOffset)

	if instr.IsConditionalBranch {
		cond, err := ctx.pop()
		if err != nil {
			return err
		}
		targetID := ctx.getOrCreateBlock(target)

		if block := ctx.currentBlock(); block != nil {
			block.Statements = append(block.Statements, ir.NewBranch(cond, targetID))
			ctx.connect(block.ID, targetID)
		}

		fallThroughID := ctx.createBlock()
		if block := ctx.currentBlock(); block != nil {
			ctx.connect(block.ID, fallThroughID)
		}
		ctx.currentBlockID = fallThroughID
		return nil
	}

	targetID := ctx.getOrCreateBlock(target)
	if block := ctx.currentBlock(); block != nil {
		block.Statements = append(block.Statements, ir.NewGoto(targetID))
		ctx.connect(block.ID, targetID)
	}
	ctx.currentBlockID = ctx.createBlock()
	return nil
}

func (l *Lifter) liftCall(instr *pcode.Instruction, ctx *liftContext) error {
	name := "func_unknown"
	if len(instr.Operands) > 0 {
		switch v := instr.Operands[0].Value; v.Kind {
		case pcode.OperandInt32:
			name = fmt.Sprintf("func_%d", v.Int32)
		case pcode.OperandInt16:
			name = fmt.Sprintf("func_%d", v.Int16)
		case pcode.OperandString:
			name = v.Str
		}
	}

	var args []*ir.Expression
	if strings.Contains(instr.Mnemonic, "CallFunc") || strings.Contains(instr.Mnemonic, "CallI4") {
		ctx.push(ir.NewCall(name, args, ir.Type{Kind: ir.KindVariant}))
		return nil
	}

	if block := ctx.currentBlock(); block != nil {
		block.Statements = append(block.Statements, ir.NewCallStmt(name, args))
	}
	return nil
}

func (l *Lifter) liftReturn(instr *pcode.Instruction, ctx *liftContext) error {
	var value *ir.Expression
	if !strings.Contains(instr.Mnemonic, "ExitProc") {
		value, _ = ctx.pop() // underflow yields Return(none), not an error
	}

	if block := ctx.currentBlock(); block != nil {
		block.Statements = append(block.Statements, ir.NewReturn(value))
	}
	return nil
}

// liftContext tracks the in-progress Function, the current block, the
// evaluation stack, and the address-to-block map used for block discovery.
type liftContext struct {
	function        *ir.Function
	currentBlockID  int
	evalStack       []*ir.Expression
	nextBlockID     int
	addressToBlock  map[uint32]int
}

func newLiftContext(name string) *liftContext {
	function := &ir.Function{Name: name, ReturnType: ir.Type{Kind: ir.KindVariant}, EntryBlockID: 0}
	function.Blocks = append(function.Blocks, &ir.BasicBlock{ID: 0})

	return &liftContext{
		function:       function,
		currentBlockID: 0,
		nextBlockID:    1,
		addressToBlock: make(map[uint32]int),
	}
}

func (ctx *liftContext) currentBlock() *ir.BasicBlock {
	return ctx.function.Block(ctx.currentBlockID)
}

func (ctx *liftContext) pop() (*ir.Expression, error) {
	n := len(ctx.evalStack)
	if n == 0 {
		return nil, errs.Decompilation("stack underflow")
	}
	v := ctx.evalStack[n-1]
	ctx.evalStack = ctx.evalStack[:n-1]
	return v, nil
}

func (ctx *liftContext) push(expr *ir.Expression) {
	ctx.evalStack = append(ctx.evalStack, expr)
}

func (ctx *liftContext) createBlock() int {
	id := ctx.nextBlockID
	ctx.nextBlockID++
	ctx.function.Blocks = append(ctx.function.Blocks, &ir.BasicBlock{ID: id})
	return id
}

// connect records a successor/predecessor edge pair between two blocks
// already present in the function.
func (ctx *liftContext) connect(fromID, toID int) {
	if from := ctx.function.Block(fromID); from != nil {
		from.AddSuccessor(toID)
	}
	if to := ctx.function.Block(toID); to != nil {
		to.AddPredecessor(fromID)
	}
}

func (ctx *liftContext) getOrCreateBlock(address uint32) int {
	if id, ok := ctx.addressToBlock[address]; ok {
		return id
	}
	id := ctx.createBlock()
	ctx.addressToBlock[address] = id
	return id
}
