// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package codegen renders a lifted ir.Function as indented VB6 source text.
package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vbdecomp/vbdecompiler/ir"
)

// Generator walks a Function's basic blocks and renders VB6 source,
// tracking a running indent level.
type Generator struct {
	indentLevel int
}

// New returns a ready-to-use Generator.
func New() *Generator {
	return &Generator{}
}

// GenerateFunction renders function as a complete Sub/Function declaration:
// header, Dim lines, body, footer.
func (g *Generator) GenerateFunction(function *ir.Function) string {
	var b strings.Builder

	b.WriteString(g.generateHeader(function))
	b.WriteByte('\n')

	g.indentLevel++

	if len(function.Locals) > 0 {
		b.WriteString(g.generateLocals(function))
		b.WriteByte('\n')
	}

	b.WriteString(g.generateBody(function))

	g.indentLevel--

	b.WriteString(g.generateFooter(function))

	return b.String()
}

func (g *Generator) generateHeader(function *ir.Function) string {
	keyword := "Function"
	if function.IsSub() {
		keyword = "Sub"
	}

	params := make([]string, len(function.Parameters))
	for i, p := range function.Parameters {
		params[i] = fmt.Sprintf("%s As %s", p.Name, p.Type.String())
	}

	if function.IsSub() {
		return fmt.Sprintf("%s %s(%s)", keyword, function.Name, strings.Join(params, ", "))
	}
	return fmt.Sprintf("%s %s(%s) As %s", keyword, function.Name, strings.Join(params, ", "), function.ReturnType.String())
}

func (g *Generator) generateFooter(function *ir.Function) string {
	if function.IsSub() {
		return "End Sub"
	}
	return "End Function"
}

func (g *Generator) generateLocals(function *ir.Function) string {
	var b strings.Builder
	for _, local := range function.Locals {
		b.WriteString(g.indent())
		b.WriteString(fmt.Sprintf("Dim %s As %s\n", local.Name, local.Type.String()))
	}
	return b.String()
}

// generateBody emits blocks in their stored order, skipping empty blocks
// and prefixing merge points (more than one predecessor) with a label.
func (g *Generator) generateBody(function *ir.Function) string {
	var b strings.Builder
	for _, block := range function.Blocks {
		if len(block.Statements) == 0 {
			continue
		}
		if len(block.Predecessors) > 1 {
			b.WriteString(fmt.Sprintf("Block%d:\n", block.ID))
		}
		for _, stmt := range block.Statements {
			b.WriteString(g.GenerateStatement(&stmt))
		}
	}
	return b.String()
}

// GenerateStatement renders a single indented statement.
func (g *Generator) GenerateStatement(stmt *ir.Statement) string {
	switch stmt.Kind {
	case ir.StmtNop:
		return g.indent() + "' NOP\n"
	case ir.StmtAssign:
		return fmt.Sprintf("%s%s = %s\n", g.indent(), stmt.Target, g.GenerateExpression(stmt.Value))
	case ir.StmtStore:
		return fmt.Sprintf("%s[%s] = %s\n", g.indent(), g.GenerateExpression(stmt.Address), g.GenerateExpression(stmt.Value))
	case ir.StmtCall:
		if len(stmt.Args) == 0 {
			return fmt.Sprintf("%s%s\n", g.indent(), stmt.Name)
		}
		return fmt.Sprintf("%s%s %s\n", g.indent(), stmt.Name, g.joinExpressions(stmt.Args))
	case ir.StmtReturn:
		if stmt.HasValue {
			return fmt.Sprintf("%sReturnValue = %s\n%sExit Function\n", g.indent(), g.GenerateExpression(stmt.Value), g.indent())
		}
		return g.indent() + "Exit Sub\n"
	case ir.StmtBranch:
		return fmt.Sprintf("%sIf %s Then GoTo Block%d\n", g.indent(), g.GenerateExpression(stmt.Cond), stmt.TargetBlock)
	case ir.StmtGoto:
		return fmt.Sprintf("%sGoTo Block%d\n", g.indent(), stmt.TargetBlock)
	case ir.StmtLabel:
		return fmt.Sprintf("Label%d:\n", stmt.LabelID)
	default:
		return g.indent() + "' Unknown\n"
	}
}

// GenerateExpression renders an expression, fully parenthesising every
// binary operator with no precedence flattening.
func (g *Generator) GenerateExpression(expr *ir.Expression) string {
	if expr == nil {
		return ""
	}

	switch expr.Kind {
	case ir.ExprConstant:
		return g.generateConstant(expr.Value)
	case ir.ExprVariable:
		return expr.Name
	case ir.ExprUnary:
		if expr.Op == "Not" {
			return "Not " + g.GenerateExpression(expr.Operand)
		}
		return expr.Op + g.GenerateExpression(expr.Operand)
	case ir.ExprBinary:
		return fmt.Sprintf("(%s %s %s)", g.GenerateExpression(expr.Left), expr.Op, g.GenerateExpression(expr.Right))
	case ir.ExprCall:
		if len(expr.Args) == 0 {
			return expr.Name + "()"
		}
		return fmt.Sprintf("%s(%s)", expr.Name, g.joinExpressions(expr.Args))
	case ir.ExprMemberAccess:
		return fmt.Sprintf("%s.%s", g.GenerateExpression(expr.Object), expr.Field)
	case ir.ExprArrayIndex:
		return fmt.Sprintf("%s(%s)", g.GenerateExpression(expr.Base), g.joinExpressions(expr.Indices))
	case ir.ExprCast:
		return fmt.Sprintf("CType(%s, %s)", g.GenerateExpression(expr.Operand), expr.Type.String())
	default:
		return ""
	}
}

func (g *Generator) generateConstant(value ir.Constant) string {
	switch value.Kind {
	case ir.ConstantByte:
		return strconv.FormatUint(uint64(value.Byte), 10)
	case ir.ConstantInt16:
		return strconv.FormatInt(int64(value.Int16), 10)
	case ir.ConstantInt32:
		return strconv.FormatInt(int64(value.Int32), 10)
	case ir.ConstantFloat:
		return strconv.FormatFloat(float64(value.Float), 'g', -1, 32)
	case ir.ConstantString:
		return `"` + value.Str + `"`
	case ir.ConstantBool:
		if value.Bool {
			return "True"
		}
		return "False"
	default:
		return ""
	}
}

func (g *Generator) joinExpressions(exprs []*ir.Expression) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = g.GenerateExpression(e)
	}
	return strings.Join(parts, ", ")
}

func (g *Generator) indent() string {
	return strings.Repeat("    ", g.indentLevel)
}
