// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ir

// BasicBlock is a straight-line run of statements with explicit successor
// and predecessor edges. Every non-empty block conceptually ends with a
// control transfer; fallthrough is allowed when the successor is the
// textually next block.
type BasicBlock struct {
	ID           int
	Statements   []Statement
	Successors   []int
	Predecessors []int
}

// AddSuccessor records a successor edge, skipping duplicates.
func (b *BasicBlock) AddSuccessor(id int) {
	for _, s := range b.Successors {
		if s == id {
			return
		}
	}
	b.Successors = append(b.Successors, id)
}

// AddPredecessor records a predecessor edge, skipping duplicates.
func (b *BasicBlock) AddPredecessor(id int) {
	for _, p := range b.Predecessors {
		if p == id {
			return
		}
	}
	b.Predecessors = append(b.Predecessors, id)
}
