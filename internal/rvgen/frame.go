package rvgen

import "github.com/lightplayer/lpxc/internal/ssa"

// frame is one function's stack layout. Every value that isn't kept in a
// register for its entire lifetime gets a 4-byte slot here; every
// ssa.OpStackSlot gets its own region sized to the instruction's request.
type frame struct {
	valueSlot map[ssa.Value]int32 // offset from sp, for spilled/global values
	allocSlot map[ssa.Value]int32 // offset from sp, for OpStackSlot results
	raOffset  int32
	saveOffset int32 // first save slot for the callee-saved registers in use
	size      int32
}

const wordSize = 4

func alignUp32(v, align int32) int32 {
	if align <= 0 {
		align = 4
	}
	return (v + align - 1) &^ (align - 1)
}

// buildFrame assigns a slot to every value that regs.home does not cover,
// plus a region for every OpStackSlot, plus the saved return address.
func buildFrame(fn *ssa.Function, regs *regAlloc) *frame {
	f := &frame{valueSlot: map[ssa.Value]int32{}, allocSlot: map[ssa.Value]int32{}}

	var cursor int32
	assign := func(v ssa.Value) {
		if _, ok := f.valueSlot[v]; ok {
			return
		}
		f.valueSlot[v] = cursor
		cursor += wordSize
	}

	for _, b := range fn.Blocks {
		for _, p := range b.Params {
			assign(p)
		}
		for _, instr := range b.Instrs {
			if instr.Op == ssa.OpStackSlot {
				cursor = alignUp32(cursor, int32(instr.Align))
				f.allocSlot[instr.ID] = cursor
				cursor += int32(instr.Size)
				// The pointer value itself still needs a spill word when
				// it has no home register; it must not share storage with
				// the region it addresses.
				if _, ok := regs.home[instr.ID]; !ok {
					assign(instr.ID)
				}
				continue
			}
			for _, v := range instr.Results() {
				if _, ok := regs.home[v]; ok {
					continue // lives in a register for its whole lifetime
				}
				assign(v)
			}
		}
	}

	f.raOffset = cursor
	cursor += wordSize
	f.saveOffset = cursor
	cursor += int32(len(regs.usedCalleeSaved())) * wordSize
	f.size = alignUp32(cursor, 16)
	return f
}

// slotOffset returns the frame offset of v's spill word.
func (f *frame) slotOffset(v ssa.Value) int32 {
	if off, ok := f.valueSlot[v]; ok {
		return off
	}
	return f.allocSlot[v]
}

// allocOffset returns the frame offset of the region an OpStackSlot
// reserved, as opposed to the spill word holding the pointer to it.
func (f *frame) allocOffset(v ssa.Value) int32 {
	return f.allocSlot[v]
}
