package rvgen

import (
	"sort"

	"github.com/lightplayer/lpxc/internal/riscv"
	"github.com/lightplayer/lpxc/internal/ssa"
)

// localPool is the set of physical registers available to values whose
// entire lifetime is confined to one block. Everything else (block
// parameters, values read in a different block than they're defined in, or
// values that outlive the pool during their own block) is spilled to its
// frame slot instead.
var localPool = []riscv.Reg{riscv.S1, riscv.S2, riscv.S3, riscv.S4, riscv.S5, riscv.S6, riscv.S7}

// regAlloc is the result of allocation for one function: which values live
// in a register for their whole lifetime, and which register.
type regAlloc struct {
	home map[ssa.Value]riscv.Reg
}

func (r *regAlloc) reg(v ssa.Value) (riscv.Reg, bool) {
	reg, ok := r.home[v]
	return reg, ok
}

// usedCalleeSaved returns the callee-saved registers allocation handed
// out, in pool order; the prologue must save exactly these.
func (r *regAlloc) usedCalleeSaved() []riscv.Reg {
	used := map[riscv.Reg]bool{}
	for _, reg := range r.home {
		used[reg] = true
	}
	var out []riscv.Reg
	for _, reg := range localPool {
		if used[reg] {
			out = append(out, reg)
		}
	}
	return out
}

// allocate runs an independent linear scan over each block: a value is a
// candidate only if it is defined by an instruction in the block (not a
// block parameter) and every use of it -- as a regular operand or as an
// edge argument -- occurs within that same block. Candidates are colored
// with localPool by interval; anything that doesn't fit a free register is
// left unassigned and falls back to its frame slot.
func allocate(fn *ssa.Function) *regAlloc {
	ra := &regAlloc{home: map[ssa.Value]riscv.Reg{}}
	crossBlock := crossBlockValues(fn)

	for _, b := range fn.Blocks {
		intervals := localIntervals(b, crossBlock)
		sort.Slice(intervals, func(i, j int) bool { return intervals[i].start < intervals[j].start })

		type active struct {
			end int
			reg riscv.Reg
		}
		var actives []active
		free := append([]riscv.Reg{}, localPool...)

		for _, iv := range intervals {
			kept := actives[:0]
			for _, a := range actives {
				if a.end < iv.start {
					free = append(free, a.reg)
				} else {
					kept = append(kept, a)
				}
			}
			actives = kept

			if len(free) == 0 {
				continue // spill: leave iv.value without a register home
			}
			reg := free[len(free)-1]
			free = free[:len(free)-1]
			ra.home[iv.value] = reg
			actives = append(actives, active{end: iv.end, reg: reg})
		}
	}
	return ra
}

type interval struct {
	value      ssa.Value
	start, end int
}

// crossBlockValues returns the set of values used in a different block than
// the one that defines them, as an instruction operand or as an edge
// argument. An edge argument in the defining block's own terminator is a
// use inside that block and does not by itself force a spill.
func crossBlockValues(fn *ssa.Function) map[ssa.Value]bool {
	def := map[ssa.Value]ssa.BlockID{}
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			for _, v := range instr.Results() {
				def[v] = b.ID
			}
		}
	}
	cross := map[ssa.Value]bool{}
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			for _, arg := range instr.Args {
				if db, ok := def[arg]; ok && db != b.ID {
					cross[arg] = true
				}
			}
			for _, e := range instr.Succs {
				for _, arg := range e.Args {
					if db, ok := def[arg]; ok && db != b.ID {
						cross[arg] = true
					}
				}
			}
		}
	}
	return cross
}

// localIntervals computes, for every value defined in b that is not in
// crossBlock, the [start,end] instruction-index range of its lifetime
// within b.
func localIntervals(b *ssa.Block, crossBlock map[ssa.Value]bool) []interval {
	defAt := map[ssa.Value]int{}
	for i, instr := range b.Instrs {
		for _, v := range instr.Results() {
			if !crossBlock[v] {
				defAt[v] = i
			}
		}
	}
	lastUse := map[ssa.Value]int{}
	for i, instr := range b.Instrs {
		for _, arg := range instr.Args {
			if _, ok := defAt[arg]; ok {
				lastUse[arg] = i
			}
		}
		for _, e := range instr.Succs {
			for _, arg := range e.Args {
				if _, ok := defAt[arg]; ok {
					lastUse[arg] = i
				}
			}
		}
	}
	var out []interval
	for v, start := range defAt {
		end := lastUse[v]
		if end < start {
			end = start
		}
		out = append(out, interval{value: v, start: start, end: end})
	}
	return out
}
