package ssa

import "fmt"

// NewFunction creates an empty function with a fresh entry block whose
// parameters are exactly params, in order. Use NewBuilder to append code.
func NewFunction(name string, params, returns []Type) *Function {
	f := &Function{
		Name:       name,
		Params:     params,
		Returns:    returns,
		valueTypes: make(map[Value]Type),
	}
	entry := f.newBlock()
	entry.ParamTypes = append([]Type{}, params...)
	for _, t := range params {
		entry.Params = append(entry.Params, f.newValue(t))
	}
	return f
}

func (f *Function) newValue(t Type) Value {
	v := f.nextValue
	f.nextValue++
	f.valueTypes[v] = t
	return v
}

func (f *Function) newBlock() *Block {
	b := &Block{ID: f.nextBlock}
	f.nextBlock++
	f.Blocks = append(f.Blocks, b)
	return b
}

// Builder appends instructions to one function, one block at a time. It
// has no notion of GLSL types or control-flow structure beyond what the
// caller drives explicitly with NewBlock/SetBlock.
type Builder struct {
	fn  *Function
	cur *Block
}

// NewBuilder returns a builder positioned at fn's entry block.
func NewBuilder(fn *Function) *Builder {
	return &Builder{fn: fn, cur: fn.Entry()}
}

// Func returns the function under construction.
func (b *Builder) Func() *Function { return b.fn }

// CurrentBlock returns the block new instructions are appended to.
func (b *Builder) CurrentBlock() *Block { return b.cur }

// NewBlock creates a fresh block with the given parameter types (for SSA
// joins) and returns it without switching the insertion point.
func (b *Builder) NewBlock(paramTypes ...Type) *Block {
	blk := b.fn.newBlock()
	blk.ParamTypes = append([]Type{}, paramTypes...)
	for _, t := range paramTypes {
		blk.Params = append(blk.Params, b.fn.newValue(t))
	}
	return blk
}

// SetBlock moves the insertion point to blk.
func (b *Builder) SetBlock(blk *Block) { b.cur = blk }

func (b *Builder) append(instr *Instr) {
	if len(b.cur.Instrs) > 0 && IsTerminator(b.cur.Instrs[len(b.cur.Instrs)-1].Op) {
		panic(fmt.Sprintf("ssa: block %d already terminated", b.cur.ID))
	}
	b.cur.Instrs = append(b.cur.Instrs, instr)
}

// Const emits an integer or pointer-null constant.
func (b *Builder) Const(t Type, imm int64) Value {
	v := b.fn.newValue(t)
	b.append(&Instr{ID: v, Op: OpConst, Type: t, Imm: imm})
	return v
}

// ConstF32 emits a float32 constant, valid only before the Q32 pass runs.
func (b *Builder) ConstF32(bits uint32) Value {
	v := b.fn.newValue(F32)
	b.append(&Instr{ID: v, Op: OpConst, Type: F32, Imm: int64(bits)})
	return v
}

// BinOp emits a binary arithmetic or bitwise instruction with result type t.
func (b *Builder) BinOp(op Op, t Type, x, y Value) Value {
	v := b.fn.newValue(t)
	b.append(&Instr{ID: v, Op: op, Type: t, Args: []Value{x, y}})
	return v
}

// UnOp emits a unary instruction (neg, not) with result type t.
func (b *Builder) UnOp(op Op, t Type, x Value) Value {
	v := b.fn.newValue(t)
	b.append(&Instr{ID: v, Op: op, Type: t, Args: []Value{x}})
	return v
}

// Cmp emits a comparison; the result is an I32 of 0 or 1.
func (b *Builder) Cmp(op Op, x, y Value) Value {
	v := b.fn.newValue(I32)
	b.append(&Instr{ID: v, Op: op, Type: I32, Args: []Value{x, y}})
	return v
}

// CmpTyped emits a comparison whose operand signedness is carried in t
// (the back end selects SLT vs SLTU from it); the result is still an I32
// of 0 or 1.
func (b *Builder) CmpTyped(op Op, t Type, x, y Value) Value {
	v := b.fn.newValue(I32)
	b.append(&Instr{ID: v, Op: op, Type: t, Args: []Value{x, y}})
	return v
}

// Load emits a typed load of *(ptr+offset).
func (b *Builder) Load(t Type, ptr Value, offset int32) Value {
	v := b.fn.newValue(t)
	b.append(&Instr{ID: v, Op: OpLoad, Type: t, Args: []Value{ptr}, Offset: offset})
	return v
}

// Store emits *(ptr+offset) = val; val's declared type is carried for the
// back end's width selection.
func (b *Builder) Store(ptr, val Value, offset int32, valType Type) {
	b.append(&Instr{ID: NoValue, Op: OpStore, Type: valType, Args: []Value{ptr, val}, Offset: offset})
}

// StackSlot reserves size bytes of frame-local storage aligned to align and
// returns a Ptr value addressing it, used for matrices, arrays, and any
// out/inout argument that needs a real address.
func (b *Builder) StackSlot(size, align uint32) Value {
	v := b.fn.newValue(Ptr)
	b.append(&Instr{ID: v, Op: OpStackSlot, Type: Ptr, Size: size, Align: align})
	return v
}

// Br emits an unconditional branch, terminating the current block.
func (b *Builder) Br(target BlockID, args ...Value) {
	b.append(&Instr{ID: NoValue, Op: OpBr, Succs: []Edge{{Block: target, Args: args}}})
}

// CondBr emits a conditional branch, terminating the current block.
func (b *Builder) CondBr(cond Value, trueTarget BlockID, trueArgs []Value, falseTarget BlockID, falseArgs []Value) {
	b.append(&Instr{
		ID: NoValue, Op: OpCondBr, Args: []Value{cond},
		Succs: []Edge{{Block: trueTarget, Args: trueArgs}, {Block: falseTarget, Args: falseArgs}},
	})
}

// Call emits a direct call to symbol, returning one Value per entry of sig.
// sig.len == 0 is a void call (returns nil).
func (b *Builder) Call(symbol string, sig []Type, args ...Value) []Value {
	results := b.reserveResults(sig)
	first := NoValue
	if len(results) > 0 {
		first = results[0]
	}
	b.append(&Instr{ID: first, Op: OpCall, Symbol: symbol, Args: args, Sig: sig})
	return results
}

// CallIndirect emits a call through a function-pointer value.
func (b *Builder) CallIndirect(calleePtr Value, sig []Type, args ...Value) []Value {
	results := b.reserveResults(sig)
	first := NoValue
	if len(results) > 0 {
		first = results[0]
	}
	b.append(&Instr{ID: first, Op: OpCallIndirect, Args: append([]Value{calleePtr}, args...), Sig: sig})
	return results
}

// reserveResults allocates one consecutive Value per return type, matching
// how a vector return explodes into successive scalar registers.
func (b *Builder) reserveResults(sig []Type) []Value {
	out := make([]Value, len(sig))
	for i, t := range sig {
		out[i] = b.fn.newValue(t)
	}
	return out
}

// Return emits a return instruction, terminating the current block.
func (b *Builder) Return(args ...Value) {
	b.append(&Instr{ID: NoValue, Op: OpReturn, Args: args})
}
