package ssa

import (
	"fmt"
	"strings"
)

// Dump renders m as a textual listing, used by the lpxc ir command and by
// test golden output. The format is stable but not meant for re-parsing.
func (m *Module) Dump() string {
	var sb strings.Builder
	for _, e := range m.Externs {
		fmt.Fprintf(&sb, "extern %s(%s) -> (%s)\n", e.Symbol, joinTypes(e.Params), joinTypes(e.Returns))
	}
	if len(m.Externs) > 0 {
		sb.WriteString("\n")
	}
	for i, f := range m.Functions {
		if i > 0 {
			sb.WriteString("\n")
		}
		f.dump(&sb)
	}
	return sb.String()
}

func (f *Function) dump(sb *strings.Builder) {
	vis := "func"
	if f.Exported {
		vis = "export func"
	}
	fmt.Fprintf(sb, "%s %s(%s) -> (%s) {\n", vis, f.Name, joinTypes(f.Params), joinTypes(f.Returns))
	for _, b := range f.Blocks {
		b.dump(sb, f)
	}
	sb.WriteString("}\n")
}

func (b *Block) dump(sb *strings.Builder, f *Function) {
	fmt.Fprintf(sb, "  b%d(%s):\n", b.ID, joinParams(b.Params, b.ParamTypes))
	for _, instr := range b.Instrs {
		sb.WriteString("    ")
		instr.dump(sb, f)
		sb.WriteString("\n")
	}
}

func (instr *Instr) dump(sb *strings.Builder, f *Function) {
	if instr.ID != NoValue {
		fmt.Fprintf(sb, "v%d.%s = ", instr.ID, instr.Type)
	}
	sb.WriteString(instr.Op.String())
	switch instr.Op {
	case OpConst:
		fmt.Fprintf(sb, " %d", instr.Imm)
	case OpLoad:
		fmt.Fprintf(sb, " [v%d+%d]", instr.Args[0], instr.Offset)
	case OpStore:
		fmt.Fprintf(sb, " [v%d+%d], v%d", instr.Args[0], instr.Offset, instr.Args[1])
	case OpStackSlot:
		fmt.Fprintf(sb, " size=%d align=%d", instr.Size, instr.Align)
	case OpCall, OpCallIndirect:
		if instr.Op == OpCall {
			fmt.Fprintf(sb, " %s(%s)", instr.Symbol, joinValues(instr.Args))
		} else {
			fmt.Fprintf(sb, " (v%d)(%s)", instr.Args[0], joinValues(instr.Args[1:]))
		}
	case OpBr:
		fmt.Fprintf(sb, " %s", dumpEdge(instr.Succs[0]))
	case OpCondBr:
		fmt.Fprintf(sb, " v%d, %s, %s", instr.Args[0], dumpEdge(instr.Succs[0]), dumpEdge(instr.Succs[1]))
	case OpReturn:
		if len(instr.Args) > 0 {
			fmt.Fprintf(sb, " %s", joinValues(instr.Args))
		}
	default:
		if len(instr.Args) > 0 {
			fmt.Fprintf(sb, " %s", joinValues(instr.Args))
		}
	}
	_ = f
}

func dumpEdge(e Edge) string {
	if len(e.Args) == 0 {
		return fmt.Sprintf("b%d", e.Block)
	}
	return fmt.Sprintf("b%d(%s)", e.Block, joinValues(e.Args))
}

func joinValues(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprintf("v%d", v)
	}
	return strings.Join(parts, ", ")
}

func joinTypes(ts []Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

func joinParams(vs []Value, ts []Type) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprintf("v%d.%s", v, ts[i])
	}
	return strings.Join(parts, ", ")
}
