package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lightplayer/lpxc/internal/q32"
	"github.com/lightplayer/lpxc/internal/tir"
	"github.com/lightplayer/lpxc/internal/types"
)

func cmdIR(args []string) {
	fs := flag.NewFlagSet("ir", flag.ExitOnError)
	stage := fs.String("stage", "q32", "pipeline stage to dump: tir, ssa, or q32")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: lpxc ir [-stage tir|ssa|q32] <file>")
		fs.PrintDefaults()
		os.Exit(1)
	}
	fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
	}
	file := filepath.Clean(fs.Arg(0))

	switch *stage {
	case "tir":
		dumpTIR(analyzeFile(file))
	case "ssa":
		fmt.Print(lowerFile(file).Dump())
	case "q32":
		mod := lowerFile(file)
		if err := q32.Lower(mod); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Print(mod.Dump())
	default:
		fs.Usage()
	}
}

func dumpTIR(mod *tir.Module) {
	for _, g := range mod.Globals {
		fmt.Printf("const %s %s\n", g.Type, g.Name)
	}
	for _, fn := range mod.Functions {
		var params []string
		for _, p := range fn.Params {
			s := fmt.Sprintf("%s %s %s", p.Qualifier, p.Var.Type, p.Var.Name)
			params = append(params, strings.TrimSpace(s))
		}
		fmt.Printf("func %s %s(%s)\n", fn.Return, fn.Name, strings.Join(params, ", "))
		for _, s := range fn.Body {
			dumpTIRStmt(s, 1)
		}
	}
}

func dumpTIRStmt(s tir.Stmt, depth int) {
	pre := strings.Repeat("  ", depth)
	switch s := s.(type) {
	case *tir.VarDecl:
		if s.Init != nil {
			fmt.Printf("%svar %s %s = %s\n", pre, s.Var.Type, s.Var.Name, tirExprString(s.Init))
		} else {
			fmt.Printf("%svar %s %s\n", pre, s.Var.Type, s.Var.Name)
		}
	case *tir.Assign:
		fmt.Printf("%s%s = %s\n", pre, lvString(s.Target), tirExprString(s.Value))
	case *tir.ExprStmt:
		fmt.Printf("%s%s\n", pre, tirExprString(s.Value))
	case *tir.If:
		fmt.Printf("%sif %s\n", pre, tirExprString(s.Cond))
		for _, inner := range s.Then {
			dumpTIRStmt(inner, depth+1)
		}
		if s.Else != nil {
			fmt.Printf("%selse\n", pre)
			for _, inner := range s.Else {
				dumpTIRStmt(inner, depth+1)
			}
		}
	case *tir.While:
		fmt.Printf("%swhile %s\n", pre, tirExprString(s.Cond))
		for _, inner := range s.Body {
			dumpTIRStmt(inner, depth+1)
		}
	case *tir.DoWhile:
		fmt.Printf("%sdo\n", pre)
		for _, inner := range s.Body {
			dumpTIRStmt(inner, depth+1)
		}
		fmt.Printf("%swhile %s\n", pre, tirExprString(s.Cond))
	case *tir.For:
		fmt.Printf("%sfor\n", pre)
		if s.Init != nil {
			dumpTIRStmt(s.Init, depth+1)
		}
		if s.Cond != nil {
			fmt.Printf("%s  cond %s\n", pre, tirExprString(s.Cond))
		}
		if s.Update != nil {
			dumpTIRStmt(s.Update, depth+1)
		}
		for _, inner := range s.Body {
			dumpTIRStmt(inner, depth+1)
		}
	case *tir.Break:
		fmt.Printf("%sbreak\n", pre)
	case *tir.Continue:
		fmt.Printf("%scontinue\n", pre)
	case *tir.Return:
		if s.Value != nil {
			fmt.Printf("%sreturn %s\n", pre, tirExprString(s.Value))
		} else {
			fmt.Printf("%sreturn\n", pre)
		}
	}
}

func lvString(lv tir.LValue) string {
	s := lv.Base.Name
	if lv.Index != nil {
		s += "[" + tirExprString(lv.Index) + "]"
	}
	if lv.Components != nil {
		sel := ""
		for _, c := range lv.Components {
			sel += string("xyzw"[c])
		}
		s += "." + sel
	}
	return s
}

func tirExprString(e tir.Expr) string {
	switch e := e.(type) {
	case *tir.Literal:
		if e.Type().Scalar == types.Float {
			return fmt.Sprintf("%#x:%s", uint32(e.Bits), e.Type())
		}
		return fmt.Sprintf("%d:%s", int32(uint32(e.Bits)), e.Type())
	case *tir.VarRef:
		return e.Var.Name
	case *tir.Swizzle:
		sel := ""
		for _, c := range e.Components {
			sel += string("xyzw"[c])
		}
		return tirExprString(e.Base) + "." + sel
	case *tir.Index:
		return tirExprString(e.Base) + "[" + tirExprString(e.Idx) + "]"
	case *tir.VectorConstructor:
		return ctorString(e.Type().String(), e.Args)
	case *tir.MatrixConstructor:
		return ctorString(e.Type().String(), e.Args)
	case *tir.ArrayInit:
		return ctorString(e.Type().String(), e.Elems)
	case *tir.Unary:
		return fmt.Sprintf("(un%d %s)", e.Op, tirExprString(e.X))
	case *tir.Binary:
		return fmt.Sprintf("(bin%d %s %s):%s", e.Op, tirExprString(e.X), tirExprString(e.Y), e.Type())
	case *tir.Logical:
		op := "&&"
		if e.Op == tir.LogOr {
			op = "||"
		}
		return fmt.Sprintf("(%s %s %s)", tirExprString(e.X), op, tirExprString(e.Y))
	case *tir.Ternary:
		return fmt.Sprintf("(%s ? %s : %s)", tirExprString(e.Cond), tirExprString(e.Then), tirExprString(e.Else))
	case *tir.Convert:
		return fmt.Sprintf("convert[%s](%s)", e.Type(), tirExprString(e.X))
	case *tir.OutArg:
		return "&" + lvString(e.LV)
	case *tir.Call:
		return ctorString(e.Name, e.Args)
	default:
		return fmt.Sprintf("<%T>", e)
	}
}

func ctorString(name string, args []tir.Expr) string {
	var parts []string
	for _, a := range args {
		parts = append(parts, tirExprString(a))
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}
