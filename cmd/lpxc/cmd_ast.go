package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lightplayer/lpxc/internal/ast"
	"github.com/lightplayer/lpxc/internal/parser"
	"github.com/lightplayer/lpxc/internal/source"
)

func cmdAST(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: lpxc ast <file>")
		os.Exit(1)
	}
	file := filepath.Clean(args[0])

	var diags source.DiagnosticSet
	tree := parser.Parse(file, readSource(file), &diags)
	for _, d := range tree.Decls {
		printDecl(d)
	}
	if !diags.Empty() {
		reportDiags(&diags)
	}
}

func printDecl(d ast.Decl) {
	switch d := d.(type) {
	case *ast.ConstDecl:
		fmt.Printf("const %s %s = %s\n", typeString(d.Type), d.Name, exprString(d.Init))
	case *ast.FuncDecl:
		var params []string
		for _, p := range d.Params {
			s := typeString(p.Type) + " " + p.Name
			if p.Qualifier != "" {
				s = p.Qualifier + " " + s
			}
			params = append(params, s)
		}
		fmt.Printf("func %s %s(%s)\n", typeString(d.Return), d.Name, strings.Join(params, ", "))
		for _, s := range d.Body {
			printStmt(s, 1)
		}
	}
}

func indent(depth int) string { return strings.Repeat("  ", depth) }

func printStmt(s ast.Stmt, depth int) {
	pre := indent(depth)
	switch s := s.(type) {
	case *ast.DeclStmt:
		kw := ""
		if s.Const {
			kw = "const "
		}
		if s.Init != nil {
			fmt.Printf("%s%s%s %s = %s\n", pre, kw, typeString(s.Type), s.Name, exprString(s.Init))
		} else {
			fmt.Printf("%s%s%s %s\n", pre, kw, typeString(s.Type), s.Name)
		}
	case *ast.AssignStmt:
		fmt.Printf("%s%s %s= %s\n", pre, exprString(s.Target), s.Op, exprString(s.Value))
	case *ast.IncDecStmt:
		op := "++"
		if s.Dec {
			op = "--"
		}
		fmt.Printf("%s%s%s\n", pre, exprString(s.Target), op)
	case *ast.ExprStmt:
		fmt.Printf("%s%s\n", pre, exprString(s.X))
	case *ast.BlockStmt:
		fmt.Printf("%sblock\n", pre)
		for _, inner := range s.List {
			printStmt(inner, depth+1)
		}
	case *ast.IfStmt:
		fmt.Printf("%sif %s\n", pre, exprString(s.Cond))
		printStmt(s.Then, depth+1)
		if s.Else != nil {
			fmt.Printf("%selse\n", pre)
			printStmt(s.Else, depth+1)
		}
	case *ast.WhileStmt:
		fmt.Printf("%swhile %s\n", pre, exprString(s.Cond))
		printStmt(s.Body, depth+1)
	case *ast.DoWhileStmt:
		fmt.Printf("%sdo\n", pre)
		printStmt(s.Body, depth+1)
		fmt.Printf("%swhile %s\n", pre, exprString(s.Cond))
	case *ast.ForStmt:
		fmt.Printf("%sfor\n", pre)
		if s.Init != nil {
			printStmt(s.Init, depth+1)
		}
		if s.Cond != nil {
			fmt.Printf("%scond %s\n", indent(depth+1), exprString(s.Cond))
		}
		if s.Update != nil {
			printStmt(s.Update, depth+1)
		}
		printStmt(s.Body, depth+1)
	case *ast.BreakStmt:
		fmt.Printf("%sbreak\n", pre)
	case *ast.ContinueStmt:
		fmt.Printf("%scontinue\n", pre)
	case *ast.ReturnStmt:
		if s.Value != nil {
			fmt.Printf("%sreturn %s\n", pre, exprString(s.Value))
		} else {
			fmt.Printf("%sreturn\n", pre)
		}
	}
}

func typeString(t ast.TypeName) string {
	if !t.IsArray {
		return t.Name
	}
	if t.ArraySize != nil {
		return fmt.Sprintf("%s[%s]", t.Name, exprString(t.ArraySize))
	}
	return t.Name + "[]"
}

func exprString(e ast.Expr) string {
	switch e := e.(type) {
	case nil:
		return "<nil>"
	case *ast.Ident:
		return e.Name
	case *ast.IntLit:
		if e.IsUint {
			return fmt.Sprintf("%du", e.Value)
		}
		return fmt.Sprintf("%d", e.Value)
	case *ast.FloatLit:
		return fmt.Sprintf("%g", e.Value)
	case *ast.BoolLit:
		return fmt.Sprintf("%t", e.Value)
	case *ast.CallExpr:
		var args []string
		for _, a := range e.Args {
			args = append(args, exprString(a))
		}
		return fmt.Sprintf("%s(%s)", e.Func, strings.Join(args, ", "))
	case *ast.ArrayLit:
		var args []string
		for _, a := range e.Args {
			args = append(args, exprString(a))
		}
		return fmt.Sprintf("%s[](%s)", e.Elem.Name, strings.Join(args, ", "))
	case *ast.IndexExpr:
		return fmt.Sprintf("%s[%s]", exprString(e.Base), exprString(e.Index))
	case *ast.SelectorExpr:
		return fmt.Sprintf("%s.%s", exprString(e.Base), e.Sel)
	case *ast.UnaryExpr:
		return fmt.Sprintf("(%s%s)", e.Op, exprString(e.X))
	case *ast.BinaryExpr:
		return fmt.Sprintf("(%s %s %s)", exprString(e.X), e.Op, exprString(e.Y))
	case *ast.TernaryExpr:
		return fmt.Sprintf("(%s ? %s : %s)", exprString(e.Cond), exprString(e.Then), exprString(e.Else))
	case *ast.ParenExpr:
		return exprString(e.X)
	default:
		return fmt.Sprintf("<%T>", e)
	}
}
