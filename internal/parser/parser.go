// Package parser is a recursive-descent parser from the lexer's token
// stream to the untyped syntax tree in internal/ast. Expressions use
// precedence climbing; malformed input is reported as diagnostics and the
// parser resynchronises at the next ';' or '}' so several problems can
// surface from one run.
package parser

import (
	"strconv"

	"github.com/lightplayer/lpxc/internal/ast"
	"github.com/lightplayer/lpxc/internal/lexer"
	"github.com/lightplayer/lpxc/internal/source"
)

// Parse turns src into a syntax tree, collecting problems into diags.
// The returned file holds every declaration that parsed cleanly even when
// diagnostics were recorded.
func Parse(file string, src []byte, diags *source.DiagnosticSet) *ast.File {
	toks := lexer.Tokenize(file, src, diags)
	p := &parser{toks: toks, diags: diags}
	return p.parseFile()
}

type parser struct {
	toks  []lexer.Token
	pos   int
	diags *source.DiagnosticSet
}

// bailout unwinds the parser to the nearest recovery point after an
// unrecoverable token error; the value is meaningless.
type bailout struct{}

func (p *parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *parser) peek() lexer.Token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) at(kind lexer.TokenKind) bool { return p.cur().Kind == kind }

func (p *parser) advance() lexer.Token {
	tok := p.toks[p.pos]
	if tok.Kind != lexer.TokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) accept(kind lexer.TokenKind) bool {
	if p.at(kind) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expect(kind lexer.TokenKind, what string) lexer.Token {
	if p.at(kind) {
		return p.advance()
	}
	p.diags.Add(source.ErrExpectedToken, p.cur().Loc, "expected %s", what)
	panic(bailout{})
}

// sync skips tokens until just past the next ';' or to a '}' / EOF, the
// statement-level recovery points.
func (p *parser) sync() {
	for {
		switch p.cur().Kind {
		case lexer.TokSemicolon:
			p.advance()
			return
		case lexer.TokRBrace, lexer.TokEOF:
			return
		default:
			p.advance()
		}
	}
}

func (p *parser) parseFile() *ast.File {
	f := &ast.File{}
	for !p.at(lexer.TokEOF) {
		decl := p.parseTopDecl()
		if decl != nil {
			f.Decls = append(f.Decls, decl)
		}
	}
	return f
}

func (p *parser) parseTopDecl() (decl ast.Decl) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			p.sync()
			decl = nil
		}
	}()

	if p.at(lexer.TokConst) {
		return p.parseConstDecl()
	}
	if p.at(lexer.TokIdent) {
		return p.parseFuncDecl()
	}
	p.diags.Add(source.ErrUnexpectedToken, p.cur().Loc, "expected a declaration at top level")
	p.advance()
	p.sync()
	return nil
}

func (p *parser) parseConstDecl() ast.Decl {
	loc := p.expect(lexer.TokConst, "`const`").Loc
	ty := p.parseTypeName()
	name := p.expect(lexer.TokIdent, "constant name")
	p.parseArraySuffix(&ty)
	var init ast.Expr
	if p.accept(lexer.TokAssign) {
		init = p.parseExpr()
	}
	p.expect(lexer.TokSemicolon, "`;`")
	return &ast.ConstDecl{Type: ty, Name: name.Lexeme, Init: init, Loc: loc}
}

func (p *parser) parseFuncDecl() ast.Decl {
	ret := p.parseTypeName()
	name := p.expect(lexer.TokIdent, "function name")
	p.expect(lexer.TokLParen, "`(`")

	var params []ast.ParamDecl
	if !p.at(lexer.TokRParen) {
		for {
			params = append(params, p.parseParam())
			if !p.accept(lexer.TokComma) {
				break
			}
		}
	}
	p.expect(lexer.TokRParen, "`)`")

	p.expect(lexer.TokLBrace, "`{`")
	body := p.parseStmtList()
	p.expect(lexer.TokRBrace, "`}`")

	return &ast.FuncDecl{Return: ret, Name: name.Lexeme, Params: params, Body: body, Loc: name.Loc}
}

func (p *parser) parseParam() ast.ParamDecl {
	qual := ""
	switch p.cur().Kind {
	case lexer.TokIn:
		qual = "in"
		p.advance()
	case lexer.TokOut:
		qual = "out"
		p.advance()
	case lexer.TokInOut:
		qual = "inout"
		p.advance()
	case lexer.TokConst:
		qual = "const"
		p.advance()
	}
	ty := p.parseTypeName()
	name := p.expect(lexer.TokIdent, "parameter name")
	p.parseArraySuffix(&ty)
	return ast.ParamDecl{Qualifier: qual, Type: ty, Name: name.Lexeme, Loc: name.Loc}
}

// parseTypeName reads a type identifier. Array suffixes attach after the
// declared name (`float a[3]`), handled by parseArraySuffix at each site.
func (p *parser) parseTypeName() ast.TypeName {
	tok := p.expect(lexer.TokIdent, "type name")
	return ast.TypeName{Name: tok.Lexeme, Loc: tok.Loc}
}

// parseArraySuffix consumes an optional `[size]` or `[]` after a declared
// name and folds it into the type.
func (p *parser) parseArraySuffix(ty *ast.TypeName) {
	if !p.accept(lexer.TokLBracket) {
		return
	}
	ty.IsArray = true
	if !p.at(lexer.TokRBracket) {
		ty.ArraySize = p.parseExpr()
	}
	p.expect(lexer.TokRBracket, "`]`")
}

func (p *parser) parseStmtList() []ast.Stmt {
	var list []ast.Stmt
	for !p.at(lexer.TokRBrace) && !p.at(lexer.TokEOF) {
		stmt := p.parseStmtRecover()
		if stmt != nil {
			list = append(list, stmt)
		}
	}
	return list
}

func (p *parser) parseStmtRecover() (stmt ast.Stmt) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			p.sync()
			stmt = nil
		}
	}()
	return p.parseStmt()
}

func (p *parser) parseStmt() ast.Stmt {
	loc := p.cur().Loc
	switch p.cur().Kind {
	case lexer.TokLBrace:
		p.advance()
		list := p.parseStmtList()
		p.expect(lexer.TokRBrace, "`}`")
		return &ast.BlockStmt{List: list}

	case lexer.TokIf:
		return p.parseIf()

	case lexer.TokWhile:
		p.advance()
		p.expect(lexer.TokLParen, "`(`")
		cond := p.parseExpr()
		p.expect(lexer.TokRParen, "`)`")
		body := p.parseStmt()
		s := &ast.WhileStmt{Cond: cond, Body: body}
		s.Loc = loc
		return s

	case lexer.TokDo:
		p.advance()
		body := p.parseStmt()
		p.expect(lexer.TokWhile, "`while`")
		p.expect(lexer.TokLParen, "`(`")
		cond := p.parseExpr()
		p.expect(lexer.TokRParen, "`)`")
		p.expect(lexer.TokSemicolon, "`;`")
		s := &ast.DoWhileStmt{Body: body, Cond: cond}
		s.Loc = loc
		return s

	case lexer.TokFor:
		return p.parseFor()

	case lexer.TokBreak:
		p.advance()
		p.expect(lexer.TokSemicolon, "`;`")
		s := &ast.BreakStmt{}
		s.Loc = loc
		return s

	case lexer.TokContinue:
		p.advance()
		p.expect(lexer.TokSemicolon, "`;`")
		s := &ast.ContinueStmt{}
		s.Loc = loc
		return s

	case lexer.TokReturn:
		p.advance()
		var val ast.Expr
		if !p.at(lexer.TokSemicolon) {
			val = p.parseExpr()
		}
		p.expect(lexer.TokSemicolon, "`;`")
		s := &ast.ReturnStmt{Value: val}
		s.Loc = loc
		return s

	case lexer.TokConst:
		p.advance()
		stmt := p.parseDecl(true, loc)
		p.expect(lexer.TokSemicolon, "`;`")
		return stmt
	}

	// A statement starting with two identifiers is a declaration
	// (`float x ...`); anything else is an expression or assignment.
	if p.at(lexer.TokIdent) && p.peek().Kind == lexer.TokIdent {
		stmt := p.parseDecl(false, loc)
		p.expect(lexer.TokSemicolon, "`;`")
		return stmt
	}

	stmt := p.parseSimpleStmt()
	p.expect(lexer.TokSemicolon, "`;`")
	return stmt
}

func (p *parser) parseIf() ast.Stmt {
	loc := p.expect(lexer.TokIf, "`if`").Loc
	p.expect(lexer.TokLParen, "`(`")
	cond := p.parseExpr()
	p.expect(lexer.TokRParen, "`)`")
	then := p.parseStmt()
	var els ast.Stmt
	if p.accept(lexer.TokElse) {
		els = p.parseStmt()
	}
	s := &ast.IfStmt{Cond: cond, Then: then, Else: els}
	s.Loc = loc
	return s
}

func (p *parser) parseFor() ast.Stmt {
	loc := p.expect(lexer.TokFor, "`for`").Loc
	p.expect(lexer.TokLParen, "`(`")

	var init ast.Stmt
	if !p.at(lexer.TokSemicolon) {
		if p.at(lexer.TokIdent) && p.peek().Kind == lexer.TokIdent {
			init = p.parseDecl(false, p.cur().Loc)
		} else if p.at(lexer.TokConst) {
			cloc := p.advance().Loc
			init = p.parseDecl(true, cloc)
		} else {
			init = p.parseSimpleStmt()
		}
	}
	p.expect(lexer.TokSemicolon, "`;`")

	var cond ast.Expr
	if !p.at(lexer.TokSemicolon) {
		cond = p.parseExpr()
	}
	p.expect(lexer.TokSemicolon, "`;`")

	var update ast.Stmt
	if !p.at(lexer.TokRParen) {
		update = p.parseSimpleStmt()
	}
	p.expect(lexer.TokRParen, "`)`")

	body := p.parseStmt()
	s := &ast.ForStmt{Init: init, Cond: cond, Update: update, Body: body}
	s.Loc = loc
	return s
}

// parseDecl parses `type name [= init]` with the leading const already
// consumed; the caller supplies the statement's location and terminator.
func (p *parser) parseDecl(isConst bool, loc source.Loc) ast.Stmt {
	ty := p.parseTypeName()
	name := p.expect(lexer.TokIdent, "variable name")
	p.parseArraySuffix(&ty)
	var init ast.Expr
	if p.accept(lexer.TokAssign) {
		init = p.parseExpr()
	}
	s := &ast.DeclStmt{Const: isConst, Type: ty, Name: name.Lexeme, Init: init}
	s.Loc = loc
	return s
}

// assignOps maps assignment tokens to the compound operator's spelling;
// "" is plain assignment.
var assignOps = map[lexer.TokenKind]string{
	lexer.TokAssign:        "",
	lexer.TokPlusAssign:    "+",
	lexer.TokMinusAssign:   "-",
	lexer.TokStarAssign:    "*",
	lexer.TokSlashAssign:   "/",
	lexer.TokPercentAssign: "%",
	lexer.TokAmpAssign:     "&",
	lexer.TokPipeAssign:    "|",
	lexer.TokCaretAssign:   "^",
	lexer.TokShlAssign:     "<<",
	lexer.TokShrAssign:     ">>",
}

// parseSimpleStmt parses an assignment, an increment/decrement, or a bare
// expression -- the statement forms legal inside a for-clause.
func (p *parser) parseSimpleStmt() ast.Stmt {
	loc := p.cur().Loc

	if p.at(lexer.TokInc) || p.at(lexer.TokDec) {
		dec := p.advance().Kind == lexer.TokDec
		target := p.parseUnary()
		s := &ast.IncDecStmt{Target: target, Dec: dec}
		s.Loc = loc
		return s
	}

	x := p.parseExpr()

	if op, ok := assignOps[p.cur().Kind]; ok {
		p.advance()
		value := p.parseExpr()
		s := &ast.AssignStmt{Target: x, Op: op, Value: value}
		s.Loc = loc
		return s
	}
	if p.at(lexer.TokInc) || p.at(lexer.TokDec) {
		dec := p.advance().Kind == lexer.TokDec
		s := &ast.IncDecStmt{Target: x, Dec: dec}
		s.Loc = loc
		return s
	}

	s := &ast.ExprStmt{X: x}
	s.Loc = loc
	return s
}

// Binary operator precedence, tightest last. The ternary sits above all
// of these and is handled by parseExpr directly.
var binaryPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"|":  3,
	"^":  4,
	"&":  5,
	"==": 6, "!=": 6,
	"<": 7, "<=": 7, ">": 7, ">=": 7,
	"<<": 8, ">>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

var binaryTokens = map[lexer.TokenKind]string{
	lexer.TokOrOr: "||", lexer.TokAndAnd: "&&",
	lexer.TokPipe: "|", lexer.TokCaret: "^", lexer.TokAmp: "&",
	lexer.TokEq: "==", lexer.TokNe: "!=",
	lexer.TokLt: "<", lexer.TokLe: "<=", lexer.TokGt: ">", lexer.TokGe: ">=",
	lexer.TokShl: "<<", lexer.TokShr: ">>",
	lexer.TokPlus: "+", lexer.TokMinus: "-",
	lexer.TokStar: "*", lexer.TokSlash: "/", lexer.TokPercent: "%",
}

func (p *parser) parseExpr() ast.Expr {
	cond := p.parseBinary(1)
	if !p.at(lexer.TokQuestion) {
		return cond
	}
	loc := p.advance().Loc
	then := p.parseExpr()
	p.expect(lexer.TokColon, "`:`")
	els := p.parseExpr()
	e := &ast.TernaryExpr{Cond: cond, Then: then, Else: els}
	e.Loc = loc
	return e
}

func (p *parser) parseBinary(minPrec int) ast.Expr {
	x := p.parseUnary()
	for {
		op, ok := binaryTokens[p.cur().Kind]
		if !ok || binaryPrec[op] < minPrec {
			return x
		}
		loc := p.advance().Loc
		y := p.parseBinary(binaryPrec[op] + 1)
		e := &ast.BinaryExpr{Op: op, X: x, Y: y}
		e.Loc = loc
		x = e
	}
}

func (p *parser) parseUnary() ast.Expr {
	loc := p.cur().Loc
	switch p.cur().Kind {
	case lexer.TokMinus:
		p.advance()
		e := &ast.UnaryExpr{Op: "-", X: p.parseUnary()}
		e.Loc = loc
		return e
	case lexer.TokBang:
		p.advance()
		e := &ast.UnaryExpr{Op: "!", X: p.parseUnary()}
		e.Loc = loc
		return e
	case lexer.TokTilde:
		p.advance()
		e := &ast.UnaryExpr{Op: "~", X: p.parseUnary()}
		e.Loc = loc
		return e
	case lexer.TokPlus:
		p.advance()
		return p.parseUnary()
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() ast.Expr {
	x := p.parsePrimary()
	for {
		switch p.cur().Kind {
		case lexer.TokDot:
			p.advance()
			sel := p.expect(lexer.TokIdent, "component name")
			e := &ast.SelectorExpr{Base: x, Sel: sel.Lexeme}
			e.Loc = sel.Loc
			x = e
		case lexer.TokLBracket:
			loc := p.advance().Loc
			idx := p.parseExpr()
			p.expect(lexer.TokRBracket, "`]`")
			e := &ast.IndexExpr{Base: x, Index: idx}
			e.Loc = loc
			x = e
		default:
			return x
		}
	}
}

func (p *parser) parsePrimary() ast.Expr {
	tok := p.cur()
	switch tok.Kind {
	case lexer.TokIntLit:
		p.advance()
		v, err := strconv.ParseUint(tok.Lexeme, 0, 64)
		if err != nil {
			p.diags.Add(source.ErrUnexpectedToken, tok.Loc, "malformed integer literal %q", tok.Lexeme)
		}
		e := &ast.IntLit{Value: v}
		e.Loc = tok.Loc
		return e

	case lexer.TokUintLit:
		p.advance()
		v, err := strconv.ParseUint(tok.Lexeme, 0, 64)
		if err != nil {
			p.diags.Add(source.ErrUnexpectedToken, tok.Loc, "malformed integer literal %q", tok.Lexeme)
		}
		e := &ast.IntLit{Value: v, IsUint: true}
		e.Loc = tok.Loc
		return e

	case lexer.TokFloatLit:
		p.advance()
		v, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			p.diags.Add(source.ErrUnexpectedToken, tok.Loc, "malformed float literal %q", tok.Lexeme)
		}
		e := &ast.FloatLit{Value: v}
		e.Loc = tok.Loc
		return e

	case lexer.TokBoolLit:
		p.advance()
		e := &ast.BoolLit{Value: tok.Lexeme == "true"}
		e.Loc = tok.Loc
		return e

	case lexer.TokIdent:
		// Three shapes: `name(args)` call/constructor, `name[](args)` /
		// `name[n](args)` array constructor, or a plain reference.
		if p.peek().Kind == lexer.TokLParen {
			p.advance()
			p.advance()
			args := p.parseArgs()
			e := &ast.CallExpr{Func: tok.Lexeme, Args: args}
			e.Loc = tok.Loc
			return e
		}
		if p.peek().Kind == lexer.TokLBracket && p.isArrayLit() {
			return p.parseArrayLit(tok)
		}
		p.advance()
		e := &ast.Ident{Name: tok.Lexeme}
		e.Loc = tok.Loc
		return e

	case lexer.TokLParen:
		p.advance()
		x := p.parseExpr()
		p.expect(lexer.TokRParen, "`)`")
		e := &ast.ParenExpr{X: x}
		e.Loc = tok.Loc
		return e
	}

	p.diags.Add(source.ErrUnexpectedToken, tok.Loc, "expected an expression")
	panic(bailout{})
}

// isArrayLit looks ahead past `ident [` for the `] (` or `lit ] (` shape
// that distinguishes an array constructor from ordinary indexing.
func (p *parser) isArrayLit() bool {
	i := p.pos + 2 // past ident and '['
	depth := 1
	for i < len(p.toks) && depth > 0 {
		switch p.toks[i].Kind {
		case lexer.TokLBracket:
			depth++
		case lexer.TokRBracket:
			depth--
		case lexer.TokEOF:
			return false
		}
		i++
	}
	return i < len(p.toks) && p.toks[i].Kind == lexer.TokLParen
}

func (p *parser) parseArrayLit(tyTok lexer.Token) ast.Expr {
	p.advance() // type name
	p.advance() // '['
	var size ast.Expr
	if !p.at(lexer.TokRBracket) {
		size = p.parseExpr()
	}
	p.expect(lexer.TokRBracket, "`]`")
	p.expect(lexer.TokLParen, "`(`")
	args := p.parseArgs()
	e := &ast.ArrayLit{
		Elem: ast.TypeName{Name: tyTok.Lexeme, Loc: tyTok.Loc},
		Size: size,
		Args: args,
	}
	e.Loc = tyTok.Loc
	return e
}

func (p *parser) parseArgs() []ast.Expr {
	var args []ast.Expr
	if !p.at(lexer.TokRParen) {
		for {
			args = append(args, p.parseExpr())
			if !p.accept(lexer.TokComma) {
				break
			}
		}
	}
	p.expect(lexer.TokRParen, "`)`")
	return args
}
