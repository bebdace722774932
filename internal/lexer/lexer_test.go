package lexer

import (
	"testing"

	"github.com/lightplayer/lpxc/internal/source"
)

func lex(t *testing.T, src string) []Token {
	t.Helper()
	var diags source.DiagnosticSet
	toks := Tokenize("test.glsl", []byte(src), &diags)
	if !diags.Empty() {
		t.Fatalf("unexpected diagnostics: %v", diags.All())
	}
	return toks
}

func kinds(toks []Token) []TokenKind {
	out := make([]TokenKind, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}

func TestTokenizeDeclaration(t *testing.T) {
	toks := lex(t, "const float x = 1.5;")
	want := []TokenKind{TokConst, TokIdent, TokIdent, TokAssign, TokFloatLit, TokSemicolon, TokEOF}
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d = %v, want %v", i, got[i], want[i])
		}
	}
	if toks[1].Lexeme != "float" || toks[2].Lexeme != "x" {
		t.Fatalf("lexemes = %q %q", toks[1].Lexeme, toks[2].Lexeme)
	}
}

func TestTokenizeNumbers(t *testing.T) {
	tests := []struct {
		src    string
		kind   TokenKind
		lexeme string
	}{
		{"42", TokIntLit, "42"},
		{"42u", TokUintLit, "42"},
		{"0x1f", TokIntLit, "0x1f"},
		{"1.5", TokFloatLit, "1.5"},
		{"1.", TokFloatLit, "1."},
		{".5", TokFloatLit, ".5"},
		{"1e3", TokFloatLit, "1e3"},
		{"2.5e-2", TokFloatLit, "2.5e-2"},
		{"3.0f", TokFloatLit, "3.0"},
	}
	for _, tt := range tests {
		toks := lex(t, tt.src)
		if toks[0].Kind != tt.kind {
			t.Errorf("%q: kind = %v, want %v", tt.src, toks[0].Kind, tt.kind)
		}
		if toks[0].Lexeme != tt.lexeme {
			t.Errorf("%q: lexeme = %q, want %q", tt.src, toks[0].Lexeme, tt.lexeme)
		}
	}
}

func TestTokenizeOperators(t *testing.T) {
	toks := lex(t, "a <= b << 2 <<= c == d && !e")
	want := []TokenKind{
		TokIdent, TokLe, TokIdent, TokShl, TokIntLit, TokShlAssign,
		TokIdent, TokEq, TokIdent, TokAndAnd, TokBang, TokIdent, TokEOF,
	}
	got := kinds(toks)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d = %v, want %v (all: %v)", i, got[i], want[i], got)
		}
	}
}

func TestTokenizeSwizzleVsFloat(t *testing.T) {
	// "a.zyx" must lex as ident dot ident, not consume ".z" as a number.
	toks := lex(t, "a.zyx")
	want := []TokenKind{TokIdent, TokDot, TokIdent, TokEOF}
	got := kinds(toks)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestTokenizeComments(t *testing.T) {
	toks := lex(t, "a // line comment\n/* block\ncomment */ b")
	want := []TokenKind{TokIdent, TokIdent, TokEOF}
	got := kinds(toks)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if toks[1].Loc.Line != 3 {
		t.Fatalf("b at line %d, want 3", toks[1].Loc.Line)
	}
}

func TestTokenizeLocations(t *testing.T) {
	toks := lex(t, "x\n  y")
	if toks[0].Loc.Line != 1 || toks[0].Loc.Column != 1 {
		t.Fatalf("x at %d:%d", toks[0].Loc.Line, toks[0].Loc.Column)
	}
	if toks[1].Loc.Line != 2 || toks[1].Loc.Column != 3 {
		t.Fatalf("y at %d:%d", toks[1].Loc.Line, toks[1].Loc.Column)
	}
}

func TestTokenizeUnexpectedChar(t *testing.T) {
	var diags source.DiagnosticSet
	toks := Tokenize("test.glsl", []byte("a @ b"), &diags)
	if diags.Empty() {
		t.Fatal("expected a diagnostic for '@'")
	}
	if !diags.HasCode(source.ErrUnexpectedChar) {
		t.Fatalf("diagnostic code = %v, want %v", diags.All()[0].Code, source.ErrUnexpectedChar)
	}
	// The surrounding tokens still come through.
	got := kinds(toks)
	want := []TokenKind{TokIdent, TokIdent, TokEOF}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestTokenizeUnterminatedBlockComment(t *testing.T) {
	var diags source.DiagnosticSet
	Tokenize("test.glsl", []byte("a /* never closed"), &diags)
	if !diags.HasCode(source.ErrUnterminated) {
		t.Fatal("expected an unterminated-comment diagnostic")
	}
}
