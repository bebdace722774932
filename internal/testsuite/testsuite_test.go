package testsuite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lightplayer/lpxc/internal/config"
)

func TestParseDirectivesRunFile(t *testing.T) {
	src := []byte(`// test run
// target riscv32.q32
int f() { return 13; }
// run: f() == 13
// run: g(2.5) ~= vec3(1.0, 0.0, 0.0) [expect-fail]
`)
	f, err := ParseDirectives("x.glsl", src)
	if err != nil {
		t.Fatal(err)
	}
	if f.Kind != KindRun || f.Target != "riscv32.q32" {
		t.Fatalf("kind=%v target=%q", f.Kind, f.Target)
	}
	if len(f.Runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(f.Runs))
	}
	a := f.Runs[0]
	if a.Entry != "f" || a.Approx || len(a.Expected) != 1 || !a.Expected[0].IsInt || a.Expected[0].I != 13 {
		t.Fatalf("assertion 0 = %+v", a)
	}
	b := f.Runs[1]
	if b.Entry != "g" || !b.Approx || !b.ExpectFail || len(b.Expected) != 3 || len(b.Args) != 1 {
		t.Fatalf("assertion 1 = %+v", b)
	}
	if b.Expected[0].F != 1.0 || b.Expected[0].IsInt {
		t.Fatalf("expected[0] = %+v", b.Expected[0])
	}
}

func TestParseDirectivesInlineError(t *testing.T) {
	src := []byte("// test error\nconst float BAD; // expected-error {{const `BAD` must be initialized}}\n")
	f, err := ParseDirectives("x.glsl", src)
	if err != nil {
		t.Fatal(err)
	}
	if f.Kind != KindError || len(f.Errors) != 1 {
		t.Fatalf("file = %+v", f)
	}
	e := f.Errors[0]
	if e.Line != 2 || e.Substr != "const `BAD` must be initialized" {
		t.Fatalf("expectation = %+v", e)
	}
}

func TestParseDirectivesOffsetError(t *testing.T) {
	src := []byte("// test error\n// expected-error@+1 {{undefined variable}}\nint f() { return missing; }\n")
	f, err := ParseDirectives("x.glsl", src)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Errors) != 1 || f.Errors[0].Line != 3 {
		t.Fatalf("expectation = %+v", f.Errors)
	}
}

func TestParseDirectivesBlockError(t *testing.T) {
	src := []byte("// test error\n// EXPECT_ERROR_CODE: E0100\n// EXPECT_ERROR: undefined\n// EXPECT_LOCATION: 5\n")
	f, err := ParseDirectives("x.glsl", src)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Errors) != 2 {
		t.Fatalf("expectations = %+v", f.Errors)
	}
	if f.Errors[0].Code != "E0100" {
		t.Fatalf("code = %q", f.Errors[0].Code)
	}
	if f.Errors[1].Substr != "undefined" || f.Errors[1].Line != 5 {
		t.Fatalf("substr expectation = %+v", f.Errors[1])
	}
}

func TestParseDirectivesRejectsUnknownTarget(t *testing.T) {
	_, err := ParseDirectives("x.glsl", []byte("// test run\n// target x86_64\n"))
	if err == nil {
		t.Fatal("expected an error for an unsupported target")
	}
}

// TestTestdataFiles drives every shader file in testdata/ through the
// full pipeline: compile, Q32-lower, link against the builtins object,
// execute in the emulator, and check each file's own assertions.
func TestTestdataFiles(t *testing.T) {
	dir := filepath.Join("..", "..", "testdata")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading testdata: %v", err)
	}
	opts := config.Default()
	// Keep runaway loops short in the unit-test run.
	opts.InstrLimit = 200_000

	ran := 0
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".glsl" {
			continue
		}
		ran++
		path := filepath.Join(dir, e.Name())
		t.Run(e.Name(), func(t *testing.T) {
			results, err := RunFile(path, opts)
			if err != nil {
				t.Fatalf("harness error: %v", err)
			}
			for _, r := range results {
				if !r.Pass {
					t.Errorf("%s: %s", r.Desc, r.Msg)
				}
			}
		})
	}
	if ran == 0 {
		t.Fatal("no .glsl files found in testdata")
	}
}
