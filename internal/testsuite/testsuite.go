// Package testsuite drives whole .glsl test files through the full
// pipeline -- parse, analyse, lower, Q32-transform, generate, link, run in
// the emulator -- checking the directives embedded in each file's
// comments. It backs both `lpxc test` and the repository's own Go tests
// over testdata/.
package testsuite

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/lightplayer/lpxc/internal/builtins"
	"github.com/lightplayer/lpxc/internal/config"
	"github.com/lightplayer/lpxc/internal/emulator"
	"github.com/lightplayer/lpxc/internal/fgen"
	"github.com/lightplayer/lpxc/internal/linker"
	"github.com/lightplayer/lpxc/internal/parser"
	"github.com/lightplayer/lpxc/internal/q32"
	"github.com/lightplayer/lpxc/internal/riscv"
	"github.com/lightplayer/lpxc/internal/rvgen"
	"github.com/lightplayer/lpxc/internal/sema"
	"github.com/lightplayer/lpxc/internal/source"
	"github.com/lightplayer/lpxc/internal/ssa"
)

// Result is one assertion's outcome.
type Result struct {
	Desc string
	Pass bool
	Msg  string
}

// RunFile loads, compiles, and exercises one test file, returning one
// Result per directive assertion. The error return covers harness-level
// problems (unreadable file, malformed directives), not test failures.
func RunFile(path string, opts config.Options) ([]Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := ParseDirectives(path, src)
	if err != nil {
		return nil, err
	}
	return runParsed(f, opts)
}

func runParsed(f *File, opts config.Options) ([]Result, error) {
	switch f.Kind {
	case KindError:
		return runErrorTest(f), nil
	case KindCompile:
		return runCompileTest(f, opts), nil
	case KindTransformQ32:
		return runTransformTest(f, opts), nil
	default:
		return runRunTest(f, opts), nil
	}
}

// compileToSSA runs the front half of the pipeline, stopping before the
// Q32 transform.
func compileToSSA(f *File) (*ssa.Module, *source.DiagnosticSet) {
	var diags source.DiagnosticSet
	file := parser.Parse(f.Path, f.Source, &diags)
	tmod := sema.Analyze(file, &diags)
	if !diags.Empty() {
		return nil, &diags
	}
	mod, err := fgen.Lower(tmod)
	if err != nil {
		diags.Add(source.ErrLoweringFailed, source.Loc{File: f.Path, Line: 1, Column: 1}, "%v", err)
		return nil, &diags
	}
	return mod, &diags
}

func runErrorTest(f *File) []Result {
	_, diags := compileToSSA(f)
	var results []Result
	if diags == nil || diags.Empty() {
		return []Result{{Desc: f.Path, Pass: false, Msg: "expected compile errors, got none"}}
	}
	for _, want := range f.Errors {
		r := Result{Desc: describeExpectation(f.Path, want)}
		r.Pass = matchExpectation(diags, want)
		if !r.Pass {
			r.Msg = fmt.Sprintf("no diagnostic matched; got %v", diags.All())
		}
		results = append(results, r)
	}
	if len(results) == 0 {
		// A bare `// test error` file passes as soon as anything fails.
		results = append(results, Result{Desc: f.Path, Pass: true})
	}
	return results
}

func describeExpectation(path string, want ErrorExpectation) string {
	switch {
	case want.Code != "":
		return fmt.Sprintf("%s: expect %s", path, want.Code)
	case want.Line > 0:
		return fmt.Sprintf("%s:%d: expect {{%s}}", path, want.Line, want.Substr)
	default:
		return fmt.Sprintf("%s: expect {{%s}}", path, want.Substr)
	}
}

func matchExpectation(diags *source.DiagnosticSet, want ErrorExpectation) bool {
	for _, d := range diags.All() {
		if want.Code != "" && string(d.Code) != want.Code {
			continue
		}
		if want.Substr != "" && !strings.Contains(d.Msg, want.Substr) {
			continue
		}
		if want.Line > 0 && d.Loc.Line != want.Line {
			continue
		}
		return true
	}
	return false
}

func runCompileTest(f *File, opts config.Options) []Result {
	mod, diags := compileToSSA(f)
	if mod == nil {
		return []Result{{Desc: f.Path, Pass: false, Msg: fmt.Sprintf("compile failed: %v", diags.All())}}
	}
	if err := q32.Lower(mod); err != nil {
		return []Result{{Desc: f.Path, Pass: false, Msg: err.Error()}}
	}
	if _, err := rvgen.JITLink(mod, rvgen.JITOptions{Base: opts.LoadBase}); err != nil {
		return []Result{{Desc: f.Path, Pass: false, Msg: err.Error()}}
	}
	return []Result{{Desc: f.Path, Pass: true}}
}

// runTransformTest checks the Q32 pass's own postcondition on the file:
// no float-typed value and no *_f32 symbol survives the transform.
func runTransformTest(f *File, opts config.Options) []Result {
	mod, diags := compileToSSA(f)
	if mod == nil {
		return []Result{{Desc: f.Path, Pass: false, Msg: fmt.Sprintf("compile failed: %v", diags.All())}}
	}
	if err := q32.Lower(mod); err != nil {
		return []Result{{Desc: f.Path, Pass: false, Msg: err.Error()}}
	}
	for _, fn := range mod.Functions {
		for _, b := range fn.Blocks {
			for i, t := range b.ParamTypes {
				if t == ssa.F32 {
					return []Result{{Desc: f.Path, Pass: false,
						Msg: fmt.Sprintf("%s: block %d param %d still f32", fn.Name, b.ID, i)}}
				}
			}
			for _, in := range b.Instrs {
				if in.Type == ssa.F32 {
					return []Result{{Desc: f.Path, Pass: false,
						Msg: fmt.Sprintf("%s: %s still f32-typed", fn.Name, in.Op)}}
				}
				if in.Op == ssa.OpCall && strings.HasSuffix(in.Symbol, "_f32") {
					return []Result{{Desc: f.Path, Pass: false,
						Msg: fmt.Sprintf("%s: call to %s survived the transform", fn.Name, in.Symbol)}}
				}
			}
		}
	}
	return []Result{{Desc: f.Path, Pass: true}}
}

func runRunTest(f *File, opts config.Options) []Result {
	mod, diags := compileToSSA(f)
	if mod == nil {
		return []Result{{Desc: f.Path, Pass: false, Msg: fmt.Sprintf("compile failed: %v", diags.All())}}
	}
	if err := q32.Lower(mod); err != nil {
		return []Result{{Desc: f.Path, Pass: false, Msg: err.Error()}}
	}
	img, err := rvgen.JITLink(mod, rvgen.JITOptions{Base: opts.LoadBase})
	if err != nil {
		return []Result{{Desc: f.Path, Pass: false, Msg: err.Error()}}
	}

	var results []Result
	for _, a := range f.Runs {
		r := checkAssertion(f, a, img, opts)
		if a.ExpectFail {
			if r.Pass {
				r = Result{Desc: r.Desc, Pass: false, Msg: "assertion marked [expect-fail] but passed"}
			} else {
				r = Result{Desc: r.Desc, Pass: true, Msg: "failed as expected: " + r.Msg}
			}
		}
		results = append(results, r)
	}
	if len(results) == 0 {
		results = append(results, Result{Desc: f.Path, Pass: true, Msg: "compiled and linked"})
	}
	return results
}

// Execute loads a linked image into a fresh emulator, calls entry with
// the given register arguments, and returns a0..a3 plus any trap.
func Execute(img *linker.Image, entry string, args []uint32, opts config.Options) ([4]uint32, *emulator.Trap, error) {
	addr, ok := img.Symbols[entry]
	if !ok {
		return [4]uint32{}, nil, fmt.Errorf("entry point %q not found in image", entry)
	}
	if uint64(opts.LoadBase)+uint64(len(img.Data)) > uint64(opts.EmulatorMemory) {
		return [4]uint32{}, nil, fmt.Errorf("image of %d bytes does not fit below %#x", len(img.Data), opts.EmulatorMemory)
	}

	mem := emulator.NewMemory(opts.EmulatorMemory)
	copy(mem.Bytes()[opts.LoadBase:], img.Data)

	emuOpts := emulator.Options{
		InstrLimit:   opts.InstrLimit,
		HostCallback: builtins.Dispatch,
	}
	if opts.Debug {
		emuOpts.Trace = func(pc uint32, d riscv.Decoded) {
			slog.Debug("exec", "pc", fmt.Sprintf("%#08x", pc), "instr", d.String())
		}
	}
	cpu := emulator.NewCPU(mem, emuOpts)
	// Stack grows down from the top of memory, 16-byte aligned.
	cpu.SetReg(riscv.Sp, (opts.EmulatorMemory-16)&^uint32(15))
	for i, a := range args {
		cpu.SetReg(riscv.ArgRegs[i], a)
	}
	cpu.SetPC(addr)

	// The sentinel sits far outside the address space, so a stray jump
	// to 0 traps instead of looking like a clean return.
	const sentinel = 0xffff0000
	tr := cpu.RunUntilReturn(sentinel)
	var out [4]uint32
	for i := range out {
		out[i] = cpu.Reg(riscv.ArgRegs[i])
	}
	return out, tr, nil
}

func checkAssertion(f *File, a RunAssertion, img *linker.Image, opts config.Options) Result {
	desc := fmt.Sprintf("%s:%d: %s()", f.Path, a.Line, a.Entry)

	args := make([]uint32, len(a.Args))
	for i, v := range a.Args {
		if v.IsInt {
			args[i] = uint32(int32(v.I))
		} else {
			args[i] = uint32(builtins.Encode(v.F))
		}
	}

	regs, tr, err := Execute(img, a.Entry, args, opts)
	if err != nil {
		return Result{Desc: desc, Pass: false, Msg: err.Error()}
	}
	if tr != nil {
		return Result{Desc: desc, Pass: false, Msg: tr.Error()}
	}
	if len(a.Expected) > 4 {
		return Result{Desc: desc, Pass: false, Msg: "expected value wider than four components"}
	}

	for i, want := range a.Expected {
		got := regs[i]
		if want.IsInt {
			if int64(int32(got)) != want.I {
				return Result{Desc: desc, Pass: false,
					Msg: fmt.Sprintf("component %d: got %d, want %d", i, int32(got), want.I)}
			}
			continue
		}
		gotF := builtins.Q32(got).Decode()
		if a.Approx {
			if math.Abs(gotF-want.F) > opts.Tolerance {
				return Result{Desc: desc, Pass: false,
					Msg: fmt.Sprintf("component %d: got %g, want %g (±%g)", i, gotF, want.F, opts.Tolerance)}
			}
		} else if builtins.Q32(got) != builtins.Encode(want.F) {
			return Result{Desc: desc, Pass: false,
				Msg: fmt.Sprintf("component %d: got %g, want exactly %g", i, gotF, want.F)}
		}
	}
	return Result{Desc: desc, Pass: true}
}
