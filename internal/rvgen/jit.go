package rvgen

import (
	"github.com/lightplayer/lpxc/internal/builtins"
	"github.com/lightplayer/lpxc/internal/linker"
	"github.com/lightplayer/lpxc/internal/ssa"
)

// JITOptions controls the immediate-execution compile path: Compile the
// module, link it against the builtins/LPFX object in one step, and hand
// back an Image the caller can copy straight into emulator memory. This is
// the "JIT buffer" output mode; the relocatable-object mode is Compile
// alone, left for the caller to write out or hand to the linker itself.
type JITOptions struct {
	Base  uint32 // load address; 0 is fine for a single-image run
	Align uint32 // section alignment, defaults to 4
}

// JITLink compiles mod and links it together with the builtins/LPFX
// trampoline object, returning the flat image and the function-name to
// address map needed to find an entry point.
func JITLink(mod *ssa.Module, opts JITOptions) (*linker.Image, error) {
	if opts.Align == 0 {
		opts.Align = 4
	}
	l := linker.NewLinker(opts.Base, opts.Align)
	l.AddObject(Compile(mod))
	l.AddObject(builtins.BuildObject())
	return l.Link()
}
