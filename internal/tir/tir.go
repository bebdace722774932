// Package tir is the typed intermediate representation semantic analysis
// produces and front-end codegen consumes: functions with typed
// parameters and a statement-tree body, fully name-resolved (every
// reference is a pointer to the Variable or Function it names, never a
// string looked up again downstream) and fully type-checked (every
// expression carries its own types.Type, already reconciled against GLSL's
// promotion rules).
package tir

import (
	"github.com/lightplayer/lpxc/internal/source"
	"github.com/lightplayer/lpxc/internal/types"
)

// Variable is one declared name: a parameter, a local, or a module-scope
// constant. Pointer identity is the only thing that distinguishes two
// variables with the same name in different scopes; nothing downstream
// ever looks one up by name again.
type Variable struct {
	Name string
	Type types.Type
	Loc  source.Loc
}

// Param is one function parameter: its storage plus its passing mode.
type Param struct {
	Var       *Variable
	Qualifier types.Qualifier
}

// Function is one compiled GLSL function: typed parameters, a return
// type (types.TVoid for a void function), and a statement-tree body.
// Exported functions are the shader's GLSL-visible entry points; every
// other function is an internal helper only callable from within the
// same module.
type Function struct {
	Name     string
	Params   []Param
	Return   types.Type
	Body     []Stmt
	Exported bool
	Loc      source.Loc
}

// Module is one fully analysed GLSL source file: its functions plus the
// module-scope `const` globals they may reference. Every global is
// const-qualified and initialised; const semantics are erased by the time
// front-end codegen runs, but the typed IR still carries the qualifier so
// diagnostics about writing to a const can be produced during analysis.
type Module struct {
	Functions  []*Function
	Globals    []*Variable
	GlobalInit map[*Variable]Expr
}

// FindFunction looks up a module-scope function by name.
func (m *Module) FindFunction(name string) (*Function, bool) {
	for _, f := range m.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}
