package xdp

import "firestige.xyz/xdpwalk/internal/core"

// Program is invoked once per packet and returns the verdict for it.
// Run must not block and must not retain anything derived from ctx.
type Program interface {
	Name() string
	Run(ctx *Context) core.Action
}

type funcProgram struct {
	name string
	fn   func(*Context) core.Action
}

func (p funcProgram) Name() string                 { return p.name }
func (p funcProgram) Run(ctx *Context) core.Action { return p.fn(ctx) }

// ProgramFunc adapts a function to the Program interface.
func ProgramFunc(name string, fn func(*Context) core.Action) Program {
	return funcProgram{name: name, fn: fn}
}
