package ir

import "fmt"

// MaxArgs is the number of argument slots carried by a Context.
const MaxArgs = 4

// Arg is one typed argument of an intercepted call.
//
// Arguments are plain 64-bit words tagged with their width; addresses and
// integers share the representation. Handlers write results back into the
// same slots (a trylock reports its outcome in Args[1]).
type Arg struct {
	Width uint8
	Value uint64
}

// U64 builds a full-width argument.
func U64(v uint64) Arg {
	return Arg{Width: 8, Value: v}
}

// Addr builds an address argument.
func Addr(v uintptr) Arg {
	return Arg{Width: 8, Value: uint64(v)}
}

// Empty reports whether the slot is unused.
func (a Arg) Empty() bool {
	return a.Width == 0
}

// Context describes one intercepted call site. It is created by the
// interception layer, lives on the caller's stack, and is used for exactly
// one capture.
type Context struct {
	Cat  Category
	ID   TaskID
	VID  TaskID
	PC   uintptr
	Func string
	Args [MaxArgs]Arg
}

// NewContext builds a Context for cat with the given leading arguments.
// Panics if more than MaxArgs arguments are supplied.
func NewContext(cat Category, fn string, args ...Arg) Context {
	if len(args) > MaxArgs {
		panic(fmt.Sprintf("context %s: %d args exceeds %d", fn, len(args), MaxArgs))
	}
	ctx := Context{Cat: cat, Func: fn}
	copy(ctx.Args[:], args)
	return ctx
}

// String renders the context for logs.
func (c *Context) String() string {
	return fmt.Sprintf("%s task=%s func=%s", c.Cat, c.ID, c.Func)
}
