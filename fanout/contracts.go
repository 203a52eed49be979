package fanout

// Filter is the opaque byte-code filter evaluator: the core treats it as a black box returning accept/reject.
type Filter interface {
	Run(buf *Buff) bool
}

// FilterFunc adapts a plain function to Filter.
type FilterFunc func(buf *Buff) bool

func (f FilterFunc) Run(buf *Buff) bool { return f(buf) }

// ProgramResult is what program_run returns:
// pure with respect to the frame except for reference retention and monad
// writes.
type ProgramResult struct {
	Value *Buff // nil means "program dropped the frame"
}

// Program is the opaque functional-program evaluator. Ctx is the
// program's installed context.
type Program interface {
	Run(ctx any, buf *Buff, m *Monad) ProgramResult
}

type ProgramFunc func(ctx any, buf *Buff, m *Monad) ProgramResult

func (p ProgramFunc) Run(ctx any, buf *Buff, m *Monad) ProgramResult { return p(ctx, buf, m) }
