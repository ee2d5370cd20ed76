// Package isa defines the bytecode shapes the CPU driver (internal/kernel)
// consumes and the syscall dispatcher (internal/sysmem) routes on. Per
// spec §1, the instruction interpreter itself is an external collaborator;
// this package only fixes the wire shape both sides agree on, in the
// register-file style of the GVM bytecode reference doc in the example
// pack (a1-style argument registers rather than a stack machine).
package isa

// Syscall opcode values (spec §6). Stable within a build; user code
// reaches them through the memmap syscall group (17).
const (
	MAP     = 301
	INC     = 302
	SWP     = 303
	IORead  = 304
	IOWrite = 305
)

// MemmapGroup is the syscall group number user bytecode passes alongside
// one of the opcodes above: syscall(krnl, pid, MemmapGroup, regs).
const MemmapGroup = 17

// Registers is the argument/return register file a syscall sees (spec
// §4.6's regs.a1..a4). a1 carries the opcode; a2/a3/a4 are
// opcode-specific in/out slots.
type Registers struct {
	A1 int
	A2 int
	A3 int
	A4 int
}

// Op identifies a bytecode instruction's class. The interpreter proper
// lives outside this module; Syscall is the only op the core subsystems
// need to recognize to know when to hand off to the dispatcher.
type Op int

const (
	OpNop Op = iota
	OpSyscall
	OpHalt
)

// Instr is one decoded bytecode instruction: an opcode plus its packed
// register arguments.
type Instr struct {
	Op   Op
	Args Registers
}

// Code is the minimal surface the CPU driver needs from a loaded
// program: its instruction count and random-access fetch by program
// counter. Concrete loaders (internal/kernel.Loader and friends) produce
// values satisfying this interface; the driver never needs more.
type Code interface {
	// Size returns the number of instructions in the stream.
	Size() int
	// Fetch returns the instruction at pc, or ok=false if pc is out of
	// range.
	Fetch(pc int) (Instr, bool)
}

// Program is a reference Code implementation backed by a plain slice,
// suitable for tests and for small embedded/scripted workloads that
// don't need a text-format loader.
type Program struct {
	instrs []Instr
}

// NewProgram wraps instrs as a Code value. The slice is not copied;
// callers should not mutate it afterwards.
func NewProgram(instrs []Instr) *Program {
	return &Program{instrs: instrs}
}

func (p *Program) Size() int { return len(p.instrs) }

func (p *Program) Fetch(pc int) (Instr, bool) {
	if pc < 0 || pc >= len(p.instrs) {
		return Instr{}, false
	}
	return p.instrs[pc], true
}
