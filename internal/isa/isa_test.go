package isa

import "testing"

func TestProgramFetchBounds(t *testing.T) {
	p := NewProgram([]Instr{
		{Op: OpSyscall, Args: Registers{A1: MAP, A2: 0, A3: 2}},
		{Op: OpHalt},
	})

	if p.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", p.Size())
	}

	instr, ok := p.Fetch(0)
	if !ok || instr.Op != OpSyscall || instr.Args.A1 != MAP {
		t.Fatalf("Fetch(0) = %+v, %v", instr, ok)
	}

	if _, ok := p.Fetch(2); ok {
		t.Fatalf("Fetch(2) should be out of range for a 2-instruction program")
	}
	if _, ok := p.Fetch(-1); ok {
		t.Fatalf("Fetch(-1) should be out of range")
	}
}

func TestSyscallOpcodesAreDistinct(t *testing.T) {
	seen := map[int]bool{}
	for _, op := range []int{MAP, INC, SWP, IORead, IOWrite} {
		if seen[op] {
			t.Fatalf("opcode %d reused", op)
		}
		seen[op] = true
	}
}
