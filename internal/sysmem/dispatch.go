// Package sysmem implements the syscall dispatcher (spec §4.6): the
// single entry point memory-bearing bytecode instructions funnel
// through, routing {MAP,INC,SWP,IO_READ,IO_WRITE} to the address-space
// allocator, the demand pager, or RAM directly.
//
// Dispatch takes the scheduler and pager it needs rather than a kernel
// value, so this package has no dependency on internal/kernel — the
// CPU driver (internal/kernel) imports sysmem, not the other way
// around. The opcode switch itself follows the teacher's device-command
// dispatch in internal/hv/riscv/ccvm/vm.go, generalized from MMIO ports
// to this spec's five memory opcodes.
package sysmem

import (
	"github.com/tinyrange/osvm/internal/isa"
	"github.com/tinyrange/osvm/internal/oserr"
	"github.com/tinyrange/osvm/internal/pager"
	"github.com/tinyrange/osvm/internal/sched"
	"github.com/tinyrange/osvm/internal/vmalloc"
)

// Dispatch resolves the caller's PCB by pid and routes regs.A1 through
// the opcode table in spec §4.6. It returns the (possibly mutated)
// register file the caller should see afterwards — IO_READ writes its
// result into A3, mirroring the spec's "return via regs.a3".
func Dispatch(s *sched.Scheduler, p *pager.Pager, pid int, regs isa.Registers) (isa.Registers, *oserr.Error) {
	pcb, err := s.FindByPID(pid)
	if err != nil {
		return regs, oserr.New("sys_memmap", oserr.NotFound)
	}

	switch regs.A1 {
	case isa.MAP:
		return regs, dispatchMap(pcb, p, regs)
	case isa.INC:
		return regs, dispatchInc(pcb, p, regs)
	case isa.SWP:
		return regs, p.SwapCopy(regs.A2, regs.A3)
	case isa.IORead:
		val, rerr := p.RAM.RandomRead(regs.A2)
		if rerr != nil {
			return regs, rerr
		}
		regs.A3 = int(val)
		return regs, nil
	case isa.IOWrite:
		return regs, p.RAM.RandomWrite(regs.A2, byte(regs.A3))
	default:
		return regs, oserr.New("sys_memmap", oserr.Unsupported)
	}
}

// dispatchMap implements MAP(vma_id, npages): ensure page directories
// exist and mark PTEs present for npages starting at the VMA's first
// page (vm_start), by funneling each page number through the pager exactly as a
// fault would (spec §4.6 and §4.4's shared-state-machine resolution,
// see internal/pager's package doc).
func dispatchMap(pcb *sched.PCB, p *pager.Pager, regs isa.Registers) *oserr.Error {
	vma, err := pcb.Mm.GetVMAByID(regs.A2)
	if err != nil {
		return err
	}
	startPgn := vma.Start / pcb.Mm.PageSize
	for i := 0; i < regs.A3; i++ {
		if _, err := p.GetPage(pcb.Mm, startPgn+i); err != nil {
			return err
		}
	}
	return nil
}

// dispatchInc implements INC(vma_id, size): grow the VMA's break.
func dispatchInc(pcb *sched.PCB, p *pager.Pager, regs isa.Registers) *oserr.Error {
	vma, err := pcb.Mm.GetVMAByID(regs.A2)
	if err != nil {
		return err
	}
	_, growErr := vmalloc.Grow(pcb.Mm, p, vma, regs.A3)
	return growErr
}
