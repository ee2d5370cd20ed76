package kernel

import (
	"runtime"
	"sync/atomic"

	"github.com/tinyrange/osvm/internal/isa"
	"github.com/tinyrange/osvm/internal/sched"
)

// LoaderBarrier is the termination signal the loader thread and the CPU
// driver threads share: the driver stops once the loader reports no
// more processes are coming AND the scheduler has nothing queued or
// running (spec §4.8's termination condition).
type LoaderBarrier struct {
	done atomic.Bool
}

// Finish marks the loader thread as having admitted every configured
// process.
func (b *LoaderBarrier) Finish() { b.done.Store(true) }

// Done reports whether the loader thread is finished.
func (b *LoaderBarrier) Done() bool { return b.done.Load() }

// RunCPU drives one simulated CPU thread to completion against k,
// following spec §4.8's per-tick decision table. cpu identifies this
// thread for trace/log lines only; it has no effect on scheduling. It
// returns once barrier.Done() is true and the scheduler has no
// runnable or running process left for this thread to pick up.
func (k *Kernel) RunCPU(cpu int, barrier *LoaderBarrier) {
	var current *sched.PCB

	for {
		if current == nil {
			current = k.Sched.GetProc()
			if current == nil {
				if barrier.Done() && k.Sched.QueueEmpty() {
					return
				}
				runtime.Gosched()
				continue
			}
			current.Budget = k.TimeSlot
			k.Log.Info("process dispatched", "cpu", cpu, "pid", current.PID, "prio", current.Prio)
			if k.Trace != nil {
				k.Trace.Dispatched(cpu, current.PID, current.Prio)
			}
			continue
		}

		if current.PC >= current.Code.Size() {
			k.Sched.FinishProc(current)
			k.Log.Info("process finished", "cpu", cpu, "pid", current.PID)
			if k.Trace != nil {
				k.Trace.Finished(cpu, current.PID)
			}
			current = nil
			continue
		}

		if current.Budget <= 0 {
			k.Sched.PutProc(current)
			k.Log.Debug("time slice exhausted", "cpu", cpu, "pid", current.PID)
			if k.Trace != nil {
				k.Trace.Requeued(cpu, current.PID)
			}
			current = nil
			continue
		}

		k.step(current)
	}
}

// step fetches and executes one bytecode instruction for pcb,
// dispatching memory-bearing syscalls through sysmem and decrementing
// the per-process time budget (spec §4.8).
func (k *Kernel) step(pcb *sched.PCB) {
	instr, ok := pcb.Code.Fetch(pcb.PC)
	if !ok {
		pcb.PC = pcb.Code.Size()
		return
	}

	switch instr.Op {
	case isa.OpSyscall:
		regs, err := k.Dispatch(pcb.PID, instr.Args)
		pcb.Regs = regs
		if err != nil {
			k.Log.Warn("syscall failed", "pid", pcb.PID, "op", instr.Args.A1, "code", err.Code)
			if k.Trace != nil {
				k.Trace.Failed(pcb.PID, "syscall", err.Code)
			}
		}
	case isa.OpHalt:
		pcb.PC = pcb.Code.Size()
		return
	case isa.OpNop:
		// no effect
	}

	pcb.PC++
	pcb.Budget--
}
