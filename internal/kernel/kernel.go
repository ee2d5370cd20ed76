// Package kernel implements the CPU driver and process lifecycle glue
// (spec §4.8): the explicit Kernel value spec §9's redesign flag calls
// for in place of a global singleton, wiring RAM, the pager, and the
// scheduler together for the driver loop and the loader thread to share.
package kernel

import (
	"log/slog"

	"github.com/tinyrange/osvm/internal/isa"
	"github.com/tinyrange/osvm/internal/memphy"
	"github.com/tinyrange/osvm/internal/metrics"
	"github.com/tinyrange/osvm/internal/mm"
	"github.com/tinyrange/osvm/internal/oserr"
	"github.com/tinyrange/osvm/internal/pager"
	"github.com/tinyrange/osvm/internal/sched"
	"github.com/tinyrange/osvm/internal/sysmem"
	"github.com/tinyrange/osvm/internal/trace"
)

// Kernel bundles the simulated RAM, the demand pager built on top of
// it, and the scheduler, as the one explicit value every operation in
// this package takes instead of reaching for package-level state.
type Kernel struct {
	RAM      *memphy.Device
	Pager    *pager.Pager
	Sched    *sched.Scheduler
	PageSize int
	TimeSlot int

	Log *slog.Logger

	Metrics *metrics.Registry

	// Trace is optional; when set, RunCPU emits spec §6's human-readable
	// trace lines alongside its structured log records.
	Trace *trace.Printer

	nextPID int
}

// New creates a Kernel with the default scheduler level count
// (sched.MaxPrio). log may be nil, in which case slog.Default() is
// used.
func New(ram *memphy.Device, p *pager.Pager, pageSize, timeSlot int, log *slog.Logger) *Kernel {
	return NewWithLevels(ram, p, pageSize, timeSlot, sched.MaxPrio, log)
}

// NewWithLevels is New with an explicit scheduler level count, for a
// deployment whose tuning file (internal/config) overrides MaxPrio.
func NewWithLevels(ram *memphy.Device, p *pager.Pager, pageSize, timeSlot, maxPrio int, log *slog.Logger) *Kernel {
	if log == nil {
		log = slog.Default()
	}
	return &Kernel{
		RAM:      ram,
		Pager:    p,
		Sched:    sched.NewWithLevels(maxPrio),
		PageSize: pageSize,
		TimeSlot: timeSlot,
		Log:      log,
		nextPID:  1,
	}
}

// WithMetrics attaches m to the Kernel and propagates it to the pager
// and scheduler it owns, so a single call wires fault, eviction, OOM,
// and dispatch counters together instead of leaving callers to set
// each subsystem's Metrics field separately.
func (k *Kernel) WithMetrics(m *metrics.Registry) *Kernel {
	k.Metrics = m
	k.Pager.Metrics = m
	k.Sched.Metrics = m
	return k
}

// WithTrace attaches a trace.Printer for RunCPU's human-readable
// dispatch/finish/requeue/failure lines.
func (k *Kernel) WithTrace(t *trace.Printer) *Kernel {
	k.Trace = t
	return k
}

// AddProcess initializes a fresh Mm for code and registers a PCB with
// the scheduler at priority prio, per §4.8's "loads it, initializes its
// Mm, and calls add_proc". It returns the allocated PID.
func (k *Kernel) AddProcess(code isa.Code, prio int) (int, *oserr.Error) {
	pid := k.nextPID
	k.nextPID++

	pcb := &sched.PCB{
		PID:    pid,
		Prio:   prio,
		Mm:     mm.New(k.PageSize),
		Code:   code,
		Budget: k.TimeSlot,
	}
	if err := k.Sched.AddProc(pcb); err != nil {
		return 0, err
	}
	k.Log.Debug("process admitted", "pid", pid, "prio", prio)
	return pid, nil
}

// Dispatch routes regs through the syscall table for pid, via
// internal/sysmem.
func (k *Kernel) Dispatch(pid int, regs isa.Registers) (isa.Registers, *oserr.Error) {
	return sysmem.Dispatch(k.Sched, k.Pager, pid, regs)
}
