// Package sched implements the multi-level feedback queue scheduler
// (spec §4.7): per-priority ready queues with slot budgets, a running
// list, and the PID lookup the syscall dispatcher uses.
//
// The two-mutex dispatch discipline from spec §5 (a queue mutex plus a
// second "dispatch" mutex serializing get_proc's check-then-act
// sequence, acquired in dispatch→queue order) mirrors the lock-at-top,
// defer-unlock shape of the teacher's hv.AddressSpace methods, adapted
// to two cooperating locks instead of one.
package sched

import (
	"sync"

	"github.com/tinyrange/osvm/internal/isa"
	"github.com/tinyrange/osvm/internal/metrics"
	"github.com/tinyrange/osvm/internal/mm"
	"github.com/tinyrange/osvm/internal/oserr"
)

// MaxPrio is the default number of priority levels (spec §4.7). Level 0
// is the highest priority; slot[p] = maxPrio - p gives lower levels
// more dispatch slots per cycle. A deployment's tuning file
// (internal/config) may override the level count a Scheduler is built
// with; this constant is only the default New() uses.
const MaxPrio = 140

// PCB is one process's scheduling and execution state. It does not hold
// a back-pointer to a Kernel value: spec §9's redesign flag already
// retires the global kernel singleton in favor of passing an explicit
// *kernel.Kernel into every operation that needs one, which would make
// a PCB→Kernel pointer here an import cycle for no benefit.
type PCB struct {
	PID    int
	Prio   int
	PC     int
	Code   isa.Code
	Regs   isa.Registers
	Mm     *mm.Mm
	Budget int // ticks remaining in the current dispatch, spec §4.8
}

// Scheduler holds the MLQ state: ready queues, the running list, and
// the per-level dispatch budgets. Level slices are sized to maxPrio at
// construction rather than a fixed array, so a tuning file can shrink
// or grow the level count without a rebuild.
type Scheduler struct {
	mu      sync.Mutex // guards ready, running, currentSlot, currentPrio
	dispMu  sync.Mutex // serializes get_proc's check-then-act; acquired before mu
	ready   [][]*PCB
	running []*PCB

	slot        []int
	currentSlot []int
	currentPrio int

	// Metrics is optional; when set, GetProc reports each dispatch
	// (internal/metrics).
	Metrics *metrics.Registry
}

// New creates a Scheduler with the default MaxPrio levels.
func New() *Scheduler { return NewWithLevels(MaxPrio) }

// NewWithLevels creates a Scheduler with maxPrio levels, slot[p] =
// maxPrio - p for every level. Used when internal/config's tuning file
// overrides the default level count.
func NewWithLevels(maxPrio int) *Scheduler {
	s := &Scheduler{
		ready:       make([][]*PCB, maxPrio),
		slot:        make([]int, maxPrio),
		currentSlot: make([]int, maxPrio),
	}
	for p := 0; p < maxPrio; p++ {
		s.slot[p] = maxPrio - p
	}
	return s
}

// Levels returns the number of priority levels this Scheduler was built
// with.
func (s *Scheduler) Levels() int { return len(s.slot) }

// AddProc validates p.Prio and enqueues it at the tail of its ready
// level.
func (s *Scheduler) AddProc(p *PCB) *oserr.Error {
	if p.Prio < 0 || p.Prio >= s.Levels() {
		return oserr.New("add_proc", oserr.InvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready[p.Prio] = append(s.ready[p.Prio], p)
	return nil
}

// GetProc scans priorities cyclically from currentPrio for a level with
// a non-empty ready queue whose budget isn't exhausted, dequeues its
// head into the running list, and advances the cursor. If a full cycle
// finds nothing, every currentSlot is reset and currentPrio rewound to
// 0 for one retry, per spec §4.7.
func (s *Scheduler) GetProc() *PCB {
	s.dispMu.Lock()
	defer s.dispMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if pcb := s.scanOnce(); pcb != nil {
		return pcb
	}

	for p := range s.currentSlot {
		s.currentSlot[p] = 0
	}
	s.currentPrio = 0
	return s.scanOnce()
}

// scanOnce performs a single cyclic scan of up to Levels() levels
// starting at currentPrio. Callers must hold s.mu.
func (s *Scheduler) scanOnce() *PCB {
	n := s.Levels()
	for i := 0; i < n; i++ {
		level := (s.currentPrio + i) % n
		if len(s.ready[level]) == 0 || s.currentSlot[level] >= s.slot[level] {
			continue
		}

		pcb := s.ready[level][0]
		s.ready[level] = s.ready[level][1:]
		s.running = append(s.running, pcb)
		s.currentSlot[level]++

		if s.currentSlot[level] >= s.slot[level] {
			s.currentSlot[level] = 0
			s.currentPrio = (level + 1) % n
		} else {
			s.currentPrio = level
		}
		if s.Metrics != nil {
			s.Metrics.ObserveDispatch(pcb.Prio)
		}
		return pcb
	}
	return nil
}

// PutProc removes p from the running list and re-enqueues it at the
// tail of its ready level.
func (s *Scheduler) PutProc(p *PCB) *oserr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.removeRunning(p.PID) {
		return oserr.New("put_proc", oserr.NotFound)
	}
	s.ready[p.Prio] = append(s.ready[p.Prio], p)
	return nil
}

// FinishProc removes p from the running list. The caller is
// responsible for releasing any resources the PCB held.
func (s *Scheduler) FinishProc(p *PCB) *oserr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.removeRunning(p.PID) {
		return oserr.New("finish_proc", oserr.NotFound)
	}
	return nil
}

func (s *Scheduler) removeRunning(pid int) bool {
	for i, pcb := range s.running {
		if pcb.PID == pid {
			s.running = append(s.running[:i], s.running[i+1:]...)
			return true
		}
	}
	return false
}

// FindByPID searches the running list, then every ready queue, for pid.
func (s *Scheduler) FindByPID(pid int) (*PCB, *oserr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, pcb := range s.running {
		if pcb.PID == pid {
			return pcb, nil
		}
	}
	for level := range s.ready {
		for _, pcb := range s.ready[level] {
			if pcb.PID == pid {
				return pcb, nil
			}
		}
	}
	return nil, oserr.New("find_process_by_pid", oserr.NotFound)
}

// Snapshot returns every PCB currently tracked by the scheduler, across
// the running list and every ready level, for trace.Snapshot's golden
// dumps. It does not reflect ordering within a level beyond the slice
// order already held.
func (s *Scheduler) Snapshot() []*PCB {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*PCB, 0, len(s.running))
	all = append(all, s.running...)
	for level := range s.ready {
		all = append(all, s.ready[level]...)
	}
	return all
}

// ReadyPIDs returns, for each non-empty ready level, the PIDs queued at
// that level in FIFO order.
func (s *Scheduler) ReadyPIDs() map[int][]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int][]int)
	for level, pcbs := range s.ready {
		if len(pcbs) == 0 {
			continue
		}
		pids := make([]int, len(pcbs))
		for i, pcb := range pcbs {
			pids[i] = pcb.PID
		}
		out[level] = pids
	}
	return out
}

// QueueEmpty reports whether every ready level and the running list are
// empty.
func (s *Scheduler) QueueEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.running) != 0 {
		return false
	}
	for level := range s.ready {
		if len(s.ready[level]) != 0 {
			return false
		}
	}
	return true
}
