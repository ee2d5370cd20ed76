// Package pager implements the demand pager (spec §4.5): resolving a
// page number to a resident frame, with FIFO victim selection and
// page-in/page-out copying between RAM and swap.
//
// VMA growth (internal/vmalloc) also calls GetPage for each
// newly-reserved page number. A freshly reserved page number has never
// had a page-table entry written, so it reads back Unallocated — the
// same starting state a first-touch page fault sees — which lets
// growth and faulting share one state machine. This resolves the
// tension between spec §4.4's "batch-allocate or fail" vm_map_ram
// description and the §8 E2 scenario: an allocation that exceeds free
// RAM succeeds by evicting a page to swap rather than failing outright.
package pager

import (
	"github.com/tinyrange/osvm/internal/memphy"
	"github.com/tinyrange/osvm/internal/metrics"
	"github.com/tinyrange/osvm/internal/mm"
	"github.com/tinyrange/osvm/internal/oserr"
)

// Pager resolves page faults for one RAM device against a set of swap
// devices.
type Pager struct {
	RAM        *memphy.Device
	Swaps      []*memphy.Device
	ActiveSwap int

	// Metrics is optional; when set, fault/eviction/OOM counters are
	// reported as they occur (internal/metrics).
	Metrics *metrics.Registry
}

// New creates a Pager. swaps must be non-empty; activeSwap indexes the
// device new victim writes target (spec's "Active swap").
func New(ram *memphy.Device, swaps []*memphy.Device, activeSwap int) *Pager {
	return &Pager{RAM: ram, Swaps: swaps, ActiveSwap: activeSwap}
}

// WithMetrics attaches a metrics registry and returns p for chaining.
func (p *Pager) WithMetrics(m *metrics.Registry) *Pager {
	p.Metrics = m
	return p
}

func (p *Pager) activeSwap() *memphy.Device { return p.Swaps[p.ActiveSwap] }

// GetPage resolves pgn to a resident frame number, running the state
// machine from spec §4.5's table and mutating m's page table, the RAM
// and swap devices, and the FIFO queue as a side effect.
func (p *Pager) GetPage(m *mm.Mm, pgn int) (int, *oserr.Error) {
	entry := m.PteGet(pgn)

	if entry.Present() {
		return entry.FPN(), nil
	}

	if !entry.Swapped() {
		return p.faultInFresh(m, pgn)
	}

	return p.faultInSwapped(m, pgn, entry.SwapType(), entry.SwapOff())
}

// faultInFresh handles PRESENT=0, SWAPPED=0: the page has never been
// backed by a frame before.
func (p *Pager) faultInFresh(m *mm.Mm, pgn int) (int, *oserr.Error) {
	fpn, err := p.RAM.GetFreeFrame()
	if err == nil {
		m.PteSetFPN(pgn, fpn)
		m.FifoEnqueue(pgn)
		p.observeFault(metrics.FaultFresh)
		return fpn, nil
	}
	return p.evictAndInstall(m, pgn, nil)
}

// faultInSwapped handles PRESENT=0, SWAPPED=1: the page was evicted
// earlier and must be copied back in.
func (p *Pager) faultInSwapped(m *mm.Mm, pgn, swapTyp, swapOff int) (int, *oserr.Error) {
	fpn, err := p.RAM.GetFreeFrame()
	if err == nil {
		if cerr := p.copyPage(p.swapByType(swapTyp), swapOff, p.RAM, fpn); cerr != nil {
			p.RAM.PutFreeFrame(fpn)
			return 0, cerr
		}
		p.swapByType(swapTyp).PutFreeFrame(swapOff)
		m.PteSetFPN(pgn, fpn)
		m.FifoEnqueue(pgn)
		p.observeFault(metrics.FaultSwapped)
		return fpn, nil
	}
	return p.evictAndInstall(m, pgn, &swapSource{typ: swapTyp, off: swapOff})
}

type swapSource struct {
	typ int
	off int
}

// evictAndInstall handles the no-free-frame branch: it evicts the FIFO
// head to swap, then installs pgn into the freed frame, copying in
// restore's swap contents first if the target had been swapped out
// before. Returns OOM if there is no victim to evict, or no free swap
// slot to evict into; in both cases the target's PTE is left
// untouched (spec §7).
func (p *Pager) evictAndInstall(m *mm.Mm, pgn int, restore *swapSource) (int, *oserr.Error) {
	victimPgn, ok := m.FifoFront()
	if !ok {
		p.observeOOM("pg_getpage")
		return 0, oserr.New("pg_getpage", oserr.OutOfMemory)
	}

	victim := m.PteGet(victimPgn)
	fv := victim.FPN()

	swapOff, swerr := p.activeSwap().GetFreeFrame()
	if swerr != nil {
		p.observeOOM("pg_getpage")
		return 0, oserr.New("pg_getpage", oserr.OutOfMemory)
	}

	if err := p.copyPage(p.RAM, fv, p.activeSwap(), swapOff); err != nil {
		p.activeSwap().PutFreeFrame(swapOff)
		return 0, err
	}

	if _, ok := m.FifoPopFront(); !ok {
		// Unreachable: we just peeked this front above under the same
		// single-threaded call; guards against a concurrent mutation.
		return 0, oserr.New("pg_getpage", oserr.OutOfMemory)
	}
	m.PteSetSwap(victimPgn, p.ActiveSwap, swapOff)
	p.observeEviction()

	kind := metrics.FaultFresh
	if restore != nil {
		if err := p.copyPage(p.swapByType(restore.typ), restore.off, p.RAM, fv); err != nil {
			return 0, err
		}
		p.swapByType(restore.typ).PutFreeFrame(restore.off)
		kind = metrics.FaultSwapped
	}

	m.PteSetFPN(pgn, fv)
	m.FifoEnqueue(pgn)
	p.observeFault(kind)
	return fv, nil
}

func (p *Pager) observeFault(kind metrics.FaultKind) {
	if p.Metrics != nil {
		p.Metrics.ObserveFault(kind)
	}
}

func (p *Pager) observeEviction() {
	if p.Metrics != nil {
		p.Metrics.ObserveEviction()
	}
}

func (p *Pager) observeOOM(op string) {
	if p.Metrics != nil {
		p.Metrics.ObserveOOM(op)
	}
}

func (p *Pager) swapByType(typ int) *memphy.Device {
	if typ < 0 || typ >= len(p.Swaps) {
		return p.activeSwap()
	}
	return p.Swaps[typ]
}

// copyPage copies exactly PageSize bytes, cell by cell, from
// src[srcFpn*PageSize:] to dst[dstFpn*PageSize:] (spec §4.5 swap_cp).
// Errors propagate; a partial copy leaves the caller responsible for
// cleanup, matching spec's stated semantics for swap_cp.
func (p *Pager) copyPage(src *memphy.Device, srcFpn int, dst *memphy.Device, dstFpn int) *oserr.Error {
	pageSize := src.PageSize()
	srcBase := srcFpn * pageSize
	dstBase := dstFpn * pageSize

	for i := 0; i < pageSize; i++ {
		b, err := src.Read(srcBase + i)
		if err != nil {
			return err
		}
		if err := dst.Write(dstBase+i, b); err != nil {
			return err
		}
	}
	return nil
}

// GetVal resolves vaddr to a frame via GetPage and reads one byte.
func (p *Pager) GetVal(m *mm.Mm, vaddr int) (byte, *oserr.Error) {
	pgn := m.PageNumber(vaddr)
	offset := m.Offset(vaddr)

	fpn, err := p.GetPage(m, pgn)
	if err != nil {
		return 0, err
	}
	return p.RAM.RandomRead(fpn*m.PageSize + offset)
}

// SetVal resolves vaddr to a frame via GetPage and writes one byte.
func (p *Pager) SetVal(m *mm.Mm, vaddr int, val byte) *oserr.Error {
	pgn := m.PageNumber(vaddr)
	offset := m.Offset(vaddr)

	fpn, err := p.GetPage(m, pgn)
	if err != nil {
		return err
	}
	return p.RAM.RandomWrite(fpn*m.PageSize+offset, val)
}

// SwapCopy is the syscall-visible form of swap_cp (spec §4.6 SWP):
// copy one page from RAM at srcFpn to the active swap device at
// dstFpn.
func (p *Pager) SwapCopy(srcFpn, dstFpn int) *oserr.Error {
	return p.copyPage(p.RAM, srcFpn, p.activeSwap(), dstFpn)
}
