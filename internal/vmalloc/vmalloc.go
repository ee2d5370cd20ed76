// Package vmalloc implements the per-process VMA allocator (spec
// §4.4): region placement within a VMA's free-hole list, and growing a
// VMA's break when no hole fits.
//
// The overlap-checked, mutex-free, alignment-rounding shape of Grow
// below is adapted from the teacher's hv.AddressSpace.Allocate, which
// solves the same "place a new region above the existing ones without
// colliding with a neighbor" problem for MMIO regions. vmalloc takes no
// lock, and no caller in this module wraps its calls in one: an Mm and
// the pager calls made on it are driven only from the CPU goroutine
// currently running the owning process.
package vmalloc

import (
	"github.com/tinyrange/osvm/internal/mm"
	"github.com/tinyrange/osvm/internal/oserr"
	"github.com/tinyrange/osvm/internal/pager"
)

func alignUp(value, align int) int {
	if align <= 0 {
		return value
	}
	return (value + align - 1) &^ (align - 1)
}

// Alloc implements spec §4.4's Alloc: first-fit against vma's free
// regions, falling back to Grow, then records the result in the
// process's symbol-region table.
func Alloc(m *mm.Mm, p *pager.Pager, vmaID, regIndex, size int) (int, *oserr.Error) {
	if size <= 0 {
		return 0, oserr.New("alloc", oserr.InvalidArgument)
	}

	vma, err := m.GetVMAByID(vmaID)
	if err != nil {
		return 0, err
	}

	start, ok := takeFirstFit(vma, size)
	if !ok {
		start, err = Grow(m, p, vma, size)
		if err != nil {
			return 0, err
		}
	}

	if err := m.SetSymRegion(regIndex, mm.Region{Start: start, End: start + size}); err != nil {
		return 0, err
	}
	return start, nil
}

// takeFirstFit scans vma's free-region list for the first hole at
// least size bytes wide, allocates at its low end, and shrinks or
// removes the hole. Per spec §4.4 point 1, a hole consumed exactly is
// removed outright.
func takeFirstFit(vma *mm.VMA, size int) (int, bool) {
	for i, r := range vma.FreeRegions {
		if r.Size() >= size {
			start := r.Start
			if r.Size() == size {
				vma.FreeRegions = append(vma.FreeRegions[:i], vma.FreeRegions[i+1:]...)
			} else {
				vma.FreeRegions[i].Start += size
			}
			return start, true
		}
	}
	return 0, false
}

// Grow implements inc_vma_limit: align size up to the page size,
// reserve the backing frames for the new pages (via the pager, falling
// back to eviction exactly as a page fault would — see internal/pager's
// package doc),
// and extend vm_end/sbrk by the aligned amount. Both bounds, and any
// frames reserved so far, are rolled back on failure.
func Grow(m *mm.Mm, p *pager.Pager, vma *mm.VMA, size int) (int, *oserr.Error) {
	aligned := alignUp(size, m.PageSize)
	oldEnd := vma.End
	newEnd := oldEnd + aligned

	for _, other := range m.VMAs() {
		if other.ID == vma.ID {
			continue
		}
		if other.Overlaps(oldEnd, newEnd) {
			return 0, oserr.New("inc_vma_limit", oserr.InvalidArgument)
		}
	}

	startPgn := oldEnd / m.PageSize
	npages := aligned / m.PageSize

	for i := 0; i < npages; i++ {
		pgn := startPgn + i
		if _, err := p.GetPage(m, pgn); err != nil {
			rollbackPages(m, p, startPgn, pgn)
			return 0, err
		}
	}

	vma.End = newEnd
	vma.Sbrk = newEnd
	return oldEnd, nil
}

// rollbackPages undoes GetPage's effects for [start, failedAt) after a
// later page in the same batch failed to map, so no partial frames are
// left leaked (spec §4.4).
func rollbackPages(m *mm.Mm, p *pager.Pager, start, failedAt int) {
	for pgn := start; pgn < failedAt; pgn++ {
		entry := m.PteGet(pgn)
		if entry.Present() {
			p.RAM.PutFreeFrame(entry.FPN())
		} else if entry.Swapped() {
			p.Swaps[entry.SwapType()].PutFreeFrame(entry.SwapOff())
		}
		m.FifoRemove(pgn)
		m.PteSetEntry(pgn, 0)
	}
}

// Free implements spec §4.4's Free: read the region out of the symbol
// table, prepend it to the VMA's free-region list, and zero the
// symbol slot. Freeing an already-empty slot is NotFound and leaves
// the free list untouched (spec invariant 7).
func Free(m *mm.Mm, vmaID, regIndex int) *oserr.Error {
	vma, err := m.GetVMAByID(vmaID)
	if err != nil {
		return err
	}

	region, err := m.GetSymRegion(regIndex)
	if err != nil {
		return err
	}
	if region.Empty() {
		return oserr.New("free", oserr.NotFound)
	}

	vma.FreeRegions = append([]mm.Region{region}, vma.FreeRegions...)
	return m.SetSymRegion(regIndex, mm.Region{})
}
