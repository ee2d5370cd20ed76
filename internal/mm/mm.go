// Package mm implements the per-process address-space map (spec §3,
// §4.3): page directories, the VMA list, the symbol-region table, and
// the FIFO queue of resident page numbers the demand pager evicts from.
//
// The VMA list and each VMA's free-region list are arena-backed slices
// rather than pointer-linked nodes, per the re-architecture guidance in
// spec §9 ("arenas-of-nodes + integer indices"); there is no cyclic
// ownership to unwind because nothing here holds a back-pointer to a
// parent Mm.
package mm

import (
	"github.com/tinyrange/osvm/internal/oserr"
	"github.com/tinyrange/osvm/internal/pte"
)

// NumSymbolRegions is the fixed size of the per-process symbol-region
// table (the "register index" surface alloc/free/read/write use).
const NumSymbolRegions = 10

// Region is a half-open [Start, End) interval of virtual addresses.
// An unallocated symbol slot has both bounds zero.
type Region struct {
	Start int
	End   int
}

// Size returns End-Start.
func (r Region) Size() int { return r.End - r.Start }

// Empty reports whether the region is the zero value, i.e. an
// unallocated symbol slot.
func (r Region) Empty() bool { return r.Start == 0 && r.End == 0 }

// VMA is a contiguous virtual-memory area: spec §3's "[vm_start,
// vm_end)" interval plus its current break and free-hole list.
type VMA struct {
	ID    int
	Start int
	End   int
	Sbrk  int

	// FreeRegions holds holes returned by Free, available for first-fit
	// reuse by a later Alloc. Ordered most-recently-freed first, since
	// Free prepends.
	FreeRegions []Region
}

// Overlaps reports whether the VMA's [Start,End) range intersects
// [start,end).
func (v *VMA) Overlaps(start, end int) bool {
	return start < v.End && end > v.Start
}

// Mm is one process's address-space map.
type Mm struct {
	PageSize int

	vmas     []*VMA
	symTable [NumSymbolRegions]Region
	pageTbl  map[int]pte.Entry

	// fifoPgn holds the page numbers currently resident in RAM, oldest
	// at index 0. It is the FIFO queue pg_getpage's victim selection
	// reads from (spec §4.5).
	fifoPgn []int
}

// New creates an Mm for the given page size, with one empty VMA
// (id=0, vm_start=vm_end=sbrk=0, a zero-length free region) and a
// zeroed symbol table, per spec §4.3's init_mm contract.
func New(pageSize int) *Mm {
	return &Mm{
		PageSize: pageSize,
		vmas: []*VMA{{
			ID:          0,
			FreeRegions: []Region{{}},
		}},
		pageTbl: make(map[int]pte.Entry),
	}
}

// AddVMA registers an additional VMA (beyond the id=0 default created
// by New), e.g. for a separate stack or mmap area.
func (m *Mm) AddVMA(id, start, end int) *VMA {
	v := &VMA{ID: id, Start: start, End: end, Sbrk: end}
	m.vmas = append(m.vmas, v)
	return v
}

// VMAs returns the VMA list for iteration (e.g. overlap checks).
func (m *Mm) VMAs() []*VMA { return m.vmas }

// GetVMAByID traverses the VMA list until it finds a matching id,
// returning an InvalidArgument error if the list is exhausted (spec §4.3).
func (m *Mm) GetVMAByID(id int) (*VMA, *oserr.Error) {
	for _, v := range m.vmas {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, oserr.New("get_vma_by_id", oserr.InvalidArgument)
}

// GetSymRegion range-checks i and returns the recorded region.
func (m *Mm) GetSymRegion(i int) (Region, *oserr.Error) {
	if i < 0 || i >= NumSymbolRegions {
		return Region{}, oserr.New("get_symrg_by_id", oserr.InvalidArgument)
	}
	return m.symTable[i], nil
}

// SetSymRegion range-checks i and writes r into the symbol table.
func (m *Mm) SetSymRegion(i int, r Region) *oserr.Error {
	if i < 0 || i >= NumSymbolRegions {
		return oserr.New("set_symrg_by_id", oserr.InvalidArgument)
	}
	m.symTable[i] = r
	return nil
}

// PageNumber and Offset split a virtual address per this Mm's page
// size, used by pg_getval/pg_setval (spec §4.5).
func (m *Mm) PageNumber(vaddr int) int { return vaddr / m.PageSize }
func (m *Mm) Offset(vaddr int) int     { return vaddr % m.PageSize }

// PteGet returns the page-table entry for pgn. An entry that was never
// written reads back as the zero value, i.e. Unallocated() — page
// tables are allocated lazily, so there is no separate "exists" check
// (spec §4.3).
func (m *Mm) PteGet(pgn int) pte.Entry { return m.pageTbl[pgn] }

// PteSetEntry installs a raw entry for pgn.
func (m *Mm) PteSetEntry(pgn int, e pte.Entry) { m.pageTbl[pgn] = e }

// PteSetFPN rewrites pgn's entry to PRESENT with the given frame,
// clearing any prior swap fields.
func (m *Mm) PteSetFPN(pgn, fpn int) { m.pageTbl[pgn] = pte.InitPresent(fpn) }

// PteSetSwap rewrites pgn's entry to SWAPPED with the given location.
func (m *Mm) PteSetSwap(pgn, typ, off int) { m.pageTbl[pgn] = pte.InitSwapped(typ, off) }

// FifoEnqueue appends pgn to the tail of the resident-page FIFO. The
// newly faulted page always goes to the tail, so it is never the next
// eviction candidate (spec §4.5).
func (m *Mm) FifoEnqueue(pgn int) { m.fifoPgn = append(m.fifoPgn, pgn) }

// FifoFront returns the oldest resident page number without removing
// it, or ok=false if no page is resident.
func (m *Mm) FifoFront() (pgn int, ok bool) {
	if len(m.fifoPgn) == 0 {
		return 0, false
	}
	return m.fifoPgn[0], true
}

// FifoPopFront removes and returns the oldest resident page number.
func (m *Mm) FifoPopFront() (pgn int, ok bool) {
	if len(m.fifoPgn) == 0 {
		return 0, false
	}
	pgn, m.fifoPgn = m.fifoPgn[0], m.fifoPgn[1:]
	return pgn, true
}

// FifoRemove drops pgn from the FIFO wherever it is, used when rolling
// back a partially-mapped batch of new pages.
func (m *Mm) FifoRemove(pgn int) {
	for i, p := range m.fifoPgn {
		if p == pgn {
			m.fifoPgn = append(m.fifoPgn[:i], m.fifoPgn[i+1:]...)
			return
		}
	}
}

// FifoSnapshot returns a copy of the resident-page FIFO in insertion
// order, for property tests (spec invariant 4) and trace dumps.
func (m *Mm) FifoSnapshot() []int {
	out := make([]int, len(m.fifoPgn))
	copy(out, m.fifoPgn)
	return out
}
