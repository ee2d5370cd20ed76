package vmalloc

import (
	"testing"

	"github.com/tinyrange/osvm/internal/memphy"
	"github.com/tinyrange/osvm/internal/mm"
	"github.com/tinyrange/osvm/internal/oserr"
	"github.com/tinyrange/osvm/internal/pager"
)

func newHarness(ramFrames, swapFrames, pageSize int) (*mm.Mm, *pager.Pager) {
	ram := memphy.New(ramFrames*pageSize, true)
	ram.Format(pageSize)
	swap := memphy.New(swapFrames*pageSize, true)
	swap.Format(pageSize)

	m := mm.New(pageSize)
	p := pager.New(ram, []*memphy.Device{swap}, 0)
	return m, p
}

// E1: simple alloc/read/write round trip.
func TestAllocReadWriteRoundTrip(t *testing.T) {
	m, p := newHarness(4, 4, 256)

	start, err := Alloc(m, p, 0, 0, 10)
	if err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}

	if err := p.SetVal(m, start+3, 0x41); err != nil {
		t.Fatalf("SetVal() error = %v", err)
	}
	got, gerr := p.GetVal(m, start+3)
	if gerr != nil {
		t.Fatalf("GetVal() error = %v", gerr)
	}
	if got != 0x41 {
		t.Fatalf("GetVal(start+3) = %#x, want 0x41", got)
	}
	if got, _ := p.GetVal(m, start+4); got != 0x00 {
		t.Fatalf("GetVal(start+4) = %#x, want 0x00", got)
	}
}

// E2: allocation that exceeds free RAM succeeds by evicting to swap.
func TestAllocSpanningPagesEvictsUnderPressure(t *testing.T) {
	m, p := newHarness(2, 8, 256)

	start, err := Alloc(m, p, 0, 0, 700)
	if err != nil {
		t.Fatalf("Alloc(700) error = %v", err)
	}
	if start != 0 {
		t.Fatalf("Alloc(700) start = %d, want 0", start)
	}

	resident, swapped := 0, 0
	for pgn := 0; pgn < 3; pgn++ {
		e := m.PteGet(pgn)
		switch {
		case e.Present():
			resident++
		case e.Swapped():
			swapped++
		default:
			t.Fatalf("page %d should be present or swapped, got unallocated", pgn)
		}
	}
	if resident != 2 || swapped != 1 {
		t.Fatalf("resident=%d swapped=%d, want 2 and 1", resident, swapped)
	}
}

// E4: OOM surfaces from Grow (via inc_vma_limit) without mutating VMA
// boundaries.
func TestAllocOOMLeavesVMAUnchanged(t *testing.T) {
	m, p := newHarness(1, 0, 256)

	vma, _ := m.GetVMAByID(0)
	beforeEnd, beforeSbrk := vma.End, vma.Sbrk

	_, err := Alloc(m, p, 0, 0, 512)
	if err == nil || err.Code != oserr.OutOfMemory {
		t.Fatalf("Alloc() = %v, want OutOfMemory", err)
	}

	if vma.End != beforeEnd || vma.Sbrk != beforeSbrk {
		t.Fatalf("VMA bounds changed on OOM: End=%d Sbrk=%d, want %d/%d", vma.End, vma.Sbrk, beforeEnd, beforeSbrk)
	}
}

func TestFreeThenReallocReusesHoleWithoutNewFrames(t *testing.T) {
	m, p := newHarness(4, 4, 256)

	start, err := Alloc(m, p, 0, 0, 10)
	if err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}
	if err := Free(m, 0, 0); err != nil {
		t.Fatalf("Free() error = %v", err)
	}

	if r, _ := m.GetSymRegion(0); !r.Empty() {
		t.Fatalf("symbol slot 0 should be empty after Free, got %+v", r)
	}

	start2, err := Alloc(m, p, 0, 1, 10)
	if err != nil {
		t.Fatalf("second Alloc() error = %v", err)
	}
	if start2 != start {
		t.Fatalf("second Alloc() = %d, want reused hole at %d", start2, start)
	}
}

func TestFreeAlreadyFreedIsNotFoundAndIdempotent(t *testing.T) {
	m, p := newHarness(4, 4, 256)

	if _, err := Alloc(m, p, 0, 0, 10); err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}
	if err := Free(m, 0, 0); err != nil {
		t.Fatalf("first Free() error = %v", err)
	}

	vma, _ := m.GetVMAByID(0)
	before := len(vma.FreeRegions)

	err := Free(m, 0, 0)
	if err == nil || err.Code != oserr.NotFound {
		t.Fatalf("second Free() = %v, want NotFound", err)
	}
	if len(vma.FreeRegions) != before {
		t.Fatalf("free list mutated by a no-op Free: before=%d after=%d", before, len(vma.FreeRegions))
	}
}

func TestGrowRejectsOverlap(t *testing.T) {
	m, p := newHarness(8, 8, 256)

	m.AddVMA(1, 256, 512)

	if _, err := Alloc(m, p, 0, 0, 256); err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}
	// A second allocation would grow VMA 0 into VMA 1's range.
	_, err := Alloc(m, p, 0, 1, 256)
	if err == nil || err.Code != oserr.InvalidArgument {
		t.Fatalf("Alloc() overlapping VMA 1 = %v, want InvalidArgument", err)
	}
}
