package pte

import "testing"

func TestInitPresent(t *testing.T) {
	e := InitPresent(42)
	if !e.Present() {
		t.Fatalf("InitPresent: Present() = false, want true")
	}
	if e.Swapped() {
		t.Fatalf("InitPresent: Swapped() = true, want false")
	}
	if got := e.FPN(); got != 42 {
		t.Fatalf("InitPresent: FPN() = %d, want 42", got)
	}
}

func TestInitSwapped(t *testing.T) {
	e := InitSwapped(3, 1000)
	if e.Present() {
		t.Fatalf("InitSwapped: Present() = true, want false")
	}
	if !e.Swapped() {
		t.Fatalf("InitSwapped: Swapped() = false, want true")
	}
	if got := e.SwapType(); got != 3 {
		t.Fatalf("InitSwapped: SwapType() = %d, want 3", got)
	}
	if got := e.SwapOff(); got != 1000 {
		t.Fatalf("InitSwapped: SwapOff() = %d, want 1000", got)
	}
}

func TestUnallocated(t *testing.T) {
	var e Entry
	if !e.Unallocated() {
		t.Fatalf("zero-value Entry should be Unallocated")
	}
	e.SetPresent(true)
	if e.Unallocated() {
		t.Fatalf("present Entry should not be Unallocated")
	}
}

func TestSetFPNPreservesFlags(t *testing.T) {
	e := InitPresent(1)
	e.SetDirty(true)
	e.SetFPN(99)
	if !e.Dirty() {
		t.Fatalf("SetFPN must not clear DIRTY")
	}
	if !e.Present() {
		t.Fatalf("SetFPN must not clear PRESENT")
	}
	if got := e.FPN(); got != 99 {
		t.Fatalf("FPN() = %d, want 99", got)
	}
}

func TestIndex64ExtractsAllLevels(t *testing.T) {
	// Build a vaddr with a distinct, known index at every level.
	var vaddr uint64
	want := []int{1, 2, 3, 4, 5}
	for lvl, idx := range want {
		shift := uint(PageShift64) + uint(PTLevels64-1-lvl)*IndexBits64
		vaddr |= uint64(idx) << shift
	}

	for lvl, w := range want {
		if got := Index64(vaddr, Level(lvl)); got != w {
			t.Fatalf("Index64(level=%d) = %d, want %d", lvl, got, w)
		}
	}
}

func TestPageOffset64(t *testing.T) {
	vaddr := uint64(0x1000 + 0x123)
	if got := PageOffset64(vaddr); got != 0x123 {
		t.Fatalf("PageOffset64() = %#x, want 0x123", got)
	}
}
