// Package pte implements the bit-packed page-table-entry format from
// spec §3/§4.2: a 32-bit word carrying PRESENT, SWAPPED and DIRTY flags
// plus either a resident frame number or a swap location, and the
// index-extraction helpers for the 64-bit five-level profile.
package pte

// Entry is a single 32-bit page-table entry.
//
// Bit layout (bit 31 is the MSB):
//
//	bit 31       PRESENT
//	bit 30       SWAPPED
//	bit 28       DIRTY
//	bits 27..15  reserved for user/owner id
//	bits 12..0   FPN   (meaningful when PRESENT=1)
//	bits 4..0    SWPTYP (meaningful when PRESENT=0, SWAPPED=1)
//	bits 25..5   SWPOFF (meaningful when PRESENT=0, SWAPPED=1)
type Entry uint32

const (
	presentBit = 31
	swappedBit = 30
	dirtyBit   = 28

	fpnMask = 0x1FFF // bits 0..12

	swptypShift = 0
	swptypMask  = 0x1F // bits 0..4

	swpoffShift = 5
	swpoffMask  = 0x1FFFFF // bits 5..25, 21 bits
)

func bit(v Entry, n uint) bool { return v&(1<<n) != 0 }

func setBit(v Entry, n uint, on bool) Entry {
	if on {
		return v | (1 << n)
	}
	return v &^ (1 << n)
}

// Present reports whether the PRESENT bit is set.
func (e Entry) Present() bool { return bit(e, presentBit) }

// Swapped reports whether the SWAPPED bit is set. Readers must check
// Present first: PRESENT and SWAPPED are never both the active
// interpretation at once (spec §3 invariant).
func (e Entry) Swapped() bool { return bit(e, swappedBit) }

// Dirty reports whether the DIRTY bit is set.
func (e Entry) Dirty() bool { return bit(e, dirtyBit) }

// SetPresent sets or clears the PRESENT bit in place.
func (e *Entry) SetPresent(v bool) { *e = setBit(*e, presentBit, v) }

// SetSwapped sets or clears the SWAPPED bit in place.
func (e *Entry) SetSwapped(v bool) { *e = setBit(*e, swappedBit, v) }

// SetDirty sets or clears the DIRTY bit in place.
func (e *Entry) SetDirty(v bool) { *e = setBit(*e, dirtyBit, v) }

// FPN extracts the resident frame number. Only meaningful when
// Present() is true.
func (e Entry) FPN() int { return int(e) & fpnMask }

// SetFPN writes the frame number into the FPN field without touching
// other bits.
func (e *Entry) SetFPN(fpn int) {
	*e = (*e &^ Entry(fpnMask)) | Entry(fpn)&fpnMask
}

// SwapType extracts the swap-device type. Only meaningful when
// Present() is false and Swapped() is true.
func (e Entry) SwapType() int { return (int(e) >> swptypShift) & swptypMask }

// SwapOff extracts the swap offset.
func (e Entry) SwapOff() int { return (int(e) >> swpoffShift) & swpoffMask }

// InitPresent returns a fresh Entry with PRESENT=1, FPN=fpn, all other
// fields zeroed (spec §4.2).
func InitPresent(fpn int) Entry {
	var e Entry
	e.SetPresent(true)
	e.SetFPN(fpn)
	return e
}

// InitSwapped returns a fresh Entry with PRESENT=0, SWAPPED=1,
// SWPTYP=typ, SWPOFF=off (spec §4.2).
func InitSwapped(typ, off int) Entry {
	var e Entry
	e.SetSwapped(true)
	e |= Entry(typ&swptypMask) << swptypShift
	e |= Entry(off&swpoffMask) << swpoffShift
	return e
}

// Unallocated reports whether the page this entry describes has never
// been allocated: PRESENT=0 and SWAPPED=0.
func (e Entry) Unallocated() bool { return !e.Present() && !e.Swapped() }
