// Package memphy implements the simulated physical memory device
// (spec §4.1): a byte-addressable store partitioned into fixed-size
// frames, plus the free/used frame lists that the demand pager and VMA
// allocator draw from.
package memphy

import (
	"fmt"
	"io"
	"sync"

	"github.com/tinyrange/osvm/internal/oserr"
)

// NoFrame is returned by GetFreeFrame when the free list is empty.
const NoFrame = -1

// Device is a simulated physical memory device. Its internal mutex
// guards storage, the frame lists and the cursor, so each single call is
// safe for concurrent use. No wider lock in this module serializes a
// sequence of calls (such as a page copy), so such a sequence is not
// atomic as a whole.
type Device struct {
	mu sync.Mutex

	storage      []byte
	pageSize     int
	randomAccess bool

	// free and used hold frame numbers. free is an arena-backed slice
	// rather than a pointer-linked node list, per the re-architecture
	// note in spec §9: an index into a slice stands in for a list node.
	// used is a set keyed by frame number.
	free []int
	used map[int]bool

	// cursor is the sequential-access device's read/write position, in
	// bytes. Sequential devices must advance it one byte at a time to
	// reach a target address (modelling tape-like swap media).
	cursor int
}

// New creates a Device with the given total size in bytes.
// RandomAccess controls whether Read/Write may seek directly (true,
// e.g. RAM) or must crawl the cursor forward (false, e.g. tape swap).
func New(maxSize int, randomAccess bool) *Device {
	return &Device{
		storage:      make([]byte, maxSize),
		randomAccess: randomAccess,
		used:         make(map[int]bool),
	}
}

// Format partitions storage into max_size/page_size frames and resets
// the free list to ascending frame-number order, emptying the used
// list.
func (d *Device) Format(pageSize int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pageSize = pageSize
	numFrames := len(d.storage) / pageSize
	d.free = make([]int, numFrames)
	for i := range d.free {
		d.free[i] = i
	}
	d.used = make(map[int]bool, numFrames)
}

// NumFrames returns the total number of frames this device was
// formatted with.
func (d *Device) NumFrames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.free) + len(d.used)
}

// PageSize returns the frame size this device was formatted with.
func (d *Device) PageSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pageSize
}

// GetFreeFrame detaches the head of the free list and returns its
// frame number, or NoFrame with an OutOfMemory error if the list is
// empty. This is the trigger for eviction at the caller (spec §4.1).
func (d *Device) GetFreeFrame() (int, *oserr.Error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.free) == 0 {
		return NoFrame, oserr.New("memphy.get_freefp", oserr.OutOfMemory)
	}

	fpn := d.free[0]
	d.free = d.free[1:]
	d.used[fpn] = true
	return fpn, nil
}

// PutFreeFrame prepends fpn to the free list. Callers must not
// double-free: no duplicate check is performed, matching spec §4.1.
func (d *Device) PutFreeFrame(fpn int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.used, fpn)
	d.free = append([]int{fpn}, d.free...)
}

// Used reports whether fpn is currently marked as in-use. It exists to
// let property tests check spec invariant 3 (residency implies used).
func (d *Device) Used(fpn int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.used[fpn]
}

func (d *Device) inBounds(addr int) bool {
	return addr >= 0 && addr < len(d.storage)
}

// Read returns the byte at addr. Random-access devices index storage
// directly; sequential devices must first crawl the cursor to addr.
func (d *Device) Read(addr int) (byte, *oserr.Error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.inBounds(addr) {
		return 0, oserr.New("memphy.read", oserr.IoOutOfBounds)
	}
	if !d.randomAccess {
		d.seekTo(addr)
	}
	return d.storage[addr], nil
}

// Write stores val at addr, subject to the same access-mode rules as
// Read.
func (d *Device) Write(addr int, val byte) *oserr.Error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.inBounds(addr) {
		return oserr.New("memphy.write", oserr.IoOutOfBounds)
	}
	if !d.randomAccess {
		d.seekTo(addr)
	}
	d.storage[addr] = val
	return nil
}

// seekTo advances the internal cursor to addr one step at a time,
// modelling a tape device. Callers hold d.mu.
func (d *Device) seekTo(addr int) {
	for d.cursor < addr {
		d.cursor++
	}
	for d.cursor > addr {
		d.cursor--
	}
}

// RandomRead and RandomWrite are the random-access-only counterparts of
// Read/Write (mm-memphy.c's MEMPHY_read/MEMPHY_write dispatch to direct
// array indexing when mp->rdmflg is set): they fail with Unsupported
// against a sequential (tape-like) device instead of silently crawling
// the cursor.
func (d *Device) RandomRead(addr int) (byte, *oserr.Error) {
	d.mu.Lock()
	randomAccess := d.randomAccess
	d.mu.Unlock()
	if !randomAccess {
		return 0, oserr.New("memphy.random_read", oserr.Unsupported)
	}
	return d.Read(addr)
}

func (d *Device) RandomWrite(addr int, val byte) *oserr.Error {
	d.mu.Lock()
	randomAccess := d.randomAccess
	d.mu.Unlock()
	if !randomAccess {
		return oserr.New("memphy.random_write", oserr.Unsupported)
	}
	return d.Write(addr, val)
}

// SeqRead and SeqWrite are the sequential-only counterparts (mm-memphy.c's
// MEMPHY_seq_read/MEMPHY_seq_write, which return failure when called
// against a device whose rdmflg is set): they fail with Unsupported
// against a random-access device instead of indexing it directly.
func (d *Device) SeqRead(addr int) (byte, *oserr.Error) {
	d.mu.Lock()
	randomAccess := d.randomAccess
	d.mu.Unlock()
	if randomAccess {
		return 0, oserr.New("memphy.seq_read", oserr.Unsupported)
	}
	return d.Read(addr)
}

func (d *Device) SeqWrite(addr int, val byte) *oserr.Error {
	d.mu.Lock()
	randomAccess := d.randomAccess
	d.mu.Unlock()
	if randomAccess {
		return oserr.New("memphy.seq_write", oserr.Unsupported)
	}
	return d.Write(addr, val)
}

func (d *Device) IsRandomAccess() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.randomAccess
}

// RequireRandomAccess returns an Unsupported error if this device does
// not support random access, for ops that are only meaningful on RAM.
func (d *Device) RequireRandomAccess(op string) *oserr.Error {
	if !d.IsRandomAccess() {
		return oserr.New(op, oserr.Unsupported)
	}
	return nil
}

// Dump debug-emits nonzero bytes, as spec §4.1 requires.
func (d *Device) Dump(w io.Writer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for addr, b := range d.storage {
		if b != 0 {
			fmt.Fprintf(w, "BYTE %08d: %02x\n", addr, b)
		}
	}
}
