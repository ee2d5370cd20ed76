package memphy

import (
	"testing"

	"github.com/tinyrange/osvm/internal/oserr"
)

func TestFormatBuildsAscendingFreeList(t *testing.T) {
	d := New(1024, true)
	d.Format(256)

	if got := d.NumFrames(); got != 4 {
		t.Fatalf("NumFrames() = %d, want 4", got)
	}

	for want := 0; want < 4; want++ {
		got, err := d.GetFreeFrame()
		if err != nil {
			t.Fatalf("GetFreeFrame() error = %v", err)
		}
		if got != want {
			t.Fatalf("GetFreeFrame() = %d, want %d (free list must be ascending)", got, want)
		}
		if !d.Used(got) {
			t.Fatalf("frame %d should be marked used after GetFreeFrame", got)
		}
	}
}

func TestGetFreeFrameExhausted(t *testing.T) {
	d := New(256, true)
	d.Format(256)

	if _, err := d.GetFreeFrame(); err != nil {
		t.Fatalf("first GetFreeFrame() error = %v", err)
	}
	_, err := d.GetFreeFrame()
	if err == nil || err.Code != oserr.OutOfMemory {
		t.Fatalf("GetFreeFrame() on empty list = %v, want OutOfMemory", err)
	}
}

func TestPutFreeFrameReturnsToFreeList(t *testing.T) {
	d := New(512, true)
	d.Format(256)

	fpn, _ := d.GetFreeFrame()
	d.PutFreeFrame(fpn)

	if d.Used(fpn) {
		t.Fatalf("frame %d should not be used after PutFreeFrame", fpn)
	}

	got, err := d.GetFreeFrame()
	if err != nil {
		t.Fatalf("GetFreeFrame() error = %v", err)
	}
	if got != fpn {
		t.Fatalf("GetFreeFrame() = %d, want freed frame %d back at head", got, fpn)
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	d := New(256, true)
	d.Format(256)

	if err := d.Write(3, 0x41); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, err := d.Read(3)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got != 0x41 {
		t.Fatalf("Read(3) = %#x, want 0x41", got)
	}
	if got, _ := d.Read(4); got != 0x00 {
		t.Fatalf("Read(4) = %#x, want 0x00", got)
	}
}

func TestOutOfBounds(t *testing.T) {
	d := New(16, true)
	d.Format(16)

	if _, err := d.Read(16); err == nil {
		t.Fatalf("Read(16) on a 16-byte device should fail")
	}
	if err := d.Write(-1, 1); err == nil {
		t.Fatalf("Write(-1, ...) should fail")
	}
}

func TestSequentialAccessCrawlsCursor(t *testing.T) {
	d := New(64, false)
	d.Format(16)

	if err := d.Write(10, 0x7f); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, err := d.Read(10)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got != 0x7f {
		t.Fatalf("Read(10) = %#x, want 0x7f", got)
	}
}

func TestRandomAccessorsRejectSequentialDevice(t *testing.T) {
	d := New(64, false)
	d.Format(16)

	if _, err := d.RandomRead(4); err == nil || err.Code != oserr.Unsupported {
		t.Fatalf("RandomRead() on a sequential device = %v, want Unsupported", err)
	}
	if err := d.RandomWrite(4, 1); err == nil || err.Code != oserr.Unsupported {
		t.Fatalf("RandomWrite() on a sequential device = %v, want Unsupported", err)
	}
}

func TestSeqAccessorsRejectRandomDevice(t *testing.T) {
	d := New(64, true)
	d.Format(16)

	if _, err := d.SeqRead(4); err == nil || err.Code != oserr.Unsupported {
		t.Fatalf("SeqRead() on a random-access device = %v, want Unsupported", err)
	}
	if err := d.SeqWrite(4, 1); err == nil || err.Code != oserr.Unsupported {
		t.Fatalf("SeqWrite() on a random-access device = %v, want Unsupported", err)
	}
}

func TestRandomAccessorsSucceedOnRandomDevice(t *testing.T) {
	d := New(64, true)
	d.Format(16)

	if err := d.RandomWrite(2, 0x5a); err != nil {
		t.Fatalf("RandomWrite() error = %v", err)
	}
	got, err := d.RandomRead(2)
	if err != nil {
		t.Fatalf("RandomRead() error = %v", err)
	}
	if got != 0x5a {
		t.Fatalf("RandomRead(2) = %#x, want 0x5a", got)
	}
}

func TestSeqAccessorsSucceedOnSequentialDevice(t *testing.T) {
	d := New(64, false)
	d.Format(16)

	if err := d.SeqWrite(5, 0x11); err != nil {
		t.Fatalf("SeqWrite() error = %v", err)
	}
	got, err := d.SeqRead(5)
	if err != nil {
		t.Fatalf("SeqRead() error = %v", err)
	}
	if got != 0x11 {
		t.Fatalf("SeqRead(5) = %#x, want 0x11", got)
	}
}
