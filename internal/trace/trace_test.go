package trace

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tinyrange/osvm/internal/memphy"
	"github.com/tinyrange/osvm/internal/oserr"
)

func TestDispatchedLineFormat(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{out: &buf}

	p.Dispatched(0, 7, 3)

	got := buf.String()
	if !strings.Contains(got, "CPU 0: Dispatched process 7") {
		t.Fatalf("unexpected trace line: %q", got)
	}
}

func TestPlainWriterProducesNoEscapeCodes(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{out: &buf, color: false}

	p.Dispatched(1, 42, 0)
	p.Failed(42, "pg_getpage", oserr.OutOfMemory)

	if strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("non-terminal printer emitted ANSI escapes: %q", buf.String())
	}
}

func TestMemDumpDelegatesToDevice(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{out: &buf}

	dev := memphy.New(512, true)
	dev.Format(256)
	dev.Write(10, 0x42)

	p.MemDump("RAM", dev)

	got := buf.String()
	if !strings.Contains(got, "--- RAM ---") || !strings.Contains(got, "42") {
		t.Fatalf("dump missing expected content: %q", got)
	}
}

func TestDumpYAMLRoundTripsStructure(t *testing.T) {
	var buf bytes.Buffer
	snap := Snapshot{
		Tick: 4,
		Processes: []ProcSnapshot{
			{PID: 1, Prio: 5, PC: 2},
		},
		Fifo:  map[int][]int{1: {0, 1}},
		Ready: map[int][]int{5: {1}},
	}

	if err := DumpYAML(&buf, snap); err != nil {
		t.Fatalf("DumpYAML() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"tick: 4", "pid: 1", "prio: 5"} {
		if !strings.Contains(out, want) {
			t.Fatalf("yaml output missing %q, got:\n%s", want, out)
		}
	}
}
