// Package trace renders the simulator's human-readable trace lines and
// golden-file dumps (spec §6): "format is stable enough that golden-file
// tests key on it." The bytecode loader, CPU interpreter, and the clock
// driving ticks are external collaborators (spec §1); this package only
// formats what the core subsystems report happening.
package trace

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/tinyrange/osvm/internal/memphy"
)

// Printer writes trace lines to an underlying writer, colorizing PID
// and severity markers when the destination is a color-capable
// terminal.
type Printer struct {
	out   io.Writer
	color bool
}

// NewPrinter wraps w. If w is an *os.File attached to a terminal,
// output is colorized; a fixed red is used for OOM/error lines and a
// priority-derived color for dispatch lines, gated by
// golang.org/x/term's terminal detection the way the teacher's own CLI
// output gates color.
func NewPrinter(w io.Writer) *Printer {
	color := false
	if f, ok := w.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}
	return &Printer{out: w, color: color}
}

func (p *Printer) paint(code int, s string) string {
	if !p.color {
		return s
	}
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", code, s)
}

// Dispatched reports a scheduler dispatch: "CPU <n>: Dispatched process
// <pid>" (spec §6's example line), the PID colored by priority band so
// a scrolling trace visually separates scheduling classes.
func (p *Printer) Dispatched(cpu, pid, prio int) {
	band := 32 + (prio % 6) // cycle through the ANSI 32-37 foreground range
	fmt.Fprintf(p.out, "CPU %d: Dispatched process %s\n", cpu, p.paint(band, fmt.Sprint(pid)))
}

// Finished reports a process completing execution.
func (p *Printer) Finished(cpu, pid int) {
	fmt.Fprintf(p.out, "CPU %d: Finished process %s\n", cpu, p.paint(32, fmt.Sprint(pid)))
}

// Requeued reports a time-slice exhaustion requeue.
func (p *Printer) Requeued(cpu, pid int) {
	fmt.Fprintf(p.out, "CPU %d: Requeued process %s (time slice exhausted)\n", cpu, fmt.Sprint(pid))
}

// Evicted reports a FIFO eviction during a page fault.
func (p *Printer) Evicted(pid, victimPgn, swapOff int) {
	fmt.Fprintf(p.out, "PID %d: Evicted page %d to swap slot %d\n", pid, victimPgn, swapOff)
}

// Failed reports a fatal syscall or page-fault failure.
func (p *Printer) Failed(pid int, op string, code fmt.Stringer) {
	line := fmt.Sprintf("PID %d: %s failed: %s", pid, op, code)
	fmt.Fprintln(p.out, p.paint(31, line))
}

// MemDump writes dev's nonzero bytes, delegating to the device's own
// Dump and stripping any color codes a caller might have accidentally
// embedded in a wrapped writer — golden dumps must be plain text
// regardless of the Printer's terminal mode.
func (p *Printer) MemDump(label string, dev *memphy.Device) {
	fmt.Fprintf(p.out, "--- %s ---\n", label)
	var buf plainBuffer
	dev.Dump(&buf)
	fmt.Fprint(p.out, ansi.Strip(buf.String()))
}

type plainBuffer struct {
	data []byte
}

func (b *plainBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *plainBuffer) String() string { return string(b.data) }

// Snapshot is the structured, colorless form of simulator state the
// yaml golden-dump mode emits, a sibling to the human-readable lines
// above for tests that want to diff structured state instead of text.
type Snapshot struct {
	Tick      int            `yaml:"tick"`
	Processes []ProcSnapshot `yaml:"processes"`
	Fifo      map[int][]int  `yaml:"fifo_pgn"`
	Ready     map[int][]int  `yaml:"ready_pids"`
}

// ProcSnapshot is one process's state in a Snapshot.
type ProcSnapshot struct {
	PID  int `yaml:"pid"`
	Prio int `yaml:"prio"`
	PC   int `yaml:"pc"`
}

// DumpYAML marshals snap to w as the golden-dump format.
func DumpYAML(w io.Writer, snap Snapshot) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(snap)
}
