package main

import (
	"os"

	"github.com/tinyrange/osvm/internal/kernel"
	"github.com/tinyrange/osvm/internal/trace"
)

// writeSnapshot renders k's current process/queue/fifo state as the
// structured golden-dump format (spec §6's trace output, yaml sibling)
// to path.
func writeSnapshot(path string, k *kernel.Kernel) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	pcbs := k.Sched.Snapshot()
	snap := trace.Snapshot{
		Processes: make([]trace.ProcSnapshot, 0, len(pcbs)),
		Fifo:      make(map[int][]int, len(pcbs)),
		Ready:     k.Sched.ReadyPIDs(),
	}
	for _, pcb := range pcbs {
		snap.Processes = append(snap.Processes, trace.ProcSnapshot{
			PID:  pcb.PID,
			Prio: pcb.Prio,
			PC:   pcb.PC,
		})
		snap.Fifo[pcb.PID] = pcb.Mm.FifoSnapshot()
	}

	return trace.DumpYAML(f, snap)
}
