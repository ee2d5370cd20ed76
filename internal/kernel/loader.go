package kernel

import (
	"runtime"

	"github.com/tinyrange/osvm/internal/isa"
	"github.com/tinyrange/osvm/internal/oserr"
)

// Loader resolves a process's code path to a fetchable instruction
// stream. The bytecode format and its parser are out of scope for this
// module (spec §1); Loader fixes only the shape the loader thread below
// consumes, matching how config-driven process specs name a path.
type Loader interface {
	Load(path string) (isa.Code, *oserr.Error)
}

// RegistryLoader is a reference Loader backed by an in-memory table of
// already-assembled programs, used by tests. The CLI (cmd/osvm) uses its
// own text-file loader instead.
type RegistryLoader map[string]isa.Code

// Load looks path up in the registry.
func (r RegistryLoader) Load(path string) (isa.Code, *oserr.Error) {
	code, ok := r[path]
	if !ok {
		return nil, oserr.New("load", oserr.NotFound)
	}
	return code, nil
}

// ProcessSpec is one line of the §6 config file's process table:
// start_time, the path to resolve via a Loader, and its scheduling
// priority.
type ProcessSpec struct {
	StartTime int
	Path      string
	Prio      int
}

// Clock is the tick source the loader thread waits on to know when a
// process's start_time has arrived. The simulator clock itself is an
// external collaborator (spec §1); this is the narrow shape the loader
// needs from it.
type Clock interface {
	Tick() int
}

// RunLoader implements the loader thread from spec §4.8: for each spec
// in order, wait until clock reaches its start_time, load its code,
// initialize its Mm, and add_proc it. specs must be sorted by
// StartTime ascending. It calls barrier.Finish when it returns, both
// after every spec has been admitted and after a load or admission
// failure.
func RunLoader(k *Kernel, loader Loader, clock Clock, specs []ProcessSpec, barrier *LoaderBarrier) *oserr.Error {
	defer barrier.Finish()

	for _, spec := range specs {
		for clock.Tick() < spec.StartTime {
			// next_slot: the loader thread polls the external clock
			// rather than sleeping a fixed duration, since tick length
			// is a simulator configuration, not a wall-clock unit.
			runtime.Gosched()
		}

		code, err := loader.Load(spec.Path)
		if err != nil {
			return err
		}
		if _, err := k.AddProcess(code, spec.Prio); err != nil {
			return err
		}
	}
	return nil
}
