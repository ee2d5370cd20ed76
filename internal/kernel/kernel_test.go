package kernel

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/tinyrange/osvm/internal/isa"
	"github.com/tinyrange/osvm/internal/memphy"
	"github.com/tinyrange/osvm/internal/metrics"
	"github.com/tinyrange/osvm/internal/oserr"
	"github.com/tinyrange/osvm/internal/pager"
)

func newTestKernel(t *testing.T, ramFrames, swapFrames, pageSize, timeSlot int) *Kernel {
	t.Helper()
	ram := memphy.New(ramFrames*pageSize, true)
	ram.Format(pageSize)
	swap := memphy.New(swapFrames*pageSize, true)
	swap.Format(pageSize)

	p := pager.New(ram, []*memphy.Device{swap}, 0)
	return New(ram, p, pageSize, timeSlot, nil)
}

func TestRunCPUToCompletion(t *testing.T) {
	k := newTestKernel(t, 4, 4, 256, 10)

	code := isa.NewProgram([]isa.Instr{
		{Op: isa.OpNop},
		{Op: isa.OpNop},
		{Op: isa.OpHalt},
	})

	pid, err := k.AddProcess(code, 5)
	require.Nil(t, err)
	require.Equal(t, 1, pid)

	barrier := &LoaderBarrier{}
	barrier.Finish()

	k.RunCPU(0, barrier)

	require.True(t, k.Sched.QueueEmpty())
	_, findErr := k.Sched.FindByPID(pid)
	require.NotNil(t, findErr, "finished process must not be findable any longer")
}

func TestRunCPUExecutesMapSyscall(t *testing.T) {
	k := newTestKernel(t, 4, 4, 256, 10)

	code := isa.NewProgram([]isa.Instr{
		{Op: isa.OpSyscall, Args: isa.Registers{A1: isa.MAP, A2: 0, A3: 1}},
		{Op: isa.OpHalt},
	})

	pid, err := k.AddProcess(code, 0)
	require.Nil(t, err)

	barrier := &LoaderBarrier{}
	barrier.Finish()
	k.RunCPU(0, barrier)

	// The PCB is gone after finishing, but the page fault MAP triggered
	// should have claimed RAM's first free frame.
	require.True(t, k.RAM.Used(0), "expected frame 0 to be claimed by the MAP syscall")
	_ = pid
}

// A budget of 1 forces every instruction to go through a full
// requeue cycle; the process must still run to completion.
func TestRunCPURequeuesOnExhaustedBudget(t *testing.T) {
	k := newTestKernel(t, 4, 4, 256, 1)

	code := isa.NewProgram([]isa.Instr{
		{Op: isa.OpNop},
		{Op: isa.OpNop},
		{Op: isa.OpNop},
		{Op: isa.OpHalt},
	})

	_, err := k.AddProcess(code, 0)
	require.Nil(t, err)

	barrier := &LoaderBarrier{}
	barrier.Finish()
	k.RunCPU(0, barrier)

	require.True(t, k.Sched.QueueEmpty())
}

func TestRunLoaderAdmitsInOrder(t *testing.T) {
	k := newTestKernel(t, 4, 4, 256, 10)

	prog := isa.NewProgram([]isa.Instr{{Op: isa.OpHalt}})
	loader := RegistryLoader{
		"first":  prog,
		"second": prog,
	}

	clock := &ManualClock{}
	specs := []ProcessSpec{
		{StartTime: 1, Path: "first", Prio: 0},
		{StartTime: 2, Path: "second", Prio: 0},
	}

	barrier := &LoaderBarrier{}
	done := make(chan *oserr.Error, 1)
	go func() {
		done <- RunLoader(k, loader, clock, specs, barrier)
	}()

	clock.Advance() // tick 1: admits "first"
	clock.Advance() // tick 2: admits "second"

	require.Nil(t, <-done)
	require.True(t, barrier.Done())

	_, err := k.Sched.FindByPID(1)
	require.Nil(t, err)
	_, err = k.Sched.FindByPID(2)
	require.Nil(t, err)
}

func TestWithMetricsPropagatesToPagerAndScheduler(t *testing.T) {
	k := newTestKernel(t, 4, 4, 256, 10)
	reg := metrics.NewRegistry(prometheus.NewRegistry())

	k.WithMetrics(reg)

	require.Same(t, reg, k.Metrics)
	require.Same(t, reg, k.Pager.Metrics)
	require.Same(t, reg, k.Sched.Metrics)
}

func TestRunLoaderUnknownPathFails(t *testing.T) {
	k := newTestKernel(t, 4, 4, 256, 10)
	loader := RegistryLoader{}
	clock := &ManualClock{}
	barrier := &LoaderBarrier{}

	err := RunLoader(k, loader, clock, []ProcessSpec{{StartTime: 0, Path: "missing"}}, barrier)
	require.NotNil(t, err)
	require.True(t, barrier.Done())
}
