// Command osvm runs the paging/scheduling simulator against a
// configuration file (spec §6): one positional argument naming the
// file under input/, one loader thread, and one CPU driver goroutine
// per configured CPU, torn down when the loader is finished and every
// queue has drained.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar/v3"

	"github.com/tinyrange/osvm/internal/config"
	"github.com/tinyrange/osvm/internal/kernel"
	"github.com/tinyrange/osvm/internal/memphy"
	"github.com/tinyrange/osvm/internal/metrics"
	"github.com/tinyrange/osvm/internal/obslog"
	"github.com/tinyrange/osvm/internal/oserr"
	"github.com/tinyrange/osvm/internal/pager"
	"github.com/tinyrange/osvm/internal/trace"
)

// exitError carries a process exit code up through run(), matching
// spec §6's "exit code 0 on clean shutdown, 1 on usage or config-open
// error."
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("osvm exited with code %d", e.code) }

func main() {
	if err := run(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "osvm: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	inputDir := flag.String("input-dir", "input", "Root directory containing the config file and input/proc/")
	debug := flag.Bool("debug", false, "Enable debug logging")
	dumpYAML := flag.String("dump", "", "Write a golden-state YAML snapshot to this path after shutdown")
	metricsAddr := flag.String("metrics-addr", "", "If set, serve Prometheus metrics on this address until shutdown")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <config-file>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Run the paging/scheduling simulator against a config file under input/.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return &exitError{code: 1}
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := obslog.NewLogger(os.Stderr, level)

	configPath := filepath.Join(*inputDir, flag.Arg(0))
	procDir := filepath.Join(*inputDir, "proc")

	cfg, cerr := config.Load(configPath, procDir)
	if cerr != nil {
		log.Error("failed to load config", "path", configPath, "err", cerr)
		return &exitError{code: 1}
	}

	reg := metrics.NewRegistry(prometheus.DefaultRegisterer)
	if *metricsAddr != "" {
		stop := serveMetrics(*metricsAddr, log)
		defer stop()
	}

	ram := memphy.New(cfg.RAMSize, true)
	ram.Format(cfg.Tuning.PageSize)
	if rerr := ram.RequireRandomAccess("kernel.init"); rerr != nil {
		log.Error("RAM device must be random-access", "err", rerr)
		return &exitError{code: 1}
	}

	// One sequential-access device per configured swap size (spec §6's
	// MAX_SWAP sizes line), mirroring os.c's mswp[PAGING_MAX_MMSWP] array;
	// slot 0 is the initial active swap, matching active_mswp_id there.
	swaps := make([]*memphy.Device, len(cfg.SwapSizes))
	for i, size := range cfg.SwapSizes {
		swaps[i] = memphy.New(size, false)
		swaps[i].Format(cfg.Tuning.SwapPageSize)
	}

	p := pager.New(ram, swaps, 0)

	k := kernel.NewWithLevels(ram, p, cfg.Tuning.PageSize, cfg.TimeSlot, cfg.Tuning.MaxPrio, log)
	k.WithMetrics(reg)
	k.WithTrace(trace.NewPrinter(os.Stdout))

	// RunLoader requires specs sorted by start_time ascending; the config
	// grammar doesn't itself guarantee the file lists them in order.
	sort.SliceStable(cfg.Processes, func(i, j int) bool {
		return cfg.Processes[i].StartTime < cfg.Processes[j].StartTime
	})

	clock := &kernel.ManualClock{}
	barrier := &kernel.LoaderBarrier{}

	var wg sync.WaitGroup
	wg.Add(1)
	var loadErr *oserr.Error
	go func() {
		defer wg.Done()
		loadErr = kernel.RunLoader(k, fileLoader{}, clock, cfg.Processes, barrier)
	}()

	bar := progressbar.Default(int64(horizon(cfg.Processes)))
	defer bar.Close()

	for cpu := 0; cpu < cfg.NumCPUs; cpu++ {
		wg.Add(1)
		go func(cpu int) {
			defer wg.Done()
			k.RunCPU(cpu, barrier)
		}(cpu)
	}

	for !barrier.Done() {
		_ = bar.Set(clock.Advance())
		runtime.Gosched()
	}
	wg.Wait()

	if loadErr != nil {
		log.Error("loader failed", "err", loadErr)
		return &exitError{code: 1}
	}

	if *dumpYAML != "" {
		if derr := writeSnapshot(*dumpYAML, k); derr != nil {
			log.Error("failed to write snapshot", "err", derr)
			return &exitError{code: 1}
		}
	}

	log.Info("simulation finished cleanly")
	return nil
}

// horizon returns the latest start_time among specs, as a sane upper
// bound for the progress bar; the loader and CPU threads may finish
// sooner if every process halts quickly.
func horizon(specs []kernel.ProcessSpec) int {
	max := 1
	for _, s := range specs {
		if s.StartTime > max {
			max = s.StartTime
		}
	}
	return max
}
