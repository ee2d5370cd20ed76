// Package config parses the simulator's configuration file (spec §6):
// a first line of global scheduling parameters, a second line of
// device sizes, and one line per process to load. Line-by-line scanning
// with bufio.Scanner follows the teacher's internal/timeslice record
// reader idiom, generalized from a binary record format to this
// whitespace-delimited text one.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tinyrange/osvm/internal/kernel"
	"github.com/tinyrange/osvm/internal/oserr"
	"github.com/tinyrange/osvm/internal/sched"
	"gopkg.in/yaml.v3"
)

// Config is the parsed configuration file contents.
type Config struct {
	TimeSlot     int
	NumCPUs      int
	NumProcesses int

	RAMSize   int
	SwapSizes []int

	Processes []kernel.ProcessSpec

	Tuning Tuning
}

// Tuning holds the optional sidecar overrides for values spec.md leaves
// as "implementation-selected" profile knobs: page size, the scheduler
// level count, and the swap device's page size.
type Tuning struct {
	PageSize     int `yaml:"page_size"`
	MaxPrio      int `yaml:"max_prio"`
	SwapPageSize int `yaml:"swap_page_size"`
}

// defaultTuning holds the values used when no sidecar file overrides
// them: 256-byte RAM and swap pages (the 32-bit PTE profile's page
// size, not the 4KiB page of the 64-bit helpers in internal/pte) and
// sched.MaxPrio levels.
func defaultTuning() Tuning {
	return Tuning{PageSize: 256, MaxPrio: sched.MaxPrio, SwapPageSize: 256}
}

// DefaultPrio is used for a process line that omits the optional
// [prio] field: the middle of the level range, matching neither the
// highest nor lowest scheduling class.
func defaultPrio(maxPrio int) int { return maxPrio / 2 }

// Load reads and parses the config file at path, resolving process
// paths under procDir (spec §6: "paths are resolved under
// input/proc/"). It also looks for a "<path>.tuning.yaml" sibling and,
// if present, merges it over the defaults.
func Load(path, procDir string) (*Config, *oserr.Error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, oserr.Wrap("config.load", oserr.NotFound, err)
	}
	defer f.Close()

	cfg, perr := Parse(f, procDir)
	if perr != nil {
		return nil, perr
	}

	cfg.Tuning = defaultTuning()
	if tuning, terr := loadTuning(path + ".tuning.yaml"); terr == nil {
		mergeTuning(&cfg.Tuning, tuning)
	} else if !os.IsNotExist(terr) {
		return nil, oserr.Wrap("config.load_tuning", oserr.InvalidArgument, terr)
	}

	return cfg, nil
}

// Parse reads the config grammar from r without touching the
// filesystem for the tuning sidecar; Load wraps this plus the sidecar
// lookup.
func Parse(r io.Reader, procDir string) (*Config, *oserr.Error) {
	scanner := bufio.NewScanner(r)

	header, err := nextFields(scanner, 3)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if cfg.TimeSlot, err = parseInt("time_slot", header[0]); err != nil {
		return nil, err
	}
	if cfg.NumCPUs, err = parseInt("num_cpus", header[1]); err != nil {
		return nil, err
	}
	if cfg.NumProcesses, err = parseInt("num_processes", header[2]); err != nil {
		return nil, err
	}

	// The sizes line is ram_size followed by one swap size per configured
	// swap device (spec §6); the device count is however many trailing
	// fields the line carries, mirroring os.c's read_config loop over
	// PAGING_MAX_MMSWP slots rather than a fixed arity.
	sizes, err := nextFields(scanner, -1)
	if err != nil {
		return nil, err
	}
	if len(sizes) < 2 {
		return nil, oserr.New("config.parse_sizes", oserr.InvalidArgument)
	}
	if cfg.RAMSize, err = parseInt("ram_size", sizes[0]); err != nil {
		return nil, err
	}
	cfg.SwapSizes = make([]int, len(sizes)-1)
	for i, s := range sizes[1:] {
		if cfg.SwapSizes[i], err = parseInt("swap_size", s); err != nil {
			return nil, err
		}
	}

	for i := 0; i < cfg.NumProcesses; i++ {
		fields, err := nextFields(scanner, -1)
		if err != nil {
			return nil, err
		}
		if len(fields) < 2 {
			return nil, oserr.New("config.parse_process", oserr.InvalidArgument)
		}

		start, err := parseInt("start_time", fields[0])
		if err != nil {
			return nil, err
		}

		prio := defaultPrio(sched.MaxPrio)
		if len(fields) >= 3 {
			if prio, err = parseInt("prio", fields[2]); err != nil {
				return nil, err
			}
		}

		cfg.Processes = append(cfg.Processes, kernel.ProcessSpec{
			StartTime: start,
			Path:      filepath.Join(procDir, fields[1]),
			Prio:      prio,
		})
	}

	if serr := scanner.Err(); serr != nil {
		return nil, oserr.Wrap("config.scan", oserr.InvalidArgument, serr)
	}
	return cfg, nil
}

func nextFields(scanner *bufio.Scanner, want int) ([]string, *oserr.Error) {
	if !scanner.Scan() {
		return nil, oserr.New("config.parse", oserr.InvalidArgument)
	}
	fields := strings.Fields(scanner.Text())
	if want >= 0 && len(fields) != want {
		return nil, oserr.New("config.parse", oserr.InvalidArgument)
	}
	return fields, nil
}

func parseInt(field, s string) (int, *oserr.Error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, oserr.Wrap(fmt.Sprintf("config.parse_%s", field), oserr.InvalidArgument, err)
	}
	return v, nil
}

func loadTuning(path string) (Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, err
	}
	var t Tuning
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tuning{}, err
	}
	return t, nil
}

func mergeTuning(base *Tuning, override Tuning) {
	if override.PageSize != 0 {
		base.PageSize = override.PageSize
	}
	if override.MaxPrio != 0 {
		base.MaxPrio = override.MaxPrio
	}
	if override.SwapPageSize != 0 {
		base.SwapPageSize = override.SwapPageSize
	}
}
