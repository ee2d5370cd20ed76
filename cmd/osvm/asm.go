package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tinyrange/osvm/internal/isa"
	"github.com/tinyrange/osvm/internal/oserr"
)

// fileLoader resolves a process's code path to an on-disk text program:
// one mnemonic per line, blank lines and "#" comments ignored. The
// bytecode format proper is out of scope for this module (spec §1); this
// is the minimal concrete syntax the CLI needs to actually run the demo
// workloads under input/proc/ rather than only the in-memory
// kernel.RegistryLoader tests use.
//
//	nop
//	syscall <a1> <a2> <a3> <a4>
//	halt
type fileLoader struct{}

func (fileLoader) Load(path string) (isa.Code, *oserr.Error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, oserr.Wrap("asm.load", oserr.NotFound, err)
	}
	defer f.Close()

	var instrs []isa.Instr
	scanner := bufio.NewScanner(f)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		instr, perr := parseInstr(line)
		if perr != nil {
			return nil, oserr.Wrap(fmt.Sprintf("asm.parse:%d", lineNo), oserr.InvalidArgument, perr)
		}
		instrs = append(instrs, instr)
	}
	if err := scanner.Err(); err != nil {
		return nil, oserr.Wrap("asm.scan", oserr.InvalidArgument, err)
	}
	return isa.NewProgram(instrs), nil
}

func parseInstr(line string) (isa.Instr, error) {
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "nop":
		return isa.Instr{Op: isa.OpNop}, nil
	case "halt":
		return isa.Instr{Op: isa.OpHalt}, nil
	case "syscall":
		if len(fields) != 5 {
			return isa.Instr{}, fmt.Errorf("syscall wants 4 register args, got %d", len(fields)-1)
		}
		args := make([]int, 4)
		for i, f := range fields[1:] {
			v, err := strconv.Atoi(f)
			if err != nil {
				return isa.Instr{}, fmt.Errorf("register %d: %w", i+1, err)
			}
			args[i] = v
		}
		return isa.Instr{
			Op:   isa.OpSyscall,
			Args: isa.Registers{A1: args[0], A2: args[1], A3: args[2], A4: args[3]},
		}, nil
	default:
		return isa.Instr{}, fmt.Errorf("unknown mnemonic %q", fields[0])
	}
}
