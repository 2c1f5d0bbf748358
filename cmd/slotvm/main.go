// Command slotvm is the command-line driver: it loads a program file,
// binds stdin/stdout as the VM's byte streams, runs it, and exits 0 on
// clean halt or nonzero on runtime error.
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chazu/slotvm/manifest"
	"github.com/chazu/slotvm/pkg/bytecode"
	"github.com/chazu/slotvm/pkg/history"
	"github.com/chazu/slotvm/pkg/snapshot"
	"github.com/chazu/slotvm/pkg/vmlog"
)

func main() {
	trace := flag.Bool("trace", false, "Print a per-instruction trace to stderr while running")
	disasm := flag.Bool("disasm", false, "Print a disassembly of the program and exit")
	configPath := flag.String("config", "", "Path to a vmconfig.toml run configuration")
	historyPath := flag.String("history", "", "Path to a SQLite run-history database (overrides config)")
	snapshotPath := flag.String("snapshot", "", "Path to write a snapshot if the run ends in error (overrides config)")
	maxVars := flag.Int("max-vars", 0, "Ceiling on the local variable array length (0 = default)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: slotvm [options] [program]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a slot-VM bytecode program, reading from stdin and writing to stdout.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  slotvm fib.bin                  # run fib.bin\n")
		fmt.Fprintf(os.Stderr, "  slotvm -trace fib.bin           # run with an instruction trace\n")
		fmt.Fprintf(os.Stderr, "  slotvm -disasm fib.bin          # print a disassembly and exit\n")
		fmt.Fprintf(os.Stderr, "  slotvm -config vmconfig.toml    # run the program named in the config\n")
	}
	flag.Parse()

	var m *manifest.Manifest
	if *configPath != "" {
		loaded, err := manifest.LoadFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		m = loaded
	}

	programPath := firstNonEmpty(flag.Arg(0), programPathFrom(m))
	if programPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	program, err := os.ReadFile(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", programPath, err)
		os.Exit(1)
	}

	if *disasm {
		fmt.Print(bytecode.Disassemble(program))
		return
	}

	effectiveTrace := *trace || (m != nil && m.Program.Trace)
	effectiveHistory := firstNonEmpty(*historyPath, historyPathFrom(m))
	effectiveSnapshot := firstNonEmpty(*snapshotPath, snapshotPathFrom(m))
	effectiveMaxVars := *maxVars
	if effectiveMaxVars == 0 && m != nil {
		effectiveMaxVars = m.Resources.MaxVars
	}

	vm := bytecode.New(program, os.Stdin, os.Stdout)
	if effectiveMaxVars > 0 {
		vm.MaxVars = effectiveMaxVars
	}
	if effectiveTrace {
		vm.Trace = true
		vm.Tracer = func(pc int, instr bytecode.Instruction) {
			fmt.Fprintf(os.Stderr, "%06x: %s\n", pc, instr.Opcode.String())
			vmlog.Debugf("pc=%d opcode=%s literal=0x%x", pc, instr.Opcode, instr.Literal)
		}
	}

	vmlog.Infof("starting run: %d bytes", len(program))
	start := time.Now()
	runErr := vm.Run()
	duration := time.Since(start)

	if effectiveHistory != "" {
		recordHistory(effectiveHistory, program, start, duration, vm)
	}

	if runErr != nil {
		vmlog.Errorf("run failed: %v", runErr)
		fmt.Fprintf(os.Stderr, "Program halted with error: %v\n", runErr)

		if effectiveSnapshot != "" {
			if err := snapshot.WriteFile(effectiveSnapshot, vm.Snapshot()); err != nil {
				vmlog.Warningf("could not write snapshot: %v", err)
				fmt.Fprintf(os.Stderr, "Warning: could not write snapshot: %v\n", err)
			}
		}

		if rerr, ok := runErr.(*bytecode.RuntimeError); ok {
			os.Exit(int(rerr.Kind) + 1)
		}
		os.Exit(1)
	}

	vmlog.Infof("run halted cleanly in %s", duration)
}

func programPathFrom(m *manifest.Manifest) string {
	if m == nil {
		return ""
	}
	return m.ProgramPath()
}

func historyPathFrom(m *manifest.Manifest) string {
	if m == nil {
		return ""
	}
	return m.HistoryPath()
}

func snapshotPathFrom(m *manifest.Manifest) string {
	if m == nil {
		return ""
	}
	return m.SnapshotPath()
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func recordHistory(path string, program []byte, start time.Time, duration time.Duration, vm *bytecode.VM) {
	store, err := history.Open(path)
	if err != nil {
		vmlog.Warningf("could not open history database: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: could not open history database: %v\n", err)
		return
	}
	defer store.Close()

	digest := sha256.Sum256(program)
	run := history.Run{
		ProgramDigest: hex.EncodeToString(digest[:]),
		StartedAt:     start,
		Duration:      duration,
		State:         vm.State(),
	}
	if e := vm.Err(); e != nil {
		kind := e.Kind
		pc := e.PC
		run.ErrorKind = &kind
		run.FaultPC = &pc
	}

	if err := store.Record(run); err != nil {
		vmlog.Warningf("could not record history: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: could not record history: %v\n", err)
	}
}
