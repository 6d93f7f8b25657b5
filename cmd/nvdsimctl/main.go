// Command nvdsimctl is a thin CLI wrapper around the simulator core: it
// reads a KEY value configuration file, drives the device for a requested
// number of cycles (optionally replaying a transaction-trace workload file),
// and writes a log summary. It is a convenience driver, not the harness
// proper (spec.md §1 keeps the harness itself out of the core's scope).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"

	"github.com/google/pprof/profile"

	"nvdsim/src/config"
	"nvdsim/src/device"
	"nvdsim/src/geometry"
	"nvdsim/src/txn"
)

func main() {
	configPath := flag.String("config", "", "path to a KEY value configuration file")
	cycles := flag.Uint64("cycles", 1000, "number of cycles to simulate")
	workloadPath := flag.String("workload", "", "optional transaction trace: one 'READ vAddr' / 'WRITE vAddr' / 'ERASE block' per line")
	logPath := flag.String("log", "", "path to write the summary log (default: stdout)")
	cpuProfile := flag.String("cpuprofile", "", "write a CPU profile to this path")
	memProfile := flag.String("memprofile", "", "write a heap profile to this path")
	var mergeProfiles multiFlag
	flag.Var(&mergeProfiles, "pprof-merge", "profile path to merge into -cpuprofile's output (repeatable)")
	flag.Parse()

	if *configPath == "" {
		log.Fatal("nvdsimctl: -config is required")
	}

	cfgResult, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("nvdsimctl: %v", err)
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatalf("nvdsimctl: cpuprofile: %v", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatalf("nvdsimctl: cpuprofile: %v", err)
		}
		defer pprof.StopCPUProfile()
	}

	dev := device.New(cfgResult.Geometry, cfgResult.EnergyFTL, cfgResult.EnergyLogger)
	dev.SetCallbacks(
		func(vAddr geometry.VAddr, payload uint64, cycle uint64) {
			fmt.Printf("read_complete vAddr=%#x payload=%#x cycle=%d\n", vAddr, payload, cycle)
		},
		func(vAddr geometry.VAddr, cycle uint64) {
			fmt.Printf("write_complete vAddr=%#x cycle=%d\n", vAddr, cycle)
		},
		func(idle, access, erase []float64) {},
		0,
	)

	emitEpoch := epochEmitter(dev, cfgResult.Logger)

	if *workloadPath != "" {
		if err := runWorkload(dev, *workloadPath, *cycles, emitEpoch); err != nil {
			log.Fatalf("nvdsimctl: %v", err)
		}
	} else {
		for i := uint64(0); i < *cycles; i++ {
			dev.Update()
			emitEpoch(dev.Cycle())
		}
	}

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			log.Fatalf("nvdsimctl: memprofile: %v", err)
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatalf("nvdsimctl: memprofile: %v", err)
		}
	}

	if len(mergeProfiles) > 0 {
		pprof.StopCPUProfile() // flush the CPU profile before reading it back
		if err := mergeAndWrite(*cpuProfile, mergeProfiles); err != nil {
			log.Fatalf("nvdsimctl: pprof-merge: %v", err)
		}
	}

	// LOG_DIR, when set, picks where the end-of-run NVDIMM.log lands;
	// otherwise -log (or stdout) still applies, matching the pre-LOG_DIR
	// behavior for configs that don't set it.
	finalPath := *logPath
	if cfgResult.Logger.LogDir != "" {
		finalPath = logFilePath(cfgResult.Logger.LogDir, "NVDIMM.log")
	}
	writeFinalLog(finalPath, dev.Report())
}

// writeFinalLog writes report to path, or stdout when path is empty.
// Opening the file is a LogIOFailure (spec.md §7): warn and fall back to
// stdout rather than aborting the run the statistics describe.
func writeFinalLog(path, report string) {
	if path == "" {
		fmt.Fprint(os.Stdout, report)
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		log.Printf("nvdsimctl: log: %v; statistics discarded, falling back to stdout", err)
		fmt.Fprint(os.Stdout, report)
		return
	}
	defer f.Close()
	fmt.Fprint(f, report)
}

// epochEmitter returns a per-cycle hook that renders a periodic snapshot to
// NVDIMM_EPOCH.log every EpochCycles cycles when USE_EPOCHS is set (spec.md
// §6 USE_EPOCHS/RUNTIME_WRITE; SPEC_FULL.md §4.7). RUNTIME_WRITE selects
// whether successive snapshots append (a streaming log) or overwrite (only
// the latest snapshot survives). A no-op hook is returned when epochs are
// disabled so callers never need to branch on lp.UseEpochs themselves.
func epochEmitter(dev *device.Device, lp config.LoggerParams) func(cycle uint64) {
	if !lp.UseEpochs || lp.EpochCycles == 0 {
		return func(uint64) {}
	}
	path := logFilePath(lp.LogDir, "NVDIMM_EPOCH.log")
	return func(cycle uint64) {
		if cycle == 0 || cycle%lp.EpochCycles != 0 {
			return
		}
		writeEpochLog(path, lp.RuntimeWrite, dev.Report())
	}
}

// logFilePath joins dir and name, or returns the bare name when dir is
// unset (LOG_DIR defaults to the working directory).
func logFilePath(dir, name string) string {
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

// writeEpochLog is writeFinalLog's periodic counterpart: same LogIOFailure
// disposition (warn, discard, keep running), plus the append/truncate
// choice RUNTIME_WRITE controls.
func writeEpochLog(path string, appendMode bool, report string) {
	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		log.Printf("nvdsimctl: log: %v; epoch snapshot discarded", err)
		return
	}
	defer f.Close()
	fmt.Fprint(f, report)
}

// runWorkload replays a transaction trace, ticking the device once per line
// so each submitted transaction gets a chance to be observed before the
// next is added, then ticks out the remainder of cycles. onCycle is called
// after every tick so epoch logging stays in sync with the simulated clock
// regardless of which loop is driving it.
func runWorkload(dev *device.Device, path string, cycles uint64, onCycle func(uint64)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var n uint64
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return fmt.Errorf("workload: malformed line %q", line)
		}
		addr, err := strconv.ParseUint(fields[1], 0, 64)
		if err != nil {
			return fmt.Errorf("workload: %q: %w", line, err)
		}
		var t txn.Transaction
		switch strings.ToUpper(fields[0]) {
		case "READ":
			t = txn.Transaction{Kind: txn.DataRead, VAddr: geometry.VAddr(addr)}
		case "WRITE":
			t = txn.Transaction{Kind: txn.DataWrite, VAddr: geometry.VAddr(addr), Payload: addr}
		case "ERASE":
			t = txn.Transaction{Kind: txn.BlockErase, VAddr: geometry.VAddr(addr)}
		default:
			return fmt.Errorf("workload: unknown op %q", fields[0])
		}
		dev.Add(t)
		dev.Update()
		onCycle(dev.Cycle())
		n++
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	for ; n < cycles; n++ {
		dev.Update()
		onCycle(dev.Cycle())
	}
	return nil
}

// mergeAndWrite merges one or more previously-captured pprof profiles with
// the just-written cpuprofile, a batch-run convenience for comparing, e.g.,
// a GC-enabled run against a GC-disabled run of the same workload.
func mergeAndWrite(basePath string, others []string) error {
	if basePath == "" {
		return fmt.Errorf("-cpuprofile must be set to merge into")
	}
	profiles := make([]*profile.Profile, 0, len(others)+1)
	for _, p := range append([]string{basePath}, others...) {
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		prof, err := profile.Parse(f)
		f.Close()
		if err != nil {
			return err
		}
		profiles = append(profiles, prof)
	}
	merged, err := profile.Merge(profiles)
	if err != nil {
		return err
	}
	f, err := os.Create(basePath + ".merged")
	if err != nil {
		return err
	}
	defer f.Close()
	return merged.Write(f)
}

type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }
func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}
