// Package logger is a pure sink of simulator events: access counts,
// latencies, queue lengths, per-address write frequency, and per-package
// energy/power. It renders a human-readable report mirroring spec.md §6's
// log output and the original GCLogger/Logger.cpp's section layout.
package logger

import (
	"bytes"
	"fmt"
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"nvdsim/src/geometry"
	"nvdsim/src/power"
)

/// Op identifies the operation an access record belongs to.
type Op int

const (
	OpRead Op = iota
	OpWrite
)

type accessRecord struct {
	addr  geometry.VAddr
	start uint64
}

type completedAccess struct {
	op      Op
	pkg     uint64
	start   uint64
	process uint64
	stop    uint64
}

/// Logger accumulates statistics over the run. It never drives any other
/// component; every method here is a passive recorder.
type Logger struct {
	cfg    *geometry.Config
	energy power.Params

	cycle uint64

	numReads, numWrites           uint64
	numReadUnmapped, numReadMapped uint64
	numWriteMapped, numWriteUnmapped uint64

	accessQueue []accessRecord          // vAddr -> cycle submitted (access_start)
	inFlight    map[geometry.VAddr]accessRecord // access_process: queued -> looked up

	completed []completedAccess

	idleEnergy   []float64
	accessEnergy []float64

	writesPerAddress map[geometry.PAddr]uint64

	warnings []string
}

/// New constructs a Logger for cfg using energy for its own (separate from
/// the FTL's) power/energy report.
func New(cfg *geometry.Config, energy power.Params) *Logger {
	return &Logger{
		cfg:      cfg,
		energy:   energy,
		inFlight: make(map[geometry.VAddr]accessRecord),
		idleEnergy:   make([]float64, cfg.NumPackages),
		accessEnergy: make([]float64, cfg.NumPackages),
	}
}

/// Update accrues idle energy for one cycle and advances the logger's own
/// clock. Called once per simulated cycle, after the FTL (spec.md §4.5).
func (l *Logger) Update(cycle uint64) {
	l.cycle = cycle
	for i := range l.idleEnergy {
		l.idleEnergy[i] += l.energy.StandbyI
	}
}

/// AccessStart records that vAddr was submitted to the FTL this cycle.
func (l *Logger) AccessStart(vAddr geometry.VAddr) {
	l.accessQueue = append(l.accessQueue, accessRecord{addr: vAddr, start: l.cycle})
}

/// AccessProcess moves vAddr from the submission queue into the in-flight
/// map once the FTL begins executing it. The submission cycle is carried
/// over unchanged; no separate queue latency is recorded.
func (l *Logger) AccessProcess(vAddr geometry.VAddr) {
	for i, r := range l.accessQueue {
		if r.addr == vAddr {
			l.accessQueue = append(l.accessQueue[:i], l.accessQueue[i+1:]...)
			l.inFlight[vAddr] = accessRecord{addr: vAddr, start: r.start}
			return
		}
	}
}

/// AccessStop records that vAddr's physical operation finished this cycle,
/// closing out the access record and updating per-op counters.
func (l *Logger) AccessStop(vAddr geometry.VAddr, pAddr geometry.PAddr, pkg uint64, op Op, mapped bool) {
	r, ok := l.inFlight[vAddr]
	if !ok {
		r = accessRecord{addr: vAddr, start: l.cycle}
	} else {
		delete(l.inFlight, vAddr)
	}

	l.completed = append(l.completed, completedAccess{
		op: op, pkg: pkg, start: r.start, process: r.start, stop: l.cycle,
	})

	switch op {
	case OpRead:
		l.numReads++
		if mapped {
			l.numReadMapped++
		} else {
			l.numReadUnmapped++
		}
		l.accessEnergy[pkg] += (l.energy.ReadI - l.energy.StandbyI) * float64(l.cfg.ReadTime) / 2
	case OpWrite:
		l.numWrites++
		if mapped {
			l.numWriteMapped++
		} else {
			l.numWriteUnmapped++
		}
		l.accessEnergy[pkg] += (l.energy.WriteI - l.energy.StandbyI) * float64(l.cfg.WriteTime) / 2
		if l.writesPerAddress != nil {
			l.writesPerAddress[pAddr]++
		}
	}
}

/// EnableWearLevelLog turns on per-address write-frequency tracking, mirror
/// of the FTL's own WEAR_LEVEL_LOG bookkeeping but scoped to the logger's
/// report.
func (l *Logger) EnableWearLevelLog() {
	l.writesPerAddress = make(map[geometry.PAddr]uint64)
}

/// Warn records a non-fatal condition (e.g. EraseOnNonGC) for inclusion in
/// the rendered report.
func (l *Logger) Warn(msg string) {
	l.warnings = append(l.warnings, msg)
}

/// Render produces the human-readable report described in spec.md §6: access
/// counts, latencies, throughput, queue lengths, optional write-frequency,
/// and per-package energy/power.
func (l *Logger) Render(queueLengths []int, ftlQueueLength int) string {
	p := message.NewPrinter(language.English)
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "=== NVDIMM simulation report (cycle %d) ===\n\n", l.cycle)

	fmt.Fprintln(&buf, "-- Access counts --")
	p.Fprintf(&buf, "reads:  %d (mapped=%d unmapped=%d)\n", l.numReads, l.numReadMapped, l.numReadUnmapped)
	p.Fprintf(&buf, "writes: %d (mapped=%d unmapped=%d)\n", l.numWrites, l.numWriteMapped, l.numWriteUnmapped)
	p.Fprintf(&buf, "total:  %d\n\n", l.numReads+l.numWrites)

	fmt.Fprintln(&buf, "-- Latency --")
	readLat, writeLat, overallLat := l.averageLatencies()
	p.Fprintf(&buf, "average read latency:  %.2f cycles\n", readLat)
	p.Fprintf(&buf, "average write latency: %.2f cycles\n", writeLat)
	p.Fprintf(&buf, "average latency:       %.2f cycles\n\n", overallLat)

	fmt.Fprintln(&buf, "-- Throughput --")
	if l.cycle > 0 && l.cfg.CycleTimeNs > 0 {
		seconds := float64(l.cycle) * float64(l.cfg.CycleTimeNs) / 1e9
		bytesMoved := float64(l.numReads+l.numWrites) * float64(l.cfg.PageSize)
		kbPerSec := bytesMoved / 1024 / seconds
		p.Fprintf(&buf, "%.2f KB/sec\n\n", kbPerSec)
	} else {
		fmt.Fprint(&buf, "n/a\n\n")
	}

	fmt.Fprintln(&buf, "-- Queue lengths --")
	p.Fprintf(&buf, "FTL queue: %d\n", ftlQueueLength)
	for i, n := range queueLengths {
		p.Fprintf(&buf, "channel %d queue: %d\n", i, n)
	}
	fmt.Fprintln(&buf)

	if l.writesPerAddress != nil {
		fmt.Fprintln(&buf, "-- Write frequency (per physical address) --")
		addrs := make([]geometry.PAddr, 0, len(l.writesPerAddress))
		for a := range l.writesPerAddress {
			addrs = append(addrs, a)
		}
		sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
		for _, a := range addrs {
			p.Fprintf(&buf, "%#x: %d writes\n", uint64(a), l.writesPerAddress[a])
		}
		fmt.Fprintln(&buf)
	}

	fmt.Fprintln(&buf, "-- Energy / power (per package) --")
	for pkg := uint64(0); pkg < l.cfg.NumPackages; pkg++ {
		idleMJ := l.idleEnergy[pkg] * l.energy.Vcc / 1e6
		accessMJ := l.accessEnergy[pkg] * l.energy.Vcc / 1e6
		var powerMW float64
		if l.cycle > 0 && l.cfg.CycleTimeNs > 0 {
			seconds := float64(l.cycle) * float64(l.cfg.CycleTimeNs) / 1e9
			powerMW = (idleMJ + accessMJ) / seconds
		}
		p.Fprintf(&buf, "package %d: idle=%.4fmJ access=%.4fmJ power=%.4fmW\n", pkg, idleMJ, accessMJ, powerMW)
	}

	if len(l.warnings) > 0 {
		fmt.Fprintln(&buf, "\n-- Warnings --")
		for _, w := range l.warnings {
			fmt.Fprintln(&buf, w)
		}
	}

	return buf.String()
}

func (l *Logger) averageLatencies() (readAvg, writeAvg, overallAvg float64) {
	var readSum, writeSum, readN, writeN uint64
	for _, c := range l.completed {
		lat := c.stop - c.start
		if c.op == OpRead {
			readSum += lat
			readN++
		} else {
			writeSum += lat
			writeN++
		}
	}
	if readN > 0 {
		readAvg = float64(readSum) / float64(readN)
	}
	if writeN > 0 {
		writeAvg = float64(writeSum) / float64(writeN)
	}
	if readN+writeN > 0 {
		overallAvg = float64(readSum+writeSum) / float64(readN+writeN)
	}
	return
}
