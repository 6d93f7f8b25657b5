// Package config parses the KEY value text configuration files described in
// spec.md §6 into a geometry.Config plus the energy parameters used by the
// FTL and the Logger.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"nvdsim/src/geometry"
	"nvdsim/src/power"
)

/// LoggerParams carries the logger-specific keys from spec.md §6 that are
/// not part of the geometry.
type LoggerParams struct {
	UseEpochs    bool
	EpochCycles  uint64
	RuntimeWrite bool
	LogDir       string
}

/// Result bundles everything config.Load produces.
type Result struct {
	Geometry *geometry.Config
	EnergyFTL power.Params
	EnergyLogger power.Params
	Logger   LoggerParams
}

// raw holds every recognized key before validation, keyed exactly as they
// appear in the file (spec.md §6's table).
type raw map[string]string

/// Load reads a KEY value configuration file: one assignment per line,
/// whitespace-separated, blank lines and lines starting with '#' ignored.
func Load(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

/// Parse reads the KEY value format from r. Exported separately from Load so
/// callers (and tests) can parse an in-memory string without touching disk.
func Parse(r io.Reader) (*Result, error) {
	kv := raw{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("config: malformed line %q", line)
		}
		kv[fields[0]] = fields[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := geometry.Config{}
	var err error

	cfg.NumPackages, err = kv.uintOr("NUM_PACKAGES", 1, err)
	cfg.DiesPerPackage, err = kv.uintOr("DIES_PER_PACKAGE", 1, err)
	cfg.PlanesPerDie, err = kv.uintOr("PLANES_PER_DIE", 1, err)
	cfg.BlocksPerPlane, err = kv.uintOr("BLOCKS_PER_PLANE", 1, err)
	cfg.PagesPerBlock, err = kv.uintOr("PAGES_PER_BLOCK", 1, err)
	cfg.PageSize, err = kv.uintOr("NV_PAGE_SIZE", 4096, err)

	cfg.ReadTime, err = kv.uintOr("READ_TIME", 40, err)
	cfg.WriteTime, err = kv.uintOr("WRITE_TIME", 100, err)
	cfg.EraseTime, err = kv.uintOr("ERASE_TIME", 500, err)
	cfg.LookupTime, err = kv.uintOr("LOOKUP_TIME", 10, err)
	cfg.CycleTimeNs, err = kv.uintOr("CYCLE_TIME", 1, err)

	var gc, wear uint64
	gc, err = kv.uintOr("GARBAGE_COLLECT", 0, err)
	wear, err = kv.uintOr("WEAR_LEVEL_LOG", 0, err)
	cfg.GarbageCollect = gc != 0
	cfg.WearLevelLog = wear != 0

	if err != nil {
		return nil, err
	}

	geo, err := geometry.New(cfg)
	if err != nil {
		return nil, err
	}

	energyFTL := power.Default()
	energyFTL.Icc1, err = kv.floatOr("ICC1", energyFTL.Icc1, err)
	energyFTL.Icc2, err = kv.floatOr("ICC2", energyFTL.Icc2, err)
	energyFTL.Icc3, err = kv.floatOr("ICC3", energyFTL.Icc3, err)
	energyFTL.Isb2, err = kv.floatOr("ISB2", energyFTL.Isb2, err)
	energyFTL.Vcc, err = kv.floatOr("VCC", energyFTL.Vcc, err)
	if err != nil {
		return nil, err
	}

	energyLogger := power.Default()
	energyLogger.ReadI, err = kv.floatOr("READ_I", energyLogger.ReadI, err)
	energyLogger.WriteI, err = kv.floatOr("WRITE_I", energyLogger.WriteI, err)
	energyLogger.EraseI, err = kv.floatOr("ERASE_I", energyLogger.EraseI, err)
	energyLogger.StandbyI, err = kv.floatOr("STANDBY_I", energyLogger.StandbyI, err)
	energyLogger.Vcc, err = kv.floatOr("VCC", energyLogger.Vcc, err)
	if err != nil {
		return nil, err
	}

	var useEpochs, runtimeWrite, epochCycles uint64
	useEpochs, err = kv.uintOr("USE_EPOCHS", 0, err)
	runtimeWrite, err = kv.uintOr("RUNTIME_WRITE", 0, err)
	epochCycles, err = kv.uintOr("EPOCH_CYCLES", 1000, err)
	if err != nil {
		return nil, err
	}

	return &Result{
		Geometry:     geo,
		EnergyFTL:    energyFTL,
		EnergyLogger: energyLogger,
		Logger: LoggerParams{
			UseEpochs:    useEpochs != 0,
			EpochCycles:  epochCycles,
			RuntimeWrite: runtimeWrite != 0,
			LogDir:       kv["LOG_DIR"],
		},
	}, nil
}

func (kv raw) uintOr(key string, def uint64, prevErr error) (uint64, error) {
	if prevErr != nil {
		return 0, prevErr
	}
	v, ok := kv[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q: %w", key, v, err)
	}
	return n, nil
}

func (kv raw) floatOr(key string, def float64, prevErr error) (float64, error) {
	if prevErr != nil {
		return 0, prevErr
	}
	v, ok := kv[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q: %w", key, v, err)
	}
	return n, nil
}
