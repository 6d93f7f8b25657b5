// Package geometry fixes the device's physical layout at startup and
// decomposes physical addresses into their (package, die, plane, block,
// page, offset) fields.
//
// All capacity counts must be powers of two: the decomposition shifts and
// masks bit fields whose widths are log2 of each count (spec.md §4.1).
package geometry

import (
	"fmt"

	"nvdsim/src/defs"
	"nvdsim/src/util"
)

/// Config is the immutable geometry and timing configuration carried by the
/// device. It replaces the teacher's process-wide constants with an explicit
/// struct so components stay testable in isolation (spec.md §9).
type Config struct {
	/// NumPackages is the number of packages in the device.
	NumPackages uint64
	/// DiesPerPackage is the number of dies per package.
	DiesPerPackage uint64
	/// PlanesPerDie is the number of planes per die.
	PlanesPerDie uint64
	/// BlocksPerPlane is the number of blocks per plane.
	BlocksPerPlane uint64
	/// PagesPerBlock is the number of pages per block.
	PagesPerBlock uint64
	/// PageSize is the size in bytes of a single page (NV_PAGE_SIZE).
	PageSize uint64

	/// ReadTime is the number of cycles a plane read takes.
	ReadTime uint64
	/// WriteTime is the number of cycles a plane program takes.
	WriteTime uint64
	/// EraseTime is the number of cycles a block erase takes.
	EraseTime uint64
	/// LookupTime is the number of cycles the FTL spends before executing
	/// a dequeued transaction.
	LookupTime uint64
	/// CycleTimeNs is the wall-clock duration, in nanoseconds, of one cycle.
	CycleTimeNs uint64

	/// GarbageCollect enables dirty tracking and background reclamation.
	GarbageCollect bool
	/// WearLevelLog enables per-pAddr write-count tracking.
	WearLevelLog bool
	/// SmallAccess is carried in the configuration but no component reads
	/// it: reads and writes are always whole-page, never word-granular.
	SmallAccess bool

	/// BusWidth is the channel transfer width in bytes/cycle, used to derive
	/// DATA packet transfer cycles (size / BusWidth).
	BusWidth uint64
	/// CmdXferCycles is the fixed bus-transfer cycle count for command
	/// packets (READ/WRITE/ERASE), as opposed to DATA packets which scale
	/// with size.
	CmdXferCycles uint64

	// Derived values, computed by New.

	/// BlockSize is PagesPerBlock * PageSize.
	BlockSize uint64
	/// TotalSize is the device capacity in bytes.
	TotalSize uint64

	offsetBits  uint
	pageBits    uint
	blockBits   uint
	planeBits   uint
	dieBits     uint
	packageBits uint
}

/// PAddr is a physical byte address inside the simulated device.
type PAddr uint64

/// VAddr is a virtual (logical) byte address presented by the host.
type VAddr uint64

/// Decomposed holds the fields a physical address resolves to.
type Decomposed struct {
	Package uint64
	Die     uint64
	Plane   uint64
	Block   uint64
	Page    uint64
}

/// New validates cfg and computes its derived fields and bit widths.
/// Non-power-of-two counts are a fatal configuration error (spec.md §7,
/// §4.1): this is checked once at construction rather than deferred to the
/// first translate() call, so a bad geometry never reaches cycle 1.
func New(cfg Config) (*Config, error) {
	counts := map[string]uint64{
		"NUM_PACKAGES":     cfg.NumPackages,
		"DIES_PER_PACKAGE": cfg.DiesPerPackage,
		"PLANES_PER_DIE":   cfg.PlanesPerDie,
		"BLOCKS_PER_PLANE": cfg.BlocksPerPlane,
		"PAGES_PER_BLOCK":  cfg.PagesPerBlock,
		"NV_PAGE_SIZE":     cfg.PageSize,
	}
	for name, n := range counts {
		if !util.IsPow2(n) {
			return nil, fmt.Errorf("%w: %s=%d is not a power of two", defs.ErrConfigFatal, name, n)
		}
	}

	c := cfg
	c.BlockSize = c.PagesPerBlock * c.PageSize
	c.TotalSize = c.NumPackages * c.DiesPerPackage * c.PlanesPerDie * c.BlocksPerPlane * c.BlockSize

	c.offsetBits = util.Log2(c.PageSize)
	c.pageBits = util.Log2(c.PagesPerBlock)
	c.blockBits = util.Log2(c.BlocksPerPlane)
	c.planeBits = util.Log2(c.PlanesPerDie)
	c.dieBits = util.Log2(c.DiesPerPackage)
	c.packageBits = util.Log2(c.NumPackages)

	if c.BusWidth == 0 {
		c.BusWidth = 8
	}
	if c.CmdXferCycles == 0 {
		c.CmdXferCycles = 1
	}

	return &c, nil
}

/// TotalPages returns the device capacity expressed in pages.
func (c *Config) TotalPages() uint64 {
	return c.TotalSize / c.PageSize
}

/// Decompose splits pAddr into its (package, die, plane, block, page) fields.
/// Layout from LSB to MSB, after removing the byte-offset bits: page | block
/// | plane | die | package (spec.md §4.1). Fails fast when pAddr is out of
/// range: an out-of-bounds physical address is always a configuration bug.
func (c *Config) Decompose(pAddr PAddr) (Decomposed, error) {
	if uint64(pAddr) >= c.TotalSize {
		return Decomposed{}, fmt.Errorf("%w: pAddr %#x >= total size %#x", defs.ErrConfigFatal, pAddr, c.TotalSize)
	}

	addr := uint64(pAddr) >> c.offsetBits

	page := addr & ((1 << c.pageBits) - 1)
	addr >>= c.pageBits

	block := addr & ((1 << c.blockBits) - 1)
	addr >>= c.blockBits

	plane := addr & ((1 << c.planeBits) - 1)
	addr >>= c.planeBits

	die := addr & ((1 << c.dieBits) - 1)
	addr >>= c.dieBits

	pkg := addr & ((1 << c.packageBits) - 1)

	return Decomposed{Package: pkg, Die: die, Plane: plane, Block: block, Page: page}, nil
}

/// Compose is the inverse of Decompose: it assembles a physical address from
/// its geometric fields. The write allocator and GC do not use it; they
/// address a (block, page) pair as BlockPAddr(block) + page*PageSize.
func (c *Config) Compose(d Decomposed) PAddr {
	addr := d.Package
	addr = addr<<c.dieBits | d.Die
	addr = addr<<c.planeBits | d.Plane
	addr = addr<<c.blockBits | d.Block
	addr = addr<<c.pageBits | d.Page
	addr <<= c.offsetBits
	return PAddr(addr)
}

/// BlockOf returns the device-global block index (0..TotalSize/BlockSize) for
/// a physical address, the unit GC scans and the write pointer walks.
func (c *Config) BlockOf(pAddr PAddr) uint64 {
	return uint64(pAddr) / c.BlockSize
}

/// PageInBlock returns the page index within its containing block.
func (c *Config) PageInBlock(pAddr PAddr) uint64 {
	return (uint64(pAddr) / c.PageSize) % c.PagesPerBlock
}

/// BlockCount returns the total number of blocks in the device, the size of
/// the used/dirty matrices' outer dimension.
func (c *Config) BlockCount() uint64 {
	return c.TotalSize / c.BlockSize
}

/// BlockPAddr returns the physical address of block index's first page.
func (c *Config) BlockPAddr(block uint64) PAddr {
	return PAddr(block * c.BlockSize)
}
