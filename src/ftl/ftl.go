// Package ftl implements the Flash Translation Layer: virtual-to-physical
// address mapping, write-pointer allocation, and background garbage
// collection (spec.md §4.2).
//
// Ftl holds no reference back to the Controller. It only ever produces two
// output queues — emitted ChannelPackets and synthesized RETURN_DATA
// transactions — which the Device drains right after each Update; the
// Controller starts clocking the drained packets on the following cycle. This is
// the message-passing alternative to a back-pointer that spec.md §9's design
// notes recommend.
package ftl

import (
	"fmt"

	"nvdsim/src/defs"
	"nvdsim/src/geometry"
	"nvdsim/src/power"
	"nvdsim/src/txn"
)

/// WritePointer is the (channel, die, plane) tuple advanced odometer-style
/// after every physical write, spreading writes across the geometry
/// (spec.md §3).
type WritePointer struct {
	Channel uint64
	Die     uint64
	Plane   uint64
}

/// Ftl is the Flash Translation Layer. A single instance owns the address
/// map, the used/dirty matrices, the write pointer, and the GC trigger.
type Ftl struct {
	cfg    *geometry.Config
	energy power.Params

	addressMap map[geometry.VAddr]geometry.PAddr

	// used[block][page] / dirty[block][page] flattened as block*PagesPerBlock+page.
	used  []bool
	dirty []bool // nil when GarbageCollect is disabled

	usedPageCount uint64
	writePtr      WritePointer

	queue []txn.Transaction
	busy  bool
	cur   txn.Transaction
	lookupCounter uint64

	writesPerAddress map[geometry.PAddr]uint64 // only when WearLevelLog

	// payloadOf remembers the last payload written to each vAddr, so that
	// runGC's live-page migration write carries the actual data forward; the
	// migration's paired DATA_READ is still issued, but its returned payload
	// is not used.
	payloadOf map[geometry.VAddr]uint64

	outPackets []txn.ChannelPacket
	outReturns []txn.Transaction
	warnings   []string

	idleEnergy   []float64
	accessEnergy []float64
	eraseEnergy  []float64
}

/// New constructs an Ftl for the given geometry and energy parameters.
func New(cfg *geometry.Config, energy power.Params) *Ftl {
	f := &Ftl{
		cfg:        cfg,
		energy:     energy,
		addressMap: make(map[geometry.VAddr]geometry.PAddr),
		payloadOf:  make(map[geometry.VAddr]uint64),
		used:       make([]bool, cfg.BlockCount()*cfg.PagesPerBlock),
	}
	if cfg.GarbageCollect {
		f.dirty = make([]bool, cfg.BlockCount()*cfg.PagesPerBlock)
	}
	if cfg.WearLevelLog {
		f.writesPerAddress = make(map[geometry.PAddr]uint64)
	}
	f.idleEnergy = make([]float64, cfg.NumPackages)
	f.accessEnergy = make([]float64, cfg.NumPackages)
	f.eraseEnergy = make([]float64, cfg.NumPackages)
	return f
}

func (f *Ftl) idx(block, page uint64) uint64 {
	return block*f.cfg.PagesPerBlock + page
}

/// AddTransaction enqueues t. Always returns true: the queue is unbounded
/// and admission control is the harness's responsibility (spec.md §4.2).
func (f *Ftl) AddTransaction(t txn.Transaction) bool {
	f.queue = append(f.queue, t)
	return true
}

/// DrainPackets returns and clears the ChannelPackets emitted since the last
/// drain. The Device calls this once per cycle, after Update, and feeds the
/// result to the Controller for the following cycle.
func (f *Ftl) DrainPackets() []txn.ChannelPacket {
	out := f.outPackets
	f.outPackets = nil
	return out
}

/// DrainReturns returns and clears the RETURN_DATA transactions synthesized
/// for unmapped reads since the last drain.
func (f *Ftl) DrainReturns() []txn.Transaction {
	out := f.outReturns
	f.outReturns = nil
	return out
}

/// DrainWarnings returns and clears any non-fatal warnings (EraseOnNonGC)
/// produced since the last drain.
func (f *Ftl) DrainWarnings() []string {
	out := f.warnings
	f.warnings = nil
	return out
}

/// UsedPageCount returns the number of currently-used pages.
func (f *Ftl) UsedPageCount() uint64 { return f.usedPageCount }

/// IdleEnergy, AccessEnergy, and EraseEnergy return per-package energy
/// accumulators for the harness's power_callback (spec.md §6).
func (f *Ftl) IdleEnergy() []float64   { return append([]float64(nil), f.idleEnergy...) }
func (f *Ftl) AccessEnergy() []float64 { return append([]float64(nil), f.accessEnergy...) }
func (f *Ftl) EraseEnergy() []float64  { return append([]float64(nil), f.eraseEnergy...) }

/// QueueLength returns the number of transactions waiting (not counting one
/// possibly in flight in the lookup slot), for the logger's queue-length
/// report.
func (f *Ftl) QueueLength() int { return len(f.queue) }

/// translate decomposes pAddr and builds a ChannelPacket of the given kind
/// (spec.md §4.1). It panics on an out-of-range pAddr: this is a fatal
/// configuration bug, not a recoverable runtime condition (spec.md §7).
func (f *Ftl) translate(pkt txn.PacketKind, vAddr geometry.VAddr, pAddr geometry.PAddr) txn.ChannelPacket {
	d, err := f.cfg.Decompose(pAddr)
	if err != nil {
		panic(fmt.Errorf("ftl: %w", err))
	}
	p := txn.FromDecomposed(pkt, vAddr, pAddr, d)
	p.SizeBytes = f.cfg.PageSize
	return p
}

/// Update runs exactly one cycle of FTL scheduling (spec.md §4.2):
//
//   - idle + queue non-empty: pop front into the lookup slot, start the
//     lookup countdown;
//   - busy + lookupCounter > 0: decrement;
//   - busy + lookupCounter == 0: execute the transaction;
//   - idle + queue empty + GC enabled: check and maybe trigger GC.
func (f *Ftl) Update() {
	if f.busy {
		if f.lookupCounter == 0 {
			f.execute(f.cur)
			f.busy = false
		} else {
			f.lookupCounter--
		}
	} else if len(f.queue) > 0 {
		f.busy = true
		f.cur = f.queue[0]
		f.queue = f.queue[1:]
		f.lookupCounter = f.cfg.LookupTime
	} else if f.cfg.GarbageCollect {
		if f.checkGC() {
			f.runGC()
		}
	}

	for i := range f.idleEnergy {
		f.idleEnergy[i] += f.energy.Isb2
	}
}

func (f *Ftl) execute(t txn.Transaction) {
	switch t.Kind {
	case txn.DataRead:
		f.executeRead(t)
	case txn.DataWrite:
		f.executeWrite(t)
	case txn.BlockErase:
		f.executeErase(t)
	default:
		panic(fmt.Errorf("ftl: %w: %v", defs.ErrUnknownTxnKind, t.Kind))
	}
}

func (f *Ftl) executeRead(t txn.Transaction) {
	pAddr, ok := f.addressMap[t.VAddr]
	if !ok {
		// Unmapped reads are not faults: return the sentinel payload.
		f.outReturns = append(f.outReturns, txn.Transaction{
			Kind: txn.ReturnData, VAddr: t.VAddr, Payload: defs.UnmappedSentinel,
		})
		return
	}
	pkt := f.translate(txn.Read, t.VAddr, pAddr)
	f.outPackets = append(f.outPackets, pkt)
	f.accessEnergy[pkt.Package] += (f.energy.Icc1 - f.energy.Isb2) * float64(f.cfg.ReadTime) / 2
}

func (f *Ftl) executeWrite(t txn.Transaction) {
	if oldPAddr, ok := f.addressMap[t.VAddr]; ok {
		block := f.cfg.BlockOf(oldPAddr)
		page := f.cfg.PageInBlock(oldPAddr)
		if f.cfg.GarbageCollect {
			f.dirty[f.idx(block, page)] = true
		} else {
			// Wear-spreading: the old slot will be reused later, so mark it
			// free rather than tracking it as reclaimable garbage.
			if f.used[f.idx(block, page)] {
				f.used[f.idx(block, page)] = false
				f.usedPageCount--
			}
		}
	}

	pAddr, ok := f.allocate()
	if !ok {
		panic(fmt.Errorf("ftl: %w", defs.ErrAllocationExhausted))
	}
	f.addressMap[t.VAddr] = pAddr
	f.payloadOf[t.VAddr] = t.Payload
	if f.cfg.WearLevelLog {
		f.writesPerAddress[pAddr]++
	}

	// DATA precedes WRITE: the data register must be loaded before the
	// program command consumes it (spec.md §4.2).
	dataPkt := f.translate(txn.Data, t.VAddr, pAddr)
	dataPkt.Payload = t.Payload
	cmdPkt := f.translate(txn.Write, t.VAddr, pAddr)
	f.outPackets = append(f.outPackets, dataPkt, cmdPkt)

	f.advanceWritePointer()
	f.accessEnergy[cmdPkt.Package] += (f.energy.Icc2 - f.energy.Isb2) * float64(f.cfg.WriteTime) / 2
}

func (f *Ftl) executeErase(t txn.Transaction) {
	if !f.cfg.GarbageCollect {
		f.warnings = append(f.warnings, fmt.Sprintf("BLOCK_ERASE on non-GC device for block %d; dropped", t.BlockIndex()))
		return
	}
	block := t.BlockIndex()
	pAddr := f.cfg.BlockPAddr(block)
	pkt := f.translate(txn.Erase, 0, pAddr)
	f.outPackets = append(f.outPackets, pkt)
	f.eraseEnergy[pkt.Package] += (f.energy.Icc3 - f.energy.Isb2) * float64(f.cfg.EraseTime) / 2

	for page := uint64(0); page < f.cfg.PagesPerBlock; page++ {
		i := f.idx(block, page)
		if f.used[i] {
			f.usedPageCount--
		}
		f.used[i] = false
		if f.dirty != nil {
			f.dirty[i] = false
		}
	}
}

// allocate scans used[*][*] starting from the write pointer's block and
// wrapping to the beginning, returning the first free page's physical
// address (spec.md §4.2).
func (f *Ftl) allocate() (geometry.PAddr, bool) {
	start := f.cfg.BlocksPerPlane * (f.writePtr.Plane + f.cfg.PlanesPerDie*(f.writePtr.Die+f.cfg.DiesPerPackage*f.writePtr.Channel))
	totalBlocks := f.cfg.BlockCount()

	for block := start; block < totalBlocks; block++ {
		if pAddr, ok := f.firstFreeInBlock(block); ok {
			return pAddr, true
		}
	}
	for block := uint64(0); block < start && block < totalBlocks; block++ {
		if pAddr, ok := f.firstFreeInBlock(block); ok {
			return pAddr, true
		}
	}
	return 0, false
}

func (f *Ftl) firstFreeInBlock(block uint64) (geometry.PAddr, bool) {
	for page := uint64(0); page < f.cfg.PagesPerBlock; page++ {
		i := f.idx(block, page)
		if !f.used[i] {
			f.used[i] = true
			f.usedPageCount++
			return f.cfg.BlockPAddr(block) + geometry.PAddr(page*f.cfg.PageSize), true
		}
	}
	return 0, false
}

// advanceWritePointer rotates (channel, die, plane) odometer-style: channel
// mod NumPackages, then die mod DiesPerPackage on wrap, then plane mod
// PlanesPerDie on wrap (spec.md §3).
func (f *Ftl) advanceWritePointer() {
	f.writePtr.Channel = (f.writePtr.Channel + 1) % f.cfg.NumPackages
	if f.writePtr.Channel == 0 {
		f.writePtr.Die = (f.writePtr.Die + 1) % f.cfg.DiesPerPackage
		if f.writePtr.Die == 0 {
			f.writePtr.Plane = (f.writePtr.Plane + 1) % f.cfg.PlanesPerDie
		}
	}
}

// checkGC preserves the original's bytes-vs-pages ratio bug bit-for-bit:
// used_page_count (a page count) is divided by TotalSize (a byte count),
// not TotalPages(). This under-counts the true utilization fraction by a
// factor of PageSize: the ratio can never exceed 1/PageSize, so for any
// PageSize >= 2 it stays at or below 0.5 and GC never triggers. Flagged in
// spec.md §9; preserved here as a
// faithful port rather than "fixed", since a silent fix would make this
// simulator diverge from the reference it was cross-checked against.
func (f *Ftl) checkGC() bool {
	return float64(f.usedPageCount)/float64(f.cfg.TotalSize) > 0.70
}

// runGC picks the dirtiest block (ties: lowest index), migrates its live
// pages via reverse address-map lookup, and schedules the block's erase
// (spec.md §4.2).
func (f *Ftl) runGC() {
	var dirtyBlock, dirtyCount uint64
	totalBlocks := f.cfg.BlockCount()
	for block := uint64(0); block < totalBlocks; block++ {
		count := uint64(0)
		for page := uint64(0); page < f.cfg.PagesPerBlock; page++ {
			if f.dirty[f.idx(block, page)] {
				count++
			}
		}
		if count > dirtyCount {
			dirtyCount = count
			dirtyBlock = block
		}
	}

	for page := uint64(0); page < f.cfg.PagesPerBlock; page++ {
		i := f.idx(dirtyBlock, page)
		if !f.used[i] || f.dirty[i] {
			continue
		}
		pAddr := f.cfg.BlockPAddr(dirtyBlock) + geometry.PAddr(page*f.cfg.PageSize)
		vAddr, found := f.reverseLookup(pAddr)
		if !found {
			panic(fmt.Errorf("ftl: live page at %#x has no address-map entry", pAddr))
		}
		// Migrate by enqueuing the documented DATA_READ,DATA_WRITE pair
		// (spec.md §4.2, §8 scenario 4) so the READ still crosses the
		// channel/die for timing and energy accounting; payloadOf carries
		// the payload forward into the paired write rather than trusting a
		// synthesized RETURN_DATA round trip to have the right value.
		f.AddTransaction(txn.Transaction{Kind: txn.DataRead, VAddr: vAddr})
		f.AddTransaction(txn.Transaction{Kind: txn.DataWrite, VAddr: vAddr, Payload: f.payloadOf[vAddr]})
	}

	f.AddTransaction(txn.Transaction{Kind: txn.BlockErase, VAddr: geometry.VAddr(dirtyBlock)})
}

// reverseLookup is an O(|addressMap|) linear scan, acceptable because GC is
// infrequent and the map is small in simulation (spec.md §9).
func (f *Ftl) reverseLookup(pAddr geometry.PAddr) (geometry.VAddr, bool) {
	for v, p := range f.addressMap {
		if p == pAddr {
			return v, true
		}
	}
	return 0, false
}

/// WritesPerAddress returns a snapshot of per-physical-address write counts,
/// non-nil only when WearLevelLog is enabled.
func (f *Ftl) WritesPerAddress() map[geometry.PAddr]uint64 {
	if f.writesPerAddress == nil {
		return nil
	}
	out := make(map[geometry.PAddr]uint64, len(f.writesPerAddress))
	for k, v := range f.writesPerAddress {
		out[k] = v
	}
	return out
}

/// Mapped reports whether vAddr currently has a live mapping, and its
/// physical address if so. Exposed for tests and for the GC invariant that
/// no live entry ever points into an erased block.
func (f *Ftl) Mapped(vAddr geometry.VAddr) (geometry.PAddr, bool) {
	p, ok := f.addressMap[vAddr]
	return p, ok
}
