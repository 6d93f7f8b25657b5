// Package device is the top-level arena owner described in spec.md §9's
// design notes: it owns every Plane/Die/Channel/Controller/FTL/Logger by
// value, wires the cross-references the original expressed as back-pointers
// into plain method calls, and drives the leaves-first per-cycle tick
// (spec.md §4.5). It is the Embedding API (spec.md §6) a harness calls.
package device

import (
	"nvdsim/src/channel"
	"nvdsim/src/controller"
	"nvdsim/src/die"
	"nvdsim/src/ftl"
	"nvdsim/src/geometry"
	"nvdsim/src/logger"
	"nvdsim/src/power"
	"nvdsim/src/txn"
)

/// ReadCompleteFunc is invoked when a read returns, mirroring spec.md §6's
/// read_complete(vAddr, payload, cycle) callback.
type ReadCompleteFunc func(vAddr geometry.VAddr, payload uint64, cycle uint64)

/// WriteCompleteFunc is invoked when a write is durable, mirroring spec.md
/// §6's write_complete(vAddr, cycle) callback.
type WriteCompleteFunc func(vAddr geometry.VAddr, cycle uint64)

/// PowerCallbackFunc is invoked periodically with per-package energy
/// accumulators, mirroring spec.md §6's power_callback(idle, access, erase).
type PowerCallbackFunc func(idle, access, erase []float64)

/// Device owns the whole simulated device and exposes Add/Update plus
/// callback registration. Construct with New, wire callbacks with
/// SetCallbacks, then call Update once per simulated cycle.
type Device struct {
	cfg    *geometry.Config
	ftl    *ftl.Ftl
	ctrl   *controller.Controller
	logger *logger.Logger

	channels []*channel.Channel

	cycle uint64

	onReadComplete     ReadCompleteFunc
	onWriteComplete    WriteCompleteFunc
	onPowerCallback    PowerCallbackFunc
	powerCallbackEvery uint64
}

/// New constructs a fully-wired Device for the given geometry and energy
/// parameters. energyFTL feeds the FTL's own power_callback accounting;
/// energyLogger feeds the logger's independent report (see DESIGN.md for why
/// these are kept separate).
func New(cfg *geometry.Config, energyFTL, energyLogger power.Params) *Device {
	f := ftl.New(cfg, energyFTL)
	lg := logger.New(cfg, energyLogger)
	if cfg.WearLevelLog {
		lg.EnableWearLevelLog()
	}
	ctrl := controller.New(cfg, f)

	d := &Device{cfg: cfg, ftl: f, ctrl: ctrl, logger: lg}

	pkgs := make([]controller.Package, cfg.NumPackages)
	for p := uint64(0); p < cfg.NumPackages; p++ {
		ch := channel.New(cfg)
		d.channels = append(d.channels, ch)

		dies := make([]*die.Die, cfg.DiesPerPackage)
		for dieIdx := uint64(0); dieIdx < cfg.DiesPerPackage; dieIdx++ {
			dies[dieIdx] = die.New(cfg, cfg.PlanesPerDie, ch.EnqueueReturn)
		}
		pkgs[p] = controller.Package{Channel: ch, Dies: dies}
	}
	ctrl.AttachPackages(pkgs)
	ctrl.SetCallbacks(d.handleReadComplete, d.handleWriteComplete)

	return d
}

/// SetCallbacks installs the harness hooks of spec.md §6. powerCallbackEvery
/// cycles apart, if nonzero, onPowerCallback is invoked with the FTL's
/// idle/access/erase accumulators; pass 0 to disable automatic invocation
/// (a harness may still read accumulators at any time via PowerSnapshot).
func (d *Device) SetCallbacks(onRead ReadCompleteFunc, onWrite WriteCompleteFunc, onPower PowerCallbackFunc, powerCallbackEvery uint64) {
	d.onReadComplete = onRead
	d.onWriteComplete = onWrite
	d.onPowerCallback = onPower
	d.powerCallbackEvery = powerCallbackEvery
}

/// Add submits a transaction, mirroring spec.md §6's add(txn). Always
/// succeeds: the FTL's queue is unbounded.
func (d *Device) Add(t txn.Transaction) bool {
	if t.Kind == txn.DataRead || t.Kind == txn.DataWrite {
		d.logger.AccessStart(t.VAddr)
	}
	return d.ctrl.AddTransaction(t)
}

/// Update advances the simulation by exactly one cycle: Dies, then Channels,
/// then Controller (folded into one Controller.Update call), then the FTL,
/// then the Logger — spec.md §4.5's leaves-first order. Packets the FTL
/// emits this cycle are queued on the Controller's channels and not clocked
/// until cycle N+1, preserving the bus/execution latency model. Unmapped-read
/// returns the FTL emits this cycle reach the harness's read callback within
/// this same cycle.
func (d *Device) Update() {
	d.cycle++

	d.ctrl.Update() // Dies -> Channels -> Controller

	d.ftl.Update()

	for _, pkt := range d.ftl.DrainPackets() {
		if pkt.Pkt == txn.Read || pkt.Pkt == txn.Write {
			d.logger.AccessProcess(pkt.VAddr)
		}
		d.ctrl.AddPacket(pkt)
	}
	for _, t := range d.ftl.DrainReturns() {
		d.ctrl.DeliverUnmapped(t)
	}
	for _, w := range d.ftl.DrainWarnings() {
		d.logger.Warn(w)
	}

	d.logger.Update(d.cycle)

	if d.powerCallbackEvery > 0 && d.cycle%d.powerCallbackEvery == 0 {
		d.firePowerCallback()
	}
}

func (d *Device) firePowerCallback() {
	if d.onPowerCallback != nil {
		d.onPowerCallback(d.ftl.IdleEnergy(), d.ftl.AccessEnergy(), d.ftl.EraseEnergy())
	}
}

func (d *Device) handleReadComplete(r controller.ReadResult) {
	d.logger.AccessStop(r.VAddr, 0, r.Package, logger.OpRead, r.Mapped)
	if d.onReadComplete != nil {
		d.onReadComplete(r.VAddr, r.Payload, d.cycle)
	}
}

func (d *Device) handleWriteComplete(pkt txn.ChannelPacket) {
	d.logger.AccessStop(pkt.VAddr, pkt.PAddr, pkt.Package, logger.OpWrite, true)
	if d.onWriteComplete != nil {
		d.onWriteComplete(pkt.VAddr, d.cycle)
	}
}

/// Cycle returns the current simulated cycle count.
func (d *Device) Cycle() uint64 { return d.cycle }

/// Mapped reports whether vAddr currently has a live mapping.
func (d *Device) Mapped(vAddr geometry.VAddr) (geometry.PAddr, bool) {
	return d.ftl.Mapped(vAddr)
}

/// UsedPageCount returns the FTL's current used-page count, for tests
/// exercising GC triggering.
func (d *Device) UsedPageCount() uint64 { return d.ftl.UsedPageCount() }

/// PowerSnapshot returns the FTL's current idle/access/erase energy
/// accumulators without waiting for the periodic callback.
func (d *Device) PowerSnapshot() (idle, access, erase []float64) {
	return d.ftl.IdleEnergy(), d.ftl.AccessEnergy(), d.ftl.EraseEnergy()
}

/// Report renders the logger's human-readable summary (spec.md §6's log
/// output), including the current FTL and per-channel queue lengths.
func (d *Device) Report() string {
	return d.logger.Render(d.ctrl.QueueLengths(), d.ftl.QueueLength())
}

/// Config returns the geometry this device was constructed with.
func (d *Device) Config() *geometry.Config { return d.cfg }
