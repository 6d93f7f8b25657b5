// Package controller implements per-channel transaction scheduling, packet
// routing between the FTL and the package/die/plane hierarchy, and
// read-data return (spec.md §4.3).
package controller

import (
	"nvdsim/src/channel"
	"nvdsim/src/die"
	"nvdsim/src/geometry"
	"nvdsim/src/txn"
)

/// Package groups one channel with the dies it serves. The channel index
/// equals the decomposed "package" field of every packet routed to it.
type Package struct {
	Channel *channel.Channel
	Dies    []*die.Die
}

/// TransactionSink is the subset of *ftl.Ftl the Controller depends on. A
/// narrow interface (rather than importing ftl.Ftl directly) keeps the
/// Controller testable against a fake FTL.
type TransactionSink interface {
	AddTransaction(txn.Transaction) bool
}

/// ReadResult describes a completed read, whether it was served by the
/// device (Mapped) or resolved instantly against an absent address-map
/// entry (!Mapped).
type ReadResult struct {
	VAddr   geometry.VAddr
	Payload uint64
	Package uint64
	Mapped  bool
}

/// Controller accepts transactions from the harness, forwards them to the
/// FTL, routes ChannelPackets the FTL emits to the right channel, and
/// returns completed reads.
type Controller struct {
	cfg      *geometry.Config
	sink     TransactionSink
	packages []Package

	onReadComplete  func(ReadResult)
	onWriteComplete func(txn.ChannelPacket)
}

/// New constructs a Controller wired to sink (normally an *ftl.Ftl).
func New(cfg *geometry.Config, sink TransactionSink) *Controller {
	return &Controller{cfg: cfg, sink: sink}
}

/// AttachPackages wires the package/die/channel tree the Controller routes
/// packets through.
func (c *Controller) AttachPackages(pkgs []Package) {
	c.packages = pkgs
}

/// SetCallbacks installs the harness hooks invoked on read completion and
/// write durability (spec.md §6's read_complete/write_complete).
func (c *Controller) SetCallbacks(onReadComplete func(ReadResult), onWriteComplete func(txn.ChannelPacket)) {
	c.onReadComplete = onReadComplete
	c.onWriteComplete = onWriteComplete
}

/// AddTransaction hands t to the FTL. The return value mirrors the FTL's.
func (c *Controller) AddTransaction(t txn.Transaction) bool {
	return c.sink.AddTransaction(t)
}

/// AddPacket enqueues p on the channel addressed by p.Package. Called by the
/// Device once per cycle, after the FTL's Update, with the packets that
/// Update emitted; the channel starts clocking them on the next cycle.
func (c *Controller) AddPacket(p txn.ChannelPacket) {
	c.packages[p.Package].Channel.Enqueue(p)
}

/// DeliverUnmapped delivers a RETURN_DATA transaction straight to the
/// harness, bypassing the channel/die path entirely — used for unmapped
/// reads, which the FTL resolves without ever touching the device
/// (spec.md §4.2).
func (c *Controller) DeliverUnmapped(t txn.Transaction) {
	if c.onReadComplete != nil {
		c.onReadComplete(ReadResult{VAddr: t.VAddr, Payload: t.Payload, Mapped: false})
	}
}

/// ReceiveFromChannel accepts a response packet returning from a die. A DATA
/// reply to a READ becomes a ReadResult (Mapped=true) delivered to the
/// read-complete hook; a WRITE ack fires write_complete; an ERASE ack is silently
/// absorbed (spec.md §4.3 defines no harness hook for erase completion).
func (c *Controller) ReceiveFromChannel(p txn.ChannelPacket) {
	switch p.Pkt {
	case txn.Data:
		if c.onReadComplete != nil {
			c.onReadComplete(ReadResult{VAddr: p.VAddr, Payload: p.Payload, Package: p.Package, Mapped: true})
		}
	case txn.Write:
		if c.onWriteComplete != nil {
			c.onWriteComplete(p)
		}
	}
}

/// Update decrements every channel's transfer countdown, delivering packets
/// to dies (outgoing) or back to the Controller (return) on completion, and
/// advances every attached Die by one cycle (spec.md §4.3, §4.5).
func (c *Controller) Update() {
	for i := range c.packages {
		pkg := &c.packages[i]
		for _, d := range pkg.Dies {
			d.Update()
		}
	}
	for i := range c.packages {
		pkg := &c.packages[i]
		pkg.Channel.Update(
			func(pkt txn.ChannelPacket) { pkg.Dies[pkt.Die].Dispatch(pkt) },
			func(pkt txn.ChannelPacket) { c.ReceiveFromChannel(pkt) },
		)
	}
}

/// QueueLengths returns the current outgoing queue length of every channel,
/// in package order, for the logger's queue-length report.
func (c *Controller) QueueLengths() []int {
	lens := make([]int, len(c.packages))
	for i := range c.packages {
		lens[i] = c.packages[i].Channel.QueueLength()
	}
	return lens
}
