// Package plane implements the leaf of the device hierarchy: a sparse map of
// blocks that materialize on first write, plus the data-register interlock
// that forces the FTL's DATA-then-WRITE packet ordering (spec.md §4.4).
package plane

import (
	"nvdsim/src/block"
	"nvdsim/src/txn"
)

/// Plane holds a block map addressed by the block's index within this plane
/// (the Block field of a decomposed physical address).
type Plane struct {
	blocks map[uint64]*block.Block
	dataReg *txn.ChannelPacket
}

/// New constructs an empty plane.
func New() *Plane {
	return &Plane{blocks: make(map[uint64]*block.Block)}
}

/// Read looks up pkt.Block, reads the page into pkt's payload, and sets pkt's
/// kind to Data — the plane's way of turning a READ command into its DATA
/// reply (spec.md §4.4).
func (p *Plane) Read(pkt *txn.ChannelPacket) {
	if b, ok := p.blocks[pkt.Block]; ok {
		pkt.Payload = b.Read(pkt.Page)
	}
	pkt.Pkt = txn.Data
	p.dataReg = pkt
}

/// Write creates pkt.Block if absent and writes the page from the plane's
/// data register, which a preceding DATA packet must have set via StoreData.
func (p *Plane) Write(pkt *txn.ChannelPacket) {
	b, ok := p.blocks[pkt.Block]
	if !ok {
		b = block.New(pkt.Block)
		p.blocks[pkt.Block] = b
	}
	var payload uint64
	if p.dataReg != nil {
		payload = p.dataReg.Payload
	}
	b.Write(pkt.Page, payload)
}

/// Erase erases and removes pkt.Block from the plane's map.
func (p *Plane) Erase(pkt *txn.ChannelPacket) {
	if b, ok := p.blocks[pkt.Block]; ok {
		b.Erase()
		delete(p.blocks, pkt.Block)
	}
}

/// StoreData sets the plane's data register directly from a DATA packet,
/// ahead of the WRITE command that will consume it.
func (p *Plane) StoreData(pkt *txn.ChannelPacket) {
	p.dataReg = pkt
}

/// DataRegister returns the packet currently latched in the data register.
func (p *Plane) DataRegister() *txn.ChannelPacket {
	return p.dataReg
}
