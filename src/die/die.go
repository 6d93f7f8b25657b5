// Package die models one die: a set of planes plus a per-plane busy
// countdown for READ_TIME/WRITE_TIME/ERASE_TIME (spec.md §4.4).
package die

import (
	"nvdsim/src/geometry"
	"nvdsim/src/plane"
	"nvdsim/src/txn"
)

type pending struct {
	pkt        txn.ChannelPacket
	cyclesLeft uint64
	active     bool
}

/// Die owns one or more Planes and serializes command execution per plane.
type Die struct {
	cfg    *geometry.Config
	planes []*plane.Plane
	work   []pending

	// onComplete receives the reply packet for a finished READ/WRITE/ERASE,
	// to be handed back to the owning Channel's return queue.
	onComplete func(txn.ChannelPacket)
}

/// New constructs a Die with the given number of planes.
func New(cfg *geometry.Config, numPlanes uint64, onComplete func(txn.ChannelPacket)) *Die {
	d := &Die{cfg: cfg, onComplete: onComplete}
	for i := uint64(0); i < numPlanes; i++ {
		d.planes = append(d.planes, plane.New())
	}
	d.work = make([]pending, numPlanes)
	return d
}

/// Dispatch delivers pkt, addressed to one of this die's planes, arming the
/// plane's busy countdown for command packets. DATA packets have no
/// execution latency: they only load the addressed plane's data register
/// (spec.md §4.4).
func (d *Die) Dispatch(pkt txn.ChannelPacket) {
	p := d.planes[pkt.Plane]

	switch pkt.Pkt {
	case txn.Data:
		p.StoreData(&pkt)
		// A DATA packet only primes the data register; it produces no
		// independent reply of its own.
	case txn.Read:
		d.work[pkt.Plane] = pending{pkt: pkt, cyclesLeft: d.cfg.ReadTime, active: true}
	case txn.Write:
		d.work[pkt.Plane] = pending{pkt: pkt, cyclesLeft: d.cfg.WriteTime, active: true}
	case txn.Erase:
		d.work[pkt.Plane] = pending{pkt: pkt, cyclesLeft: d.cfg.EraseTime, active: true}
	}
}

/// Update advances every plane's busy countdown by one cycle, executing and
/// replying on expiry.
func (d *Die) Update() {
	for i := range d.work {
		w := &d.work[i]
		if !w.active {
			continue
		}
		if w.cyclesLeft > 0 {
			w.cyclesLeft--
			continue
		}

		p := d.planes[w.pkt.Plane]
		switch w.pkt.Pkt {
		case txn.Read:
			p.Read(&w.pkt) // sets w.pkt.Pkt = Data and fills Payload
		case txn.Write:
			p.Write(&w.pkt)
		case txn.Erase:
			p.Erase(&w.pkt)
		}
		if d.onComplete != nil {
			d.onComplete(w.pkt)
		}
		w.active = false
	}
}
