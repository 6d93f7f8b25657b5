// Package channel serializes bus packets between the Controller and one
// package's dies, modeling bus transfer cycles for both the outgoing
// (Controller -> Die) and return (Die -> Controller) directions
// (spec.md §4.4).
package channel

import (
	"nvdsim/src/geometry"
	"nvdsim/src/txn"
)

type direction int

const (
	toDie direction = iota
	fromController
)

/// Channel holds at most one in-flight packet at a time (spec.md invariant
/// 4: no two concurrent packets on the same channel in the same cycle).
type Channel struct {
	cfg *geometry.Config

	outQueue []txn.ChannelPacket // Controller -> Die, FIFO
	retQueue []txn.ChannelPacket // Die -> Controller, FIFO

	current     *txn.ChannelPacket
	cyclesLeft  uint64
	dir         direction
}

/// New constructs an empty channel for the given geometry.
func New(cfg *geometry.Config) *Channel {
	return &Channel{cfg: cfg}
}

/// Enqueue appends pkt to the outgoing (Controller -> Die) queue.
func (c *Channel) Enqueue(pkt txn.ChannelPacket) {
	c.outQueue = append(c.outQueue, pkt)
}

/// EnqueueReturn appends pkt to the return (Die -> Controller) queue. Called
/// by a Die once a command packet's execution latency has elapsed.
func (c *Channel) EnqueueReturn(pkt txn.ChannelPacket) {
	c.retQueue = append(c.retQueue, pkt)
}

/// QueueLength returns the number of packets waiting in the outgoing queue,
/// used by the logger's per-channel queue-length report.
func (c *Channel) QueueLength() int { return len(c.outQueue) }

func (c *Channel) transferCycles(pkt txn.ChannelPacket) uint64 {
	if pkt.Pkt == txn.Data {
		cycles := pkt.SizeBytes / c.cfg.BusWidth
		if cycles == 0 {
			cycles = 1
		}
		return cycles
	}
	return c.cfg.CmdXferCycles
}

/// Update clocks the in-flight packet, if any, and hands newly-idle bus
/// capacity to the next queued packet. Return traffic is drained ahead of
/// new outgoing commands so a die's reply is never starved by a steady
/// stream of writes.
//
// deliverToDie and deliverToController are called exactly once, when a
// packet finishes crossing the bus in that direction.
func (c *Channel) Update(deliverToDie func(txn.ChannelPacket), deliverToController func(txn.ChannelPacket)) {
	if c.current != nil {
		c.cyclesLeft--
		if c.cyclesLeft == 0 {
			pkt := *c.current
			c.current = nil
			if c.dir == toDie {
				deliverToDie(pkt)
			} else {
				deliverToController(pkt)
			}
		}
	}

	if c.current == nil {
		if len(c.retQueue) > 0 {
			pkt := c.retQueue[0]
			c.retQueue = c.retQueue[1:]
			c.current = &pkt
			c.cyclesLeft = c.transferCycles(pkt)
			c.dir = fromController
		} else if len(c.outQueue) > 0 {
			pkt := c.outQueue[0]
			c.outQueue = c.outQueue[1:]
			c.current = &pkt
			c.cyclesLeft = c.transferCycles(pkt)
			c.dir = toDie
		}
	}
}
