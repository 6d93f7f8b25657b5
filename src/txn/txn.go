// Package txn defines the transaction and channel-packet types that flow
// between the harness, the FTL, and the package/die/plane hierarchy
// (spec.md §3).
package txn

import "nvdsim/src/geometry"

/// Kind enumerates the transaction kinds a harness or the FTL's own garbage
/// collector can submit.
type Kind int

const (
	/// DataRead requests the data most recently written to a vAddr.
	DataRead Kind = iota
	/// DataWrite requests that a payload be durably associated with a vAddr.
	DataWrite
	/// BlockErase requests that a physical block be erased. The Transaction's
	/// VAddr field is overloaded to carry the physical block index in this
	/// case, not a virtual address (spec.md §9 quirk) — see BlockIndex.
	BlockErase
	/// ReturnData is synthesized by the FTL to deliver an unmapped read's
	/// sentinel payload back to the harness. Reads served by the device reach
	/// the harness as controller.ReadResult values instead.
	ReturnData
)

/// String renders a Kind for log/diagnostic output.
func (k Kind) String() string {
	switch k {
	case DataRead:
		return "DATA_READ"
	case DataWrite:
		return "DATA_WRITE"
	case BlockErase:
		return "BLOCK_ERASE"
	case ReturnData:
		return "RETURN_DATA"
	default:
		return "UNKNOWN"
	}
}

/// Transaction is a logical read/write/erase request. Submitted by the
/// harness, owned by the Controller once accepted, forwarded to the FTL, and
/// consumed when translated into ChannelPackets.
type Transaction struct {
	Kind Kind
	/// VAddr is the virtual address for DataRead/DataWrite/ReturnData, or the
	/// physical block index for BlockErase (spec.md §9).
	VAddr   geometry.VAddr
	Payload uint64
}

/// BlockIndex reinterprets VAddr as a physical block index, valid only when
/// Kind == BlockErase. Named explicitly at this API boundary per spec.md §9's
/// recommendation to document the overload rather than leave it implicit.
func (t Transaction) BlockIndex() uint64 {
	return uint64(t.VAddr)
}

/// PacketKind enumerates bus-packet kinds.
type PacketKind int

const (
	/// Read is a command packet instructing a plane to read a page.
	Read PacketKind = iota
	/// Write is a command packet instructing a plane to program a page from
	/// its data register.
	Write
	/// Erase is a command packet instructing a plane to erase a block.
	Erase
	/// Data carries a page payload; it loads a plane's data register ahead
	/// of a Write, or carries a page payload back from a Read.
	Data
)

/// String renders a PacketKind for log/diagnostic output.
func (k PacketKind) String() string {
	switch k {
	case Read:
		return "READ"
	case Write:
		return "WRITE"
	case Erase:
		return "ERASE"
	case Data:
		return "DATA"
	default:
		return "UNKNOWN"
	}
}

/// ChannelPacket is a bus packet created by the FTL and flowing through the
/// Controller's outgoing queue, the Channel, the Die, and the Plane. It is
/// disposed of on completion: a Data packet returning to the Controller is
/// delivered to the harness and then freed.
type ChannelPacket struct {
	Kind Kind // originating transaction kind; FromDecomposed leaves it zero and routing uses Pkt
	Pkt  PacketKind

	VAddr   geometry.VAddr
	PAddr   geometry.PAddr
	Payload uint64

	Package uint64
	Die     uint64
	Plane   uint64
	Block   uint64
	Page    uint64

	/// SizeBytes is the payload size in bytes, used to compute a DATA
	/// packet's bus-transfer cycles (size / bus width).
	SizeBytes uint64
}

/// FromDecomposed builds a ChannelPacket's geometric fields from a decomposed
/// physical address, used by the FTL's translate() (spec.md §4.1).
func FromDecomposed(pkt PacketKind, vAddr geometry.VAddr, pAddr geometry.PAddr, d geometry.Decomposed) ChannelPacket {
	return ChannelPacket{
		Pkt:     pkt,
		VAddr:   vAddr,
		PAddr:   pAddr,
		Package: d.Package,
		Die:     d.Die,
		Plane:   d.Plane,
		Block:   d.Block,
		Page:    d.Page,
	}
}
