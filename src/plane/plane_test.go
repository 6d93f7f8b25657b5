package plane

import (
	"testing"

	"nvdsim/src/txn"
)

func TestReadOfUnwrittenBlockReturnsZeroAndTurnsIntoData(t *testing.T) {
	p := New()
	pkt := &txn.ChannelPacket{Pkt: txn.Read, Block: 1, Page: 0}
	p.Read(pkt)

	if pkt.Pkt != txn.Data {
		t.Fatalf("Read should rewrite the packet kind to Data, got %v", pkt.Pkt)
	}
	if pkt.Payload != 0 {
		t.Fatalf("Payload = %#x, want 0 for an unwritten block", pkt.Payload)
	}
	if p.DataRegister() != pkt {
		t.Fatal("Read should latch its packet into the data register")
	}
}

func TestStoreDataThenWriteRoundTrips(t *testing.T) {
	p := New()

	data := &txn.ChannelPacket{Pkt: txn.Data, Block: 0, Page: 0, Payload: 0x77}
	p.StoreData(data)

	write := &txn.ChannelPacket{Pkt: txn.Write, Block: 0, Page: 0}
	p.Write(write)

	read := &txn.ChannelPacket{Pkt: txn.Read, Block: 0, Page: 0}
	p.Read(read)
	if read.Payload != 0x77 {
		t.Fatalf("Payload = %#x, want 0x77", read.Payload)
	}
}

func TestWriteWithoutPriorDataUsesZeroPayload(t *testing.T) {
	p := New()
	write := &txn.ChannelPacket{Pkt: txn.Write, Block: 0, Page: 0}
	p.Write(write)

	read := &txn.ChannelPacket{Pkt: txn.Read, Block: 0, Page: 0}
	p.Read(read)
	if read.Payload != 0 {
		t.Fatalf("Payload = %#x, want 0 when no DATA packet preceded the WRITE", read.Payload)
	}
}

func TestEraseRemovesBlock(t *testing.T) {
	p := New()
	data := &txn.ChannelPacket{Pkt: txn.Data, Block: 0, Page: 0, Payload: 0x5}
	p.StoreData(data)
	p.Write(&txn.ChannelPacket{Pkt: txn.Write, Block: 0, Page: 0})

	p.Erase(&txn.ChannelPacket{Pkt: txn.Erase, Block: 0})

	read := &txn.ChannelPacket{Pkt: txn.Read, Block: 0, Page: 0}
	p.Read(read)
	if read.Payload != 0 {
		t.Fatalf("Payload after Erase = %#x, want 0 (erased block is no longer in the map)", read.Payload)
	}
}

func TestDistinctPagesInSameBlockAreIndependent(t *testing.T) {
	p := New()
	p.StoreData(&txn.ChannelPacket{Payload: 0x11})
	p.Write(&txn.ChannelPacket{Pkt: txn.Write, Block: 0, Page: 0})
	p.StoreData(&txn.ChannelPacket{Payload: 0x22})
	p.Write(&txn.ChannelPacket{Pkt: txn.Write, Block: 0, Page: 1})

	r0 := &txn.ChannelPacket{Pkt: txn.Read, Block: 0, Page: 0}
	p.Read(r0)
	r1 := &txn.ChannelPacket{Pkt: txn.Read, Block: 0, Page: 1}
	p.Read(r1)

	if r0.Payload != 0x11 || r1.Payload != 0x22 {
		t.Fatalf("page payloads = (%#x, %#x), want (0x11, 0x22)", r0.Payload, r1.Payload)
	}
}
