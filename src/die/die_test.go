package die

import (
	"testing"

	"nvdsim/src/geometry"
	"nvdsim/src/txn"
)

func testGeometry(t *testing.T) *geometry.Config {
	t.Helper()
	cfg, err := geometry.New(geometry.Config{
		NumPackages: 1, DiesPerPackage: 1, PlanesPerDie: 2,
		BlocksPerPlane: 1, PagesPerBlock: 1, PageSize: 4096,
		ReadTime: 3, WriteTime: 5, EraseTime: 7, CmdXferCycles: 1,
	})
	if err != nil {
		t.Fatalf("geometry.New: %v", err)
	}
	return cfg
}

func TestDataPacketHasNoExecutionLatency(t *testing.T) {
	cfg := testGeometry(t)
	var completions []txn.ChannelPacket
	d := New(cfg, cfg.PlanesPerDie, func(p txn.ChannelPacket) { completions = append(completions, p) })

	d.Dispatch(txn.ChannelPacket{Pkt: txn.Data, Plane: 0, Payload: 0x7})
	d.Update()

	if len(completions) != 0 {
		t.Fatalf("a DATA packet must not produce a completion callback, got %d", len(completions))
	}
}

func TestWriteThenReadRoundTripThroughDataRegister(t *testing.T) {
	cfg := testGeometry(t)
	var completions []txn.ChannelPacket
	d := New(cfg, cfg.PlanesPerDie, func(p txn.ChannelPacket) { completions = append(completions, p) })

	d.Dispatch(txn.ChannelPacket{Pkt: txn.Data, Plane: 0, Block: 0, Page: 0, Payload: 0x55})
	d.Dispatch(txn.ChannelPacket{Pkt: txn.Write, Plane: 0, Block: 0, Page: 0})
	// One Update per WriteTime cycle counts the countdown down to zero; the
	// following Update is the one that actually executes and replies.
	for i := uint64(0); i < cfg.WriteTime+1; i++ {
		d.Update()
	}
	if len(completions) != 1 || completions[0].Pkt != txn.Write {
		t.Fatalf("expected one WRITE completion, got %+v", completions)
	}

	d.Dispatch(txn.ChannelPacket{Pkt: txn.Read, Plane: 0, Block: 0, Page: 0})
	for i := uint64(0); i < cfg.ReadTime+1; i++ {
		d.Update()
	}
	if len(completions) != 2 || completions[1].Pkt != txn.Data {
		t.Fatalf("expected a READ completion turned into a DATA reply, got %+v", completions)
	}
	if completions[1].Payload != 0x55 {
		t.Fatalf("read payload = %#x, want 0x55", completions[1].Payload)
	}
}

func TestPlanesProgressIndependently(t *testing.T) {
	cfg := testGeometry(t)
	var completions []txn.ChannelPacket
	d := New(cfg, cfg.PlanesPerDie, func(p txn.ChannelPacket) { completions = append(completions, p) })

	d.Dispatch(txn.ChannelPacket{Pkt: txn.Erase, Plane: 0}) // EraseTime=7
	d.Dispatch(txn.ChannelPacket{Pkt: txn.Read, Plane: 1})  // ReadTime=3

	// ReadTime+1 Updates are enough for plane 1's READ to execute, but not
	// enough for plane 0's longer ERASE (EraseTime+1).
	for i := uint64(0); i < cfg.ReadTime+1; i++ {
		d.Update()
	}
	if len(completions) != 1 || completions[0].Plane != 1 {
		t.Fatalf("plane 1's shorter READ should complete before plane 0's ERASE, got %+v", completions)
	}

	for i := cfg.ReadTime + 1; i < cfg.EraseTime+1; i++ {
		d.Update()
	}
	if len(completions) != 2 || completions[1].Plane != 0 {
		t.Fatalf("plane 0's ERASE should complete after its own countdown, got %+v", completions)
	}
}
