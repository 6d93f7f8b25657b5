// Package block models a single physical block's pages, the unit that GC
// erases and the write allocator scans (spec.md §4.4).
package block

/// Block holds per-page payloads for one physical block. Blocks materialize
/// on first write and are removed from their owning Plane's map on erase.
type Block struct {
	Index uint64
	pages map[uint64]uint64
}

/// New constructs an empty block with the given index within its plane.
func New(index uint64) *Block {
	return &Block{Index: index, pages: make(map[uint64]uint64)}
}

/// Read returns the payload most recently written to page, or zero if the
/// page was never written (a plane never serves a read for a page the FTL
/// has not mapped, so this only happens for simulator-internal bookkeeping).
func (b *Block) Read(page uint64) uint64 {
	return b.pages[page]
}

/// Write stores payload at page.
func (b *Block) Write(page uint64, payload uint64) {
	b.pages[page] = payload
}

/// Erase discards every page's payload. The block itself is still removed
/// from its Plane's map by the caller; Erase only clears contents so a
/// Block value can be reused if ever re-inserted.
func (b *Block) Erase() {
	b.pages = make(map[uint64]uint64)
}
