// Package memio defines the narrow interface the runtime uses to touch a
// program's guest linear memory. Every other component -- the memory
// access registry, the lazy-page engine, the WASM environment -- depends
// on this interface rather than on any particular WASM engine's concrete
// memory type, so the engine binding (C6) is the only place a real engine
// needs to be wired in.
package memio

// Memory is a guest program's linear memory, addressed by byte offset.
// Implementations are expected to be backed by a real WASM engine's
// instance memory; see the wasmenv package for the production binding and
// lazypages for the on-demand paging layer that intercepts these calls.
type Memory interface {
	// Size returns the current memory size in bytes.
	Size() uint32
	// Read copies len(out) bytes starting at offset into out. It returns
	// an error if the range exceeds Size().
	Read(offset uint32, out []byte) error
	// Write copies data into memory starting at offset. It returns an
	// error if the range exceeds Size().
	Write(offset uint32, data []byte) error
	// Grow extends memory by delta WASM pages (each WasmPageSize bytes),
	// returning the previous size in pages, or an error if the engine
	// refuses (e.g. exceeds its maximum).
	Grow(deltaPages uint32) (previousPages uint32, err error)
}

// GearPageSize is the fixed size, in bytes, of a Gear page: the unit of
// persistent memory storage and of lazy-page charging.
const GearPageSize = 4096

// WasmPageSize is the platform WASM page size in bytes. It is always a
// multiple of GearPageSize; allocations are measured in WASM pages while
// charging is measured in Gear pages.
const WasmPageSize = 65536

// GearPagesPerWasmPage is the fixed ratio between the two page units.
const GearPagesPerWasmPage = WasmPageSize / GearPageSize

// GearPage is a page-granular index into a program's linear memory, unit of
// persistent storage and of lazy-page charging.
type GearPage uint32

// WasmPage is a platform-page index; WasmPage(n).GearPages() gives the
// GearPage range it covers.
type WasmPage uint32

// GearPages returns the GearPage indices covered by w.
func (w WasmPage) GearPages() []GearPage {
	base := uint32(w) * GearPagesPerWasmPage
	out := make([]GearPage, GearPagesPerWasmPage)
	for i := range out {
		out[i] = GearPage(base + uint32(i))
	}
	return out
}

// GearPageOf returns the GearPage containing the given byte offset.
func GearPageOf(offset uint32) GearPage {
	return GearPage(offset / GearPageSize)
}
