package hostcall

// BindMemory registers alloc/free: alloc returns the first new WASM-page
// index, or math.MaxUint32 on allocation failure (out of pages, or beyond
// the schedule's MaxPages limit); free returns 0 on success, nonzero
// otherwise -- both per spec §4.4's non-trapping, sentinel-return
// convention (these two calls are infallible in the sense that they never
// produce a fallible ErrorRecord, they encode failure in the return value
// itself).
func BindMemory(t *Table) {
	const allocFailed = ^uint32(0)

	t.Bind(NameAlloc, func(ext Externalities, args Args) (any, error) {
		pages := args[ArgLength].(uint32)
		first, err := ext.Control().Alloc(pages)
		if err != nil {
			return allocFailed, nil
		}
		return first, nil
	})
	t.Bind(NameFree, func(ext Externalities, args Args) (any, error) {
		pageNo := args[ArgLength].(uint32)
		if err := ext.Control().Free(pageNo); err != nil {
			return uint32(1), nil
		}
		return uint32(0), nil
	})
}
