package compose

import "sync/atomic"

// pendingDepth counts reactions and batches in progress. While it is
// non-zero, cell writes mark hosts dirty without flushing; the outermost
// reaction flushes once when it ends.
var pendingDepth atomic.Int32

func beginPending() {
	pendingDepth.Add(1)
}

// endPending reports whether the outermost pending section ended.
func endPending() bool {
	return pendingDepth.Add(-1) == 0
}

func isPending() bool {
	return pendingDepth.Load() > 0
}

// Batch groups writes so the hosts they dirty render once.
//
// Batches can be nested. Only the outermost batch flushes:
//
//	compose.Batch(func() {
//	    first.Set("John")
//	    last.Set("Doe")
//	})
//	// one render
func Batch(fn func()) {
	beginPending()
	defer func() {
		if endPending() {
			Flush()
		}
	}()
	fn()
}
