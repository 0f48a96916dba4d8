package concurrency

import "sync/atomic"

// StopFlag is the single cancellation primitive shared across a search:
// every C3 emission loop, every C4 entry, and every Q₂ consumer checks it at
// a suspension point. Once set, producers drain their in-flight item, remove
// themselves as queue producers, and exit; no item already pushed to Q₂ is
// dropped.
//
// Go's sync/atomic does not expose separate acquire/release/relaxed memory
// orders; atomic.Bool's Load/Store pair already provides the sequentially
// consistent ordering needed here, so a single Store on Set and a single
// Load on IsSet is the intended "release/relaxed" pairing.
type StopFlag struct {
	stopped atomic.Bool
}

// Set requests cancellation. Idempotent.
func (f *StopFlag) Set() {
	f.stopped.Store(true)
}

// IsSet reports whether cancellation has been requested. Safe to call from
// any number of goroutines without additional synchronization.
func (f *StopFlag) IsSet() bool {
	return f.stopped.Load()
}
