package protocol

import (
	"sync/atomic"
	"unsafe"
)

// loadUint32Acquire and storeUint32Release give the frame_length sentinel
// its release/acquire discipline (spec.md §5 "release/acquire ordering").
// Go's memory model does not expose a bare acquire/release load/store on
// plain byte slices, so these route through atomic.*Uint32 on the word's
// address, which the runtime treats as a full sequentially-consistent
// operation -- strictly stronger than required, and the same trick the
// language's own runtime/sync packages use when a weaker primitive isn't
// exposed.
func loadUint32Acquire(buf []byte, offset int32) uint32 {
	ptr := (*uint32)(unsafe.Pointer(&buf[offset]))
	return atomic.LoadUint32(ptr)
}

func storeUint32Release(buf []byte, offset int32, value uint32) {
	ptr := (*uint32)(unsafe.Pointer(&buf[offset]))
	atomic.StoreUint32(ptr, value)
}

func loadUint64Acquire(buf []byte, offset int32) uint64 {
	ptr := (*uint64)(unsafe.Pointer(&buf[offset]))
	return atomic.LoadUint64(ptr)
}

func storeUint64Release(buf []byte, offset int32, value uint64) {
	ptr := (*uint64)(unsafe.Pointer(&buf[offset]))
	atomic.StoreUint64(ptr, value)
}

// CASUint64 performs the compare-and-swap the tail claim protocol needs
// (spec.md §4.L step 2/3).
func CASUint64(buf []byte, offset int32, old, new uint64) bool {
	ptr := (*uint64)(unsafe.Pointer(&buf[offset]))
	return atomic.CompareAndSwapUint64(ptr, old, new)
}

// AddUint64 performs a fetch-and-add on a 64-bit word, returning the
// pre-increment value (spec.md §4.L step 3). The exclusive claim path in
// buffer.Term.Claim does not use it; it updates the tail with CASUint64.
func AddUint64(buf []byte, offset int32, delta uint64) uint64 {
	ptr := (*uint64)(unsafe.Pointer(&buf[offset]))
	return atomic.AddUint64(ptr, delta) - delta
}

// LoadUint64Volatile and StoreUint64Ordered expose the same primitives for
// use outside this package (position counters, metadata tail words).
func LoadUint64Volatile(buf []byte, offset int32) uint64 {
	return loadUint64Acquire(buf, offset)
}

func StoreUint64Ordered(buf []byte, offset int32, value uint64) {
	storeUint64Release(buf, offset, value)
}
