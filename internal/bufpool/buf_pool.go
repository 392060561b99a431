package bufpool

import (
	"sync"
)

// maxPooledSize caps buffers returned to the pool so one oversized record
// does not pin a large allocation for the lifetime of the process.
const maxPooledSize = 1 << 20

var bufPool = sync.Pool{New: func() any { return new([]byte) }}

// Get returns a byte slice of length n from the pool.
//
// Return back the slice to the pool with Put.
func Get(n int) *[]byte {
	bp, _ := bufPool.Get().(*[]byte)
	if cap(*bp) < n {
		*bp = make([]byte, n)
	}
	*bp = (*bp)[:n]

	return bp
}

// Put returns the slice to the pool.
//
// bp cannot be accessed after returning to the pool.
func Put(bp *[]byte) {
	if bp == nil || cap(*bp) > maxPooledSize {
		return
	}
	bufPool.Put(bp)
}
