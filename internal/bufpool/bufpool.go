// Package bufpool implements a size-bucketed reusable byte-buffer pool so
// the frame/packet hot path does zero-churn I/O (spec.md §5 "buffer pool").
package bufpool

import "sync"

// defaultBuckets mirrors typical access-unit and TS-packet sizes: small
// control payloads, one TS packet, one audio AU, up to a keyframe.
var defaultBuckets = []int{188, 1024, 4096, 65536, 1 << 20}

type bucket struct {
	size int
	pool sync.Pool
}

// Pool is a size-bucketed buffer pool. Get returns a buffer of capacity >=
// the request from the smallest bucket that fits, allocating fresh when the
// bucket is empty or the request exceeds every bucket; Put re-buckets by
// capacity. A single mutex-free design is used per bucket via sync.Pool,
// matching spec.md §5's "safe under concurrent access" requirement without
// a single global lock becoming a contention point.
type Pool struct {
	buckets []*bucket
}

// New creates a Pool with the given ascending bucket sizes. Passing no
// sizes uses defaultBuckets.
func New(sizes ...int) *Pool {
	if len(sizes) == 0 {
		sizes = defaultBuckets
	}
	p := &Pool{buckets: make([]*bucket, len(sizes))}
	for i, s := range sizes {
		size := s
		p.buckets[i] = &bucket{size: size}
		p.buckets[i].pool.New = func() any {
			buf := make([]byte, size)
			return &buf
		}
	}
	return p
}

// Get returns a buffer with length exactly n, backed by capacity from the
// smallest bucket that fits n, or a fresh allocation if n exceeds every
// bucket.
func (p *Pool) Get(n int) []byte {
	if p == nil {
		return make([]byte, n)
	}
	for _, b := range p.buckets {
		if n <= b.size {
			ptr := b.pool.Get().(*[]byte)
			buf := (*ptr)[:n]
			return buf
		}
	}
	return make([]byte, n)
}

// Put returns buf to the pool, re-bucketing by capacity. Buffers whose
// capacity matches no bucket are simply dropped for GC to reclaim.
func (p *Pool) Put(buf []byte) {
	if p == nil || buf == nil {
		return
	}
	c := cap(buf)
	for _, b := range p.buckets {
		if c == b.size {
			full := buf[:c:c]
			b.pool.Put(&full)
			return
		}
	}
}

var defaultPool = New()

// Get acquires a buffer of length n from the package-level default pool.
func Get(n int) []byte { return defaultPool.Get(n) }

// Put releases buf back to the package-level default pool.
func Put(buf []byte) { defaultPool.Put(buf) }
