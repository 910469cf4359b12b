package cache

import (
	"container/heap"
	"container/list"

	"github.com/mpetka/larder/internal/types"
)

// entry is the in-memory representation of a cached value plus the
// bookkeeping hooks the eviction policies need. All fields are guarded by
// the owning cache's mutex.
type entry struct {
	types.CacheEntry

	// elem is this entry's node in a policy's ordering list (LRU/FIFO
	// order, an LFU bucket's member list, or the TTL policy's no-expiry
	// list).
	elem *list.Element
	// bucket is the LFU frequency bucket holding this entry.
	bucket *list.Element
	// heapIdx is this entry's position in the TTL expiry heap, -1 when
	// not in the heap.
	heapIdx int
}

// evictor tracks entry ordering for one eviction policy. Callers hold the
// cache lock around every method.
type evictor interface {
	// add registers a newly inserted entry.
	add(e *entry)
	// touch records an access.
	touch(e *entry)
	// remove forgets an entry (evicted, deleted or expired).
	remove(e *entry)
	// victim returns the entry the policy would evict next, or nil.
	victim() *entry
	// reset drops all bookkeeping.
	reset()
}

func newEvictor(policy types.EvictionPolicy) evictor {
	switch policy {
	case types.PolicyLFU:
		return newLFUEvictor()
	case types.PolicyFIFO:
		return &fifoEvictor{order: list.New()}
	case types.PolicyTTL:
		return newTTLEvictor()
	default:
		return &lruEvictor{order: list.New()}
	}
}

// lruEvictor keeps entries in access order; the back of the list is the
// least recently used.
type lruEvictor struct {
	order *list.List
}

func (p *lruEvictor) add(e *entry) {
	e.elem = p.order.PushFront(e)
}

func (p *lruEvictor) touch(e *entry) {
	p.order.MoveToFront(e.elem)
}

func (p *lruEvictor) remove(e *entry) {
	p.order.Remove(e.elem)
	e.elem = nil
}

func (p *lruEvictor) victim() *entry {
	back := p.order.Back()
	if back == nil {
		return nil
	}
	return back.Value.(*entry)
}

func (p *lruEvictor) reset() {
	p.order.Init()
}

// fifoEvictor keeps entries in insertion order; accesses do not reorder.
type fifoEvictor struct {
	order *list.List
}

func (p *fifoEvictor) add(e *entry) {
	e.elem = p.order.PushFront(e)
}

func (p *fifoEvictor) touch(e *entry) {}

func (p *fifoEvictor) remove(e *entry) {
	p.order.Remove(e.elem)
	e.elem = nil
}

func (p *fifoEvictor) victim() *entry {
	back := p.order.Back()
	if back == nil {
		return nil
	}
	return back.Value.(*entry)
}

func (p *fifoEvictor) reset() {
	p.order.Init()
}

// lfuEvictor keeps frequency buckets in ascending access-count order. Each
// bucket holds its members in insertion order so ties evict the oldest.
// All operations are O(1) because an access only ever moves an entry to
// the adjacent bucket.
type lfuEvictor struct {
	buckets *list.List // of *lfuBucket, ascending count
}

type lfuBucket struct {
	count   int64
	members *list.List // of *entry, front = newest
}

func newLFUEvictor() *lfuEvictor {
	return &lfuEvictor{buckets: list.New()}
}

func (p *lfuEvictor) add(e *entry) {
	front := p.buckets.Front()
	var b *lfuBucket
	if front != nil && front.Value.(*lfuBucket).count == e.AccessCount {
		b = front.Value.(*lfuBucket)
		e.bucket = front
	} else {
		b = &lfuBucket{count: e.AccessCount, members: list.New()}
		e.bucket = p.buckets.PushFront(b)
	}
	e.elem = b.members.PushFront(e)
}

func (p *lfuEvictor) touch(e *entry) {
	cur := e.bucket
	b := cur.Value.(*lfuBucket)

	next := cur.Next()
	var target *lfuBucket
	var targetElem *list.Element
	if next != nil && next.Value.(*lfuBucket).count == e.AccessCount {
		target = next.Value.(*lfuBucket)
		targetElem = next
	} else {
		target = &lfuBucket{count: e.AccessCount, members: list.New()}
		targetElem = p.buckets.InsertAfter(target, cur)
	}

	b.members.Remove(e.elem)
	e.elem = target.members.PushFront(e)
	e.bucket = targetElem

	if b.members.Len() == 0 {
		p.buckets.Remove(cur)
	}
}

func (p *lfuEvictor) remove(e *entry) {
	b := e.bucket.Value.(*lfuBucket)
	b.members.Remove(e.elem)
	if b.members.Len() == 0 {
		p.buckets.Remove(e.bucket)
	}
	e.elem = nil
	e.bucket = nil
}

func (p *lfuEvictor) victim() *entry {
	front := p.buckets.Front()
	if front == nil {
		return nil
	}
	member := front.Value.(*lfuBucket).members.Back()
	if member == nil {
		return nil
	}
	return member.Value.(*entry)
}

func (p *lfuEvictor) reset() {
	p.buckets.Init()
}

// ttlEvictor evicts the entry with the earliest expiry. Entries without a
// TTL live in a separate insertion-order list and are only evicted once no
// expiring entry remains.
type ttlEvictor struct {
	expiring *expiryHeap
	noExpiry *list.List
}

func newTTLEvictor() *ttlEvictor {
	h := &expiryHeap{}
	heap.Init(h)
	return &ttlEvictor{expiring: h, noExpiry: list.New()}
}

func (p *ttlEvictor) add(e *entry) {
	if e.ExpiresAt.IsZero() {
		e.heapIdx = -1
		e.elem = p.noExpiry.PushFront(e)
		return
	}
	heap.Push(p.expiring, e)
}

func (p *ttlEvictor) touch(e *entry) {}

func (p *ttlEvictor) remove(e *entry) {
	if e.heapIdx >= 0 {
		heap.Remove(p.expiring, e.heapIdx)
		return
	}
	if e.elem != nil {
		p.noExpiry.Remove(e.elem)
		e.elem = nil
	}
}

func (p *ttlEvictor) victim() *entry {
	if p.expiring.Len() > 0 {
		return (*p.expiring)[0]
	}
	back := p.noExpiry.Back()
	if back == nil {
		return nil
	}
	return back.Value.(*entry)
}

func (p *ttlEvictor) reset() {
	*p.expiring = (*p.expiring)[:0]
	p.noExpiry.Init()
}

// expiryHeap is a min-heap over ExpiresAt.
type expiryHeap []*entry

func (h expiryHeap) Len() int { return len(h) }

func (h expiryHeap) Less(i, j int) bool {
	return h[i].ExpiresAt.Before(h[j].ExpiresAt)
}

func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIdx = i
	h[j].heapIdx = j
}

func (h *expiryHeap) Push(x any) {
	e := x.(*entry)
	e.heapIdx = len(*h)
	*h = append(*h, e)
}

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.heapIdx = -1
	*h = old[:n-1]
	return e
}
