package diskcache

import "container/list"

// lruIndex is the access-ordered key -> entry mapping described in
// spec §3: a doubly-linked list ordered from least- to
// most-recently-used, plus a hash map for O(1) lookup, so touch and
// evict are both O(1). This is the "naive doubly-linked-hash-map idiom"
// the design notes call sufficient; [container/list] already provides
// the intrusive list half of it.
type lruIndex struct {
	order *list.List
	nodes map[string]*list.Element
}

func newLRUIndex() *lruIndex {
	return &lruIndex{
		order: list.New(),
		nodes: make(map[string]*list.Element),
	}
}

// get returns the entry for key without changing its position.
func (l *lruIndex) get(key string) (*entry, bool) {
	el, ok := l.nodes[key]
	if !ok {
		return nil, false
	}

	return el.Value.(*entry), true
}

// touch moves an existing key to the most-recently-used end, or
// inserts e there if key is new.
func (l *lruIndex) touch(e *entry) {
	if el, ok := l.nodes[e.key]; ok {
		l.order.MoveToBack(el)
		return
	}

	l.nodes[e.key] = l.order.PushBack(e)
}

// remove drops key from the index. No-op if absent.
func (l *lruIndex) remove(key string) {
	el, ok := l.nodes[key]
	if !ok {
		return
	}

	l.order.Remove(el)
	delete(l.nodes, key)
}

// reset drops every entry, used when a corrupted journal forces the
// cache to discard whatever it had reconstructed so far.
func (l *lruIndex) reset() {
	l.order.Init()

	for k := range l.nodes {
		delete(l.nodes, k)
	}
}

func (l *lruIndex) len() int {
	return l.order.Len()
}

// leastRecent returns the entry at the head of access order, the next
// eviction candidate, or nil if the index is empty.
func (l *lruIndex) leastRecent() *entry {
	el := l.order.Front()
	if el == nil {
		return nil
	}

	return el.Value.(*entry)
}

// nextEvictable walks access order from the least-recently-used end and
// returns the first entry without a live writer, or nil if every entry
// (or none at all) is currently under edit.
func (l *lruIndex) nextEvictable() *entry {
	for el := l.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if !e.hasLiveWriter() {
			return e
		}
	}

	return nil
}

// entriesOldestFirst returns a snapshot of entries in LRU order, oldest
// first. Used when rebuilding the journal, whose replay order then
// matches access order for entries that survive untouched.
func (l *lruIndex) entriesOldestFirst() []*entry {
	out := make([]*entry, 0, l.order.Len())
	for el := l.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry))
	}

	return out
}
