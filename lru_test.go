package diskcache

import "testing"

func TestLRUIndexTouchOrdering(t *testing.T) {
	idx := newLRUIndex()

	a := newEntry("/tmp", "a")
	b := newEntry("/tmp", "b")
	c := newEntry("/tmp", "c")

	idx.touch(a)
	idx.touch(b)
	idx.touch(c)

	assertOrder(t, idx, "a", "b", "c")

	idx.touch(a)
	assertOrder(t, idx, "b", "c", "a")

	idx.remove("c")
	assertOrder(t, idx, "b", "a")

	if _, ok := idx.get("c"); ok {
		t.Fatal("get(c) found an entry after remove")
	}
}

func TestLRUIndexNextEvictableSkipsLiveWriters(t *testing.T) {
	idx := newLRUIndex()

	a := newEntry("/tmp", "a")
	b := newEntry("/tmp", "b")
	idx.touch(a)
	idx.touch(b)

	a.setWriter(&WriterHandle{})

	victim := idx.nextEvictable()
	if victim == nil || victim.key != "b" {
		t.Fatalf("nextEvictable = %v, want b", victim)
	}

	b.setWriter(&WriterHandle{})

	if idx.nextEvictable() != nil {
		t.Fatal("nextEvictable should return nil when every entry has a live writer")
	}
}

func TestLRUIndexReset(t *testing.T) {
	idx := newLRUIndex()
	idx.touch(newEntry("/tmp", "a"))
	idx.touch(newEntry("/tmp", "b"))

	idx.reset()

	if idx.len() != 0 {
		t.Fatalf("len after reset = %d, want 0", idx.len())
	}

	if idx.leastRecent() != nil {
		t.Fatal("leastRecent after reset should be nil")
	}
}

func assertOrder(t *testing.T, idx *lruIndex, keys ...string) {
	t.Helper()

	got := idx.entriesOldestFirst()
	if len(got) != len(keys) {
		t.Fatalf("entriesOldestFirst has %d entries, want %d", len(got), len(keys))
	}

	for i, k := range keys {
		if got[i].key != k {
			t.Fatalf("position %d = %q, want %q", i, got[i].key, k)
		}
	}
}
