package machine

// A Table is a hash table specialized for interned-string keys: open
// addressing, linear probing, power-of-two capacity grown at 75% load. Keys
// hash with their precomputed hash, so probing never re-hashes bytes.
//
// Deleting leaves a tombstone so probe sequences stay intact; lookups stop at
// a truly empty slot and skip tombstones, insertions reuse the first
// tombstone seen. Tombstones count toward the load factor and are discarded
// on growth.
//
// The zero value is an empty table ready for use.
type Table struct {
	count   int // used entries, including tombstones
	entries []tableEntry
}

type tableEntry struct {
	key   *Str
	value Value
}

// a tombstone is an entry with a nil key and this sentinel value; a truly
// empty slot has a nil value.
var tombstone Value = True

// findEntry returns the slot for key: its current entry if present, otherwise
// the slot an insertion must use (the first tombstone on the probe sequence,
// or the empty slot that ended it).
func findEntry(entries []tableEntry, key *Str) *tableEntry {
	var firstTombstone *tableEntry
	idx := int(key.hash) & (len(entries) - 1)
	for {
		e := &entries[idx]
		switch {
		case e.key == key:
			return e
		case e.key == nil && e.value == nil:
			// empty slot, key is absent
			if firstTombstone != nil {
				return firstTombstone
			}
			return e
		case e.key == nil && firstTombstone == nil:
			firstTombstone = e
		}
		idx = (idx + 1) & (len(entries) - 1)
	}
}

// Get returns the value for key, or false if the key is absent.
func (t *Table) Get(key *Str) (Value, bool) {
	if t.count == 0 {
		return nil, false
	}
	e := findEntry(t.entries, key)
	if e.key == nil {
		return nil, false
	}
	return e.value, true
}

// Set inserts or updates the value for key, and returns true if the key was
// not already present.
func (t *Table) Set(key *Str, value Value) bool {
	if (t.count+1)*4 > len(t.entries)*3 {
		t.grow()
	}
	e := findEntry(t.entries, key)
	isNew := e.key == nil
	if isNew && e.value == nil {
		// a reused tombstone was already counted
		t.count++
	}
	e.key = key
	e.value = value
	return isNew
}

// Delete removes key from the table, leaving a tombstone, and returns true if
// the key was present.
func (t *Table) Delete(key *Str) bool {
	if t.count == 0 {
		return false
	}
	e := findEntry(t.entries, key)
	if e.key == nil {
		return false
	}
	e.key = nil
	e.value = tombstone
	return true
}

// AddAll copies every entry of src into t. Existing keys are overwritten,
// which gives subclass methods precedence when a class table is populated
// after inheriting.
func (t *Table) AddAll(src *Table) {
	for i := range src.entries {
		if e := &src.entries[i]; e.key != nil {
			t.Set(e.key, e.value)
		}
	}
}

// FindString returns the key whose content equals s with the given hash, or
// nil. It compares content, not identity, and never allocates: it is the
// probe the intern table uses before creating a new string object.
func (t *Table) FindString(s string, hash uint32) *Str {
	if t.count == 0 {
		return nil
	}
	idx := int(hash) & (len(t.entries) - 1)
	for {
		e := &t.entries[idx]
		switch {
		case e.key == nil && e.value == nil:
			return nil
		case e.key != nil && e.key.hash == hash && e.key.s == s:
			return e.key
		}
		idx = (idx + 1) & (len(t.entries) - 1)
	}
}

// Range calls fn for each live entry until fn returns false. The table must
// not be modified during iteration.
func (t *Table) Range(fn func(key *Str, value Value) bool) {
	for i := range t.entries {
		if e := &t.entries[i]; e.key != nil {
			if !fn(e.key, e.value) {
				return
			}
		}
	}
}

func (t *Table) grow() {
	capacity := len(t.entries) * 2
	if capacity == 0 {
		capacity = 8
	}
	old := t.entries
	t.entries = make([]tableEntry, capacity)
	t.count = 0
	for i := range old {
		if e := &old[i]; e.key != nil {
			dst := findEntry(t.entries, e.key)
			dst.key = e.key
			dst.value = e.value
			t.count++
		}
	}
}

// reset drops all entries and buckets, releasing the storage to the Go
// runtime. The collector calls it when freeing the table's owner.
func (t *Table) reset() {
	t.count = 0
	t.entries = nil
}
