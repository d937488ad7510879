package compose

// Memoizer caches per-node coverage decisions within one run. Keys include
// the full plan key, so results never cross validator configurations; the
// memoizer itself must never outlive the run that created it.
//
// Inserts are idempotent: the first write for a key wins.
type Memoizer struct {
	entries map[string]*NameDecider
	present map[string]bool
}

// NewMemoizer creates an empty memoizer.
func NewMemoizer() *Memoizer {
	return &Memoizer{
		entries: make(map[string]*NameDecider),
		present: make(map[string]bool),
	}
}

// Get returns the cached decider (which may be nil for "undecidable") and
// whether the key was present.
func (m *Memoizer) Get(key string) (*NameDecider, bool) {
	if !m.present[key] {
		return nil, false
	}

	return m.entries[key], true
}

// Put stores a decision. A later Put for the same key is a no-op.
func (m *Memoizer) Put(key string, d *NameDecider) {
	if m.present[key] {
		return
	}

	m.present[key] = true
	m.entries[key] = d
}

// Len returns the number of cached decisions.
func (m *Memoizer) Len() int {
	return len(m.present)
}
