package ingestion

// dedupSet is a bounded set of notification ids with FIFO eviction. Once the
// capacity is reached the oldest recorded id is forgotten first.
type dedupSet struct {
	capacity int
	order    []string
	seen     map[string]struct{}
}

func newDedupSet(capacity int) *dedupSet {
	return &dedupSet{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
	}
}

// CheckAndRecord returns false when the id was already recorded. A new id is
// recorded, evicting the oldest entry when the set is full.
func (d *dedupSet) CheckAndRecord(id string) bool {
	if _, exists := d.seen[id]; exists {
		return false
	}

	if len(d.order) >= d.capacity {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}

	d.order = append(d.order, id)
	d.seen[id] = struct{}{}
	return true
}

func (d *dedupSet) Len() int {
	return len(d.order)
}
