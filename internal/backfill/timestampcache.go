package backfill

import "container/list"

// timestampCache is a small fixed-capacity LRU mapping block number to
// timestamp, avoiding a redundant header fetch per log when a backfill
// window spans many logs from the same block.
type timestampCache struct {
	capacity int
	entries  map[uint64]*list.Element
	order    *list.List
}

type tsEntry struct {
	block     uint64
	timestamp uint64
}

func newTimestampCache(capacity int) *timestampCache {
	if capacity <= 0 {
		capacity = 4096
	}
	return &timestampCache{
		capacity: capacity,
		entries:  make(map[uint64]*list.Element, capacity),
		order:    list.New(),
	}
}

func (c *timestampCache) get(block uint64) (uint64, bool) {
	el, ok := c.entries[block]
	if !ok {
		return 0, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*tsEntry).timestamp, true
}

func (c *timestampCache) put(block, timestamp uint64) {
	if el, ok := c.entries[block]; ok {
		el.Value.(*tsEntry).timestamp = timestamp
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&tsEntry{block: block, timestamp: timestamp})
	c.entries[block] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*tsEntry).block)
		}
	}
}
