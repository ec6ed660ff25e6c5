package store

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// postCacheSize bounds the read-through cache; a marathon rarely has more
// than a few dozen posts, so this effectively caches everything.
const postCacheSize = 256

// postCache is an LRU over posts by id. The scheduler resolves posts every
// tick, so lookups hit this cache instead of the database. Any post mutation
// purges it wholesale: positions shift on delete/move, so per-key
// invalidation isn't worth the bookkeeping.
type postCache struct {
	byID *lru.Cache[int64, *Post]
}

func newPostCache(size int) (*postCache, error) {
	byID, err := lru.New[int64, *Post](size)
	if err != nil {
		return nil, err
	}
	return &postCache{byID: byID}, nil
}

func (c *postCache) get(id int64) (*Post, bool) {
	return c.byID.Get(id)
}

func (c *postCache) add(p *Post) {
	c.byID.Add(p.ID, p)
}

func (c *postCache) purge() {
	c.byID.Purge()
}
