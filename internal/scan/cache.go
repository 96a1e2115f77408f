package scan

import (
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codegraph-dev/codegraph/internal/parsers"
)

// cacheSize bounds how many parsed records are kept between rebuilds.
const cacheSize = 4096

// recordCache memoizes parse results keyed by path and content hash so
// unchanged files skip re-parsing across incremental rebuilds.
type recordCache struct {
	lru *lru.Cache[string, *parsers.FileRecord]
}

func newRecordCache(size int) (*recordCache, error) {
	c, err := lru.New[string, *parsers.FileRecord](size)
	if err != nil {
		return nil, fmt.Errorf("creating parse cache: %w", err)
	}
	return &recordCache{lru: c}, nil
}

func (c *recordCache) get(key string) (*parsers.FileRecord, bool) {
	return c.lru.Get(key)
}

func (c *recordCache) add(key string, rec *parsers.FileRecord) {
	c.lru.Add(key, rec)
}

func cacheKey(path string, sum [32]byte) string {
	return path + ":" + hex.EncodeToString(sum[:])
}
