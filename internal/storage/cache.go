// cache.go - In-memory cache for parsed mapping definitions

package storage

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/kaigodx/care_sheet_gemini/internal/mapping"
)

// mappingCache holds one parsed mapping definition per source file.
type mappingCache struct {
	Mapping  *mapping.Mapping
	LoadedAt time.Time
}

var mappingCacheMap = make(map[string]*mappingCache)
var cacheMutex sync.RWMutex

const CACHE_TTL = 5 * time.Minute

// GetOrLoadMapping parses the mapping definition at path, caching the
// result. Definitions are edited by care managers at runtime, so the cache
// expires rather than living for the process lifetime.
func GetOrLoadMapping(path string) (*mapping.Mapping, error) {
	cacheMutex.RLock()
	cache, exists := mappingCacheMap[path]
	cacheMutex.RUnlock()

	if exists && time.Since(cache.LoadedAt) < CACHE_TTL {
		return cache.Mapping, nil
	}

	cacheMutex.Lock()
	defer cacheMutex.Unlock()

	// Double-check after acquiring write lock
	cache, exists = mappingCacheMap[path]
	if exists && time.Since(cache.LoadedAt) < CACHE_TTL {
		return cache.Mapping, nil
	}

	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("転記定義ファイルの読み込みに失敗 (%s): %w", path, err)
	}
	m, err := mapping.Parse(string(text))
	if err != nil {
		return nil, err
	}

	mappingCacheMap[path] = &mappingCache{Mapping: m, LoadedAt: time.Now()}
	return m, nil
}

// InvalidateMapping drops the cached entry for one definition file.
func InvalidateMapping(path string) {
	cacheMutex.Lock()
	defer cacheMutex.Unlock()
	delete(mappingCacheMap, path)
}

// ClearAllCache drops every cached definition.
func ClearAllCache() {
	cacheMutex.Lock()
	defer cacheMutex.Unlock()
	mappingCacheMap = make(map[string]*mappingCache)
}
