// Package hashcache tells whether the given content at the path was already seen by it.
package hashcache

import (
	"crypto/md5"
	"encoding/gob"
	"errors"
	"hash"
	"os"
	"sync"
)

const hashSize = md5.Size

// Cache keeps hashes of output files written by previous builds.
type Cache struct {
	sync.Mutex
	filename string
	m        map[string][hashSize]byte
	h        hash.Hash
}

// Open loads cache from the given file. A missing file gives an
// empty cache. If filename is empty, the cache is kept only in memory.
func Open(filename string) (*Cache, error) {
	c := &Cache{
		filename: filename,
		m:        make(map[string][hashSize]byte),
		h:        md5.New(),
	}
	if filename == "" {
		return c, nil
	}
	f, err := os.Open(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, err
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(&c.m); err != nil {
		return nil, err
	}
	return c, nil
}

// contentHash returns hash of content. Cache must be locked.
func (c *Cache) contentHash(content []byte) (sum [hashSize]byte) {
	c.h.Reset()
	c.h.Write(content)
	c.h.Sum(sum[:0])
	return
}

// Seen sets content hash for the given path to a new value.
// It returns true if the content was already cached and had the same hash.
func (c *Cache) Seen(path string, content []byte) bool {
	c.Lock()
	defer c.Unlock()
	origHash, ok := c.m[path]
	newHash := c.contentHash(content)
	if !ok || origHash != newHash {
		c.m[path] = newHash
		return false
	}
	return true
}

// Reset forgets all hashes.
func (c *Cache) Reset() {
	c.Lock()
	defer c.Unlock()
	c.m = make(map[string][hashSize]byte)
}

// Save writes cache to the file it was opened from.
func (c *Cache) Save() (err error) {
	if c.filename == "" {
		return nil
	}
	c.Lock()
	defer c.Unlock()
	f, err := os.Create(c.filename)
	if err != nil {
		return
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			// Delete file.
			os.Remove(c.filename)
		}
	}()
	return gob.NewEncoder(f).Encode(c.m)
}
