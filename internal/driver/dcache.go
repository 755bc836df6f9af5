package driver

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"refbind/internal/analysis"
	"refbind/internal/diag"
	"refbind/internal/source"
)

// bump when Payload or anything reachable from it changes shape
const diskCacheSchemaVersion uint16 = 1

// Digest is a SHA-256 value, compatible with source.File.Hash.
type Digest [32]byte

// CacheKey combines a unit's content hash with the configuration
// fingerprint: the same bytes analyzed under other options miss.
func CacheKey(content [32]byte, fingerprint string) Digest {
	h := sha256.New()
	_, _ = h.Write(content[:])
	_, _ = h.Write([]byte(fingerprint))
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// DiskCache stores analysis results on disk, keyed by CacheKey.
// Safe for concurrent use.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// Payload is one cached unit. Spans refer to the unit's own file and are
// rebased onto the current FileSet when read back.
type Payload struct {
	Schema      uint16            `msgpack:"schema"`
	Path        string            `msgpack:"path"`
	Result      *analysis.Result  `msgpack:"result"`
	Diagnostics []diag.Diagnostic `msgpack:"diagnostics"`
}

// OpenDiskCache opens $XDG_CACHE_HOME/app, falling back to ~/.cache/app.
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenDiskCacheAt(filepath.Join(base, app))
}

// OpenDiskCacheAt opens a cache rooted at dir, creating it if needed.
func OpenDiskCacheAt(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

// Dir is the cache root.
func (c *DiskCache) Dir() string { return c.dir }

func (c *DiskCache) pathFor(key Digest) string {
	return filepath.Join(c.dir, "units", hex.EncodeToString(key[:])+".mp")
}

// Put writes payload atomically under key.
func (c *DiskCache) Put(key Digest, payload *Payload) (err error) {
	if c == nil || payload == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	payload.Schema = diskCacheSchemaVersion
	if err = msgpack.NewEncoder(f).Encode(payload); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

// Get reads the payload for key. A missing entry or one written by an
// older schema is a miss, not an error.
func (c *DiskCache) Get(key Digest) (*Payload, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var out Payload
	if err := msgpack.NewDecoder(f).Decode(&out); err != nil {
		return nil, false, err
	}
	if out.Schema != diskCacheSchemaVersion {
		return nil, false, nil
	}
	return &out, true, nil
}

// DropAll removes every cached entry.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	return os.RemoveAll(old)
}

// rebase points every span of a cached payload at file.
func (p *Payload) rebase(file source.FileID) {
	fix := func(sp *source.Span) { sp.File = file }
	for i := range p.Diagnostics {
		d := &p.Diagnostics[i]
		fix(&d.Primary)
		for j := range d.Notes {
			fix(&d.Notes[j].Span)
		}
		for j := range d.Fixes {
			for k := range d.Fixes[j].Edits {
				fix(&d.Fixes[j].Edits[k].Span)
			}
		}
	}
	if p.Result == nil {
		return
	}
	for i := range p.Result.Sites {
		fix(&p.Result.Sites[i].Span)
	}
	for i := range p.Result.Records {
		fix(&p.Result.Records[i].Span)
	}
	for i := range p.Result.Unbalanced {
		fix(&p.Result.Unbalanced[i].Span)
	}
}
