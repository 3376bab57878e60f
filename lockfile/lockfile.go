// Package lockfile implements textkey.lock, the translation memory. It maps
// the MD5 checksum of the requested locales plus the source text to the key
// and translations the AI returned, so selecting the same text again reuses
// the earlier answer without a remote call.
//
// The lock file is stored in the project root, next to .textkey.yaml.
package lockfile

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileName is the default lock file name.
const FileName = "textkey.lock"

// Version is the lock file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Entry is one remembered answer.
type Entry struct {
	Text         string            `yaml:"text"`
	Key          string            `yaml:"key"`
	Translations map[string]string `yaml:"translations"`
}

func (e *Entry) clone() *Entry {
	c := &Entry{Text: e.Text, Key: e.Key, Translations: make(map[string]string, len(e.Translations))}
	for k, v := range e.Translations {
		c.Translations[k] = v
	}
	return c
}

// LockFile represents the textkey.lock file structure.
type LockFile struct {
	Version int               `yaml:"version"`
	Entries map[string]*Entry `yaml:"entries"` // checksum -> entry

	mu    sync.Mutex `yaml:"-"`
	path  string     `yaml:"-"`
	dirty bool       `yaml:"-"`
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads the lock file from dir. A missing file yields an empty memory.
func Load(dir string) (*LockFile, error) {
	path := filepath.Join(dir, FileName)
	lf := &LockFile{
		Version: Version,
		Entries: make(map[string]*Entry),
		path:    path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	lf.path = path
	if lf.Version > Version {
		return nil, fmt.Errorf("%s: unsupported version %d (max %d)", path, lf.Version, Version)
	}
	if lf.Entries == nil {
		lf.Entries = make(map[string]*Entry)
	}
	return lf, nil
}

// Save writes the lock file to disk.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.path == "" {
		return fmt.Errorf("lock file path not set")
	}

	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}
	if err := os.WriteFile(lf.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}
	lf.dirty = false
	return nil
}

// SaveIfChanged writes the file only after Record or Clean modified it.
func (lf *LockFile) SaveIfChanged() error {
	lf.mu.Lock()
	dirty := lf.dirty
	lf.mu.Unlock()
	if !dirty {
		return nil
	}
	return lf.Save()
}

// Path returns the lock file path.
func (lf *LockFile) Path() string {
	return lf.path
}

// ---------------------------------------------------------------------------
// Checksums
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of a string.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// EntryKey is the checksum an answer is stored under. The locale list is
// part of it, so adding a locale invalidates older answers.
func EntryKey(locales []string, text string) string {
	return Hash(strings.Join(locales, ",") + "\x00" + text)
}

// ---------------------------------------------------------------------------
// Memory operations
// ---------------------------------------------------------------------------

// Lookup returns a copy of the remembered answer for text.
func (lf *LockFile) Lookup(locales []string, text string) (*Entry, bool) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	e, ok := lf.Entries[EntryKey(locales, text)]
	if !ok || e.Key == "" {
		return nil, false
	}
	for _, l := range locales {
		if e.Translations[l] == "" {
			return nil, false
		}
	}
	return e.clone(), true
}

// Record remembers an answer.
func (lf *LockFile) Record(locales []string, text, key string, translations map[string]string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	e := &Entry{Text: text, Key: key, Translations: translations}
	lf.Entries[EntryKey(locales, text)] = e.clone()
	lf.dirty = true
}

// Clean removes entries whose key is not in currentKeys and returns how
// many were dropped.
func (lf *LockFile) Clean(currentKeys []string) int {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	valid := make(map[string]bool, len(currentKeys))
	for _, k := range currentKeys {
		valid[k] = true
	}

	removed := 0
	for sum, e := range lf.Entries {
		if !valid[e.Key] {
			delete(lf.Entries, sum)
			removed++
		}
	}
	if removed > 0 {
		lf.dirty = true
	}
	return removed
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of remembered texts and distinct keys.
func (lf *LockFile) Stats() (entries, keys int) {
	return len(lf.entries()), len(lf.Keys())
}

// Keys returns the distinct remembered keys, sorted.
func (lf *LockFile) Keys() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	seen := make(map[string]bool, len(lf.Entries))
	keys := make([]string, 0, len(lf.Entries))
	for _, e := range lf.Entries {
		if !seen[e.Key] {
			seen[e.Key] = true
			keys = append(keys, e.Key)
		}
	}
	sort.Strings(keys)
	return keys
}

// entries returns copies sorted by key, then text.
func (lf *LockFile) entries() []*Entry {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	out := make([]*Entry, 0, len(lf.Entries))
	for _, e := range lf.Entries {
		out = append(out, e.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].Text < out[j].Text
	})
	return out
}

// List returns all entries sorted by key.
func (lf *LockFile) List() []*Entry {
	return lf.entries()
}

// ---------------------------------------------------------------------------
// Human-readable summary
// ---------------------------------------------------------------------------

// Summary returns a human-readable summary string.
func (lf *LockFile) Summary() string {
	entries, keys := lf.Stats()
	if entries == 0 {
		return "empty"
	}
	return fmt.Sprintf("%d texts, %d keys", entries, keys)
}
