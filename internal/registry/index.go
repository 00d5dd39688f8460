package registry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/agentx-labs/pluginhost/internal/platform"
)

// IndexFile is the name of the index written next to deployed artifacts.
const IndexFile = "index.json"

// IndexEntry describes one loaded unit and the hashes of its deployed files.
type IndexEntry struct {
	Key            string   `json:"key"`
	Name           string   `json:"name"`
	Version        string   `json:"version,omitempty"`
	Type           Type     `json:"type"`
	BasePlugin     string   `json:"basePlugin,omitempty"`
	Requires       []string `json:"requires,omitempty"`
	File           string   `json:"file"`
	Hash           string   `json:"hash"`
	CompressedFile string   `json:"compressedFile,omitempty"`
	CompressedHash string   `json:"compressedHash,omitempty"`
}

// Index is a serialisable snapshot of the registry.
type Index struct {
	Plugins     []IndexEntry `json:"plugins"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// BuildIndex snapshots r. Hashes are computed on demand; a hashing failure
// aborts the snapshot.
func BuildIndex(r *Registry) (*Index, error) {
	idx := &Index{GeneratedAt: time.Now().UTC()}
	for _, u := range r.All() {
		e := IndexEntry{
			Key:        u.Key(),
			Name:       u.Descriptor.Name,
			Version:    u.Descriptor.Version.String(),
			Type:       u.Type,
			BasePlugin: u.Descriptor.BasePlugin,
		}
		for _, req := range u.Descriptor.Requires {
			e.Requires = append(e.Requires, req.String())
		}
		if p := u.Artifacts.Primary; p != nil {
			hash, err := p.MD5()
			if err != nil {
				return nil, err
			}
			e.File, e.Hash = p.Name(), hash
		}
		if c := u.Artifacts.Compressed; c != nil {
			hash, err := c.MD5()
			if err != nil {
				return nil, err
			}
			e.CompressedFile, e.CompressedHash = c.Name(), hash
		}
		idx.Plugins = append(idx.Plugins, e)
	}
	return idx, nil
}

// Find returns the entry for key.
func (idx *Index) Find(key string) (IndexEntry, bool) {
	for _, e := range idx.Plugins {
		if e.Key == key {
			return e, true
		}
	}
	return IndexEntry{}, false
}

// WriteIndex writes idx as indented JSON to path, replacing it atomically.
func WriteIndex(path string, idx *Index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return platform.WriteAtomic(path, 0644, func(w io.Writer) error {
		_, err := w.Write(append(data, '\n'))
		return err
	})
}

// ReadIndex reads an index written by WriteIndex.
func ReadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &idx, nil
}
