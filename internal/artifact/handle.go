package artifact

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/agentx-labs/pluginhost/internal/failure"
)

// FileHandle refers to a file and caches its MD5 once computed. The hash is
// immutable for the lifetime of the handle unless Invalidate is called after
// the underlying file was replaced.
type FileHandle struct {
	path string

	mu   sync.Mutex
	hash string
}

// NewFileHandle returns a handle for path. The file is not touched.
func NewFileHandle(path string) *FileHandle {
	return &FileHandle{path: path}
}

// Path returns the file path.
func (h *FileHandle) Path() string {
	return h.path
}

// Name returns the base name of the file.
func (h *FileHandle) Name() string {
	return filepath.Base(h.path)
}

// MD5 returns the hex-encoded MD5 of the file, computing it on first use.
// A missing or unreadable file yields a HashComputationError failure and
// nothing is cached, so a later call retries.
func (h *FileHandle) MD5() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.hash != "" {
		return h.hash, nil
	}
	sum, err := md5File(h.path)
	if err != nil {
		return "", failure.Wrap(failure.HashComputationError, err, "fail to compute hash of %s", h.path)
	}
	h.hash = sum
	return sum, nil
}

// Invalidate drops the cached hash. Only the stager calls it, after
// replacing the file behind the handle.
func (h *FileHandle) Invalidate() {
	h.mu.Lock()
	h.hash = ""
	h.mu.Unlock()
}

func md5File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sum := md5.New()
	if _, err := io.Copy(sum, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(sum.Sum(nil)), nil
}
