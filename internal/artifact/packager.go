package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/agentx-labs/pluginhost/internal/failure"
	"github.com/agentx-labs/pluginhost/internal/platform"
)

// CompressedExt is appended to a primary archive name to form its
// compressed sibling ("java-1.2.zip" -> "java-1.2.zip.gz").
const CompressedExt = ".gz"

// CompressedName returns the compressed sibling name for a primary archive.
func CompressedName(primary string) string {
	return primary + CompressedExt
}

// Packager deploys a primary archive to a destination directory and derives
// its compressed sibling there.
type Packager struct {
	// Enabled turns compression on. When off, only the primary is deployed
	// and stray compressed files are left alone.
	Enabled bool
}

// Package places src in destDir (copying it unless it already lives there)
// and, when compression is enabled, places the compressed sibling next to it.
// An existing sibling next to src is copied verbatim instead of recompressing.
func (p Packager) Package(src *FileHandle, destDir string) (HashPair, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return HashPair{}, failure.Wrap(failure.StageFailure, err, "fail to create directory %s", destDir)
	}

	primary, err := deploy(src.Path(), filepath.Join(destDir, src.Name()))
	if err != nil {
		return HashPair{}, err
	}
	pair := HashPair{Primary: primary}
	if !p.Enabled {
		return pair, nil
	}

	sibling := CompressedName(src.Path())
	dest := filepath.Join(destDir, CompressedName(src.Name()))
	if _, err := os.Stat(sibling); err == nil {
		compressed, err := deploy(sibling, dest)
		if err != nil {
			return HashPair{}, err
		}
		pair.Compressed = compressed
		return pair, nil
	}

	if err := compress(primary.Path(), dest); err != nil {
		return HashPair{}, failure.Wrap(failure.StageFailure, err, "fail to compress %s", primary.Path())
	}
	pair.Compressed = NewFileHandle(dest)
	return pair, nil
}

// deploy copies src to dest unless they are the same file.
func deploy(src, dest string) (*FileHandle, error) {
	if sameFile(src, dest) {
		return NewFileHandle(src), nil
	}
	if err := platform.CopyFile(src, dest); err != nil {
		return nil, failure.Wrap(failure.StageFailure, err, "fail to copy %s to %s", src, dest)
	}
	return NewFileHandle(dest), nil
}

// compress writes a gzip stream of src to dest. The gzip header carries no
// name or timestamp, so the same input always yields the same bytes.
func compress(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	return platform.WriteAtomic(dest, 0644, func(w io.Writer) error {
		zw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
		if err != nil {
			return fmt.Errorf("creating gzip writer: %w", err)
		}
		if _, err := io.Copy(zw, in); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	})
}

func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}
