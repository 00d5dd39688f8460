package scaffold

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/agentx-labs/pluginhost/internal/manifest"
	"github.com/agentx-labs/pluginhost/internal/platform"
)

// packEpoch is the modification time stamped on every packed entry so the
// same directory always packs to the same bytes.
var packEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Pack writes the plugin directory dir into a zip archive at dest and
// returns the descriptor read back from it. dir must contain a valid
// plugin.yaml. Hidden files and directories are skipped.
func Pack(dir, dest string) (*manifest.UnitDescriptor, error) {
	raw, err := os.ReadFile(filepath.Join(dir, manifest.EntryName))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", manifest.EntryName, err)
	}
	if _, err := manifest.Parse(raw, filepath.Join(dir, manifest.EntryName)); err != nil {
		return nil, err
	}

	files, err := packFiles(dir, dest)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(dest), err)
	}
	err = platform.WriteAtomic(dest, 0644, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		for _, rel := range files {
			if err := addFile(zw, dir, rel); err != nil {
				return err
			}
		}
		return zw.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("writing %s: %w", dest, err)
	}

	return manifest.ReadArchive(dest)
}

// packFiles lists the regular files under dir in slash-separated, sorted
// form. dest is excluded when it lives inside dir.
func packFiles(dir, dest string) ([]string, error) {
	absDest, _ := filepath.Abs(dest)
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if abs, _ := filepath.Abs(p); abs == absDest {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func addFile(zw *zip.Writer, dir, rel string) error {
	src := filepath.Join(dir, filepath.FromSlash(rel))
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	hdr := &zip.FileHeader{Name: rel, Method: zip.Deflate, Modified: packEpoch}
	hdr.SetMode(info.Mode().Perm())
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
