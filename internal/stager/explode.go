package stager

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/agentx-labs/pluginhost/internal/failure"
	"github.com/agentx-labs/pluginhost/internal/platform"
)

// Explode extracts archive into dest, replacing any previous content of
// dest. Entries escaping dest are rejected.
func Explode(archive, dest string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return failure.Wrap(failure.StageFailure, err, "fail to open plugin archive %s", archive)
	}
	defer zr.Close()

	if err := os.RemoveAll(dest); err != nil {
		return failure.Wrap(failure.StageFailure, err, "fail to clean directory %s", dest)
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return failure.Wrap(failure.StageFailure, err, "fail to create directory %s", dest)
	}

	root := filepath.Clean(dest) + string(os.PathSeparator)
	for _, f := range zr.File {
		target := filepath.Join(dest, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(target+string(os.PathSeparator), root) {
			return failure.New(failure.StageFailure, "plugin archive %s contains illegal entry %s", archive, f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return failure.Wrap(failure.StageFailure, err, "fail to create directory %s", target)
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return failure.Wrap(failure.StageFailure, err, "fail to extract %s from %s", f.Name, archive)
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if mode := f.Mode().Perm(); mode != 0 {
		if err := platform.Chmod(target, mode); err != nil {
			return fmt.Errorf("chmod %s: %w", target, err)
		}
	}
	return nil
}
