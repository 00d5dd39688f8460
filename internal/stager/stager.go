package stager

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/agentx-labs/pluginhost/internal/artifact"
	"github.com/agentx-labs/pluginhost/internal/failure"
	"github.com/agentx-labs/pluginhost/internal/layout"
	"github.com/agentx-labs/pluginhost/internal/logging"
	"github.com/agentx-labs/pluginhost/internal/platform"
)

// DefaultExtensions are the archive extensions recognised when none are
// configured.
var DefaultExtensions = []string{".zip", ".jar"}

// Stager moves archives between lifecycle directories.
type Stager struct {
	Dirs       layout.Dirs
	Logger     *log.Logger
	Extensions []string
}

// New returns a Stager over dirs. A nil logger discards output.
func New(dirs layout.Dirs, logger *log.Logger, extensions []string) *Stager {
	if logger == nil {
		logger = logging.Discard()
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	return &Stager{Dirs: dirs, Logger: logger, Extensions: extensions}
}

// EnsureDirs creates the mutable lifecycle directories.
func (s *Stager) EnsureDirs() error {
	return s.Dirs.EnsureMutable()
}

// ListArchives returns the absolute paths of archives directly inside dir,
// sorted by file name. Directories, partial downloads and other files are
// ignored. A missing directory is treated as empty.
func (s *Stager) ListArchives(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !s.isArchive(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *Stager) isArchive(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range s.Extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

// Promotion records one staged archive moved into the external root.
type Promotion struct {
	Key      string
	From     string
	To       string
	Replaced []string // previous external archives for the same key
}

// Update reports whether the promotion replaced an installed version.
func (p Promotion) Update() bool {
	return len(p.Replaced) > 0
}

// Promote moves every staged archive into the external root. When installed
// already holds archives for the same key they are deleted once the new
// archive is in place, together with their compressed siblings; a staged
// sibling moves along with its archive. A staged archive whose file name is
// taken by an installed archive of another key is not moved. A failed
// archive leaves both roots as they were and is reported as a StageFailure;
// the remaining archives are still processed.
func (s *Stager) Promote(staged, installed []artifact.Candidate) ([]Promotion, error) {
	if len(staged) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(s.Dirs.External, 0755); err != nil {
		return nil, failure.Wrap(failure.StageFailure, err, "fail to create directory %s", s.Dirs.External)
	}

	byKey := make(map[string][]string)
	byPath := make(map[string]string)
	for _, c := range installed {
		if c.Location.Root == artifact.InstalledExternal {
			byKey[c.Key()] = append(byKey[c.Key()], c.Location.Path)
			byPath[c.Location.Path] = c.Key()
		}
	}

	ordered := append([]artifact.Candidate(nil), staged...)
	artifact.SortByKey(ordered)

	var promotions []Promotion
	var errs []error
	for _, c := range ordered {
		dest := filepath.Join(s.Dirs.External, c.FileName())
		if _, err := os.Stat(dest); err == nil {
			if owner, ok := byPath[dest]; !ok || owner != c.Key() {
				if !ok {
					owner = "an unknown plugin"
				} else {
					owner = "plugin " + owner
				}
				errs = append(errs, failure.New(failure.StageFailure,
					"fail to install plugin %s from %s: %s already holds %s", c.Key(), c.Location.Path, dest, owner))
				continue
			}
		}
		if err := platform.MoveFile(c.Location.Path, dest); err != nil {
			errs = append(errs, failure.Wrap(failure.StageFailure, err,
				"fail to move plugin %s to %s", c.Location.Path, s.Dirs.External))
			continue
		}

		p := Promotion{Key: c.Key(), From: c.Location.Path, To: dest}
		for _, old := range byKey[c.Key()] {
			if err := os.Remove(artifact.CompressedName(old)); err != nil && !os.IsNotExist(err) {
				s.Logger.Warn("fail to delete compressed sibling", "file", filepath.Base(old), "err", err)
			}
			if old == dest {
				// Overwritten by the rename itself.
				p.Replaced = append(p.Replaced, old)
				continue
			}
			if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
				errs = append(errs, failure.Wrap(failure.StageFailure, err,
					"fail to delete previous version %s of plugin %s", old, c.Key()))
				continue
			}
			p.Replaced = append(p.Replaced, old)
		}
		s.moveSibling(c.Location.Path, s.Dirs.External)

		if p.Update() {
			s.Logger.Info("updated plugin", "key", c.Key(), "version", c.Descriptor.Version, "file", c.FileName())
		} else {
			s.Logger.Info("installed plugin", "key", c.Key(), "version", c.Descriptor.Version, "file", c.FileName())
		}
		promotions = append(promotions, p)
	}

	return promotions, errors.Join(errs...)
}

// Apply returns installed updated with the effect of promotions: replaced
// or overwritten archives removed and promoted archives added under the
// external root.
func Apply(installed []artifact.Candidate, staged []artifact.Candidate, promotions []Promotion) []artifact.Candidate {
	gone := make(map[string]bool)
	moved := make(map[string]string)
	for _, p := range promotions {
		for _, r := range p.Replaced {
			gone[r] = true
		}
		moved[p.From] = p.To
		gone[p.To] = true
	}

	var out []artifact.Candidate
	for _, c := range installed {
		if !gone[c.Location.Path] {
			out = append(out, c)
		}
	}
	for _, c := range staged {
		to, ok := moved[c.Location.Path]
		if !ok {
			continue
		}
		out = append(out, artifact.Candidate{
			Descriptor: c.Descriptor,
			Location:   artifact.Location{Path: to, Root: artifact.InstalledExternal},
		})
	}
	artifact.SortByPath(out)
	return out
}

// Uninstall moves the given external archives into the uninstalled root and
// returns their new paths. An archive that is already gone is logged and
// skipped.
func (s *Stager) Uninstall(paths []string) ([]string, error) {
	if err := os.MkdirAll(s.Dirs.Uninstalled, 0755); err != nil {
		return nil, failure.Wrap(failure.StageFailure, err, "fail to create directory %s", s.Dirs.Uninstalled)
	}

	var moved []string
	var errs []error
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			s.Logger.Warn("already uninstalled", "file", filepath.Base(path))
			continue
		}
		dest := filepath.Join(s.Dirs.Uninstalled, filepath.Base(path))
		if err := platform.MoveFile(path, dest); err != nil {
			errs = append(errs, failure.Wrap(failure.StageFailure, err, "fail to uninstall %s", path))
			continue
		}
		s.moveSibling(path, s.Dirs.Uninstalled)
		moved = append(moved, dest)
	}
	return moved, errors.Join(errs...)
}

// CancelUninstalls moves every archive in the uninstalled root back into the
// external root and returns the restored paths. Running it again is a no-op.
func (s *Stager) CancelUninstalls() ([]string, error) {
	pending, err := s.ListArchives(s.Dirs.Uninstalled)
	if err != nil {
		return nil, failure.Wrap(failure.StageFailure, err, "fail to list uninstalled plugins")
	}
	if len(pending) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(s.Dirs.External, 0755); err != nil {
		return nil, failure.Wrap(failure.StageFailure, err, "fail to create directory %s", s.Dirs.External)
	}

	var restored []string
	var errs []error
	for _, path := range pending {
		dest := filepath.Join(s.Dirs.External, filepath.Base(path))
		if err := platform.MoveFile(path, dest); err != nil {
			errs = append(errs, failure.Wrap(failure.StageFailure, err, "fail to cancel uninstall of %s", path))
			continue
		}
		s.moveSibling(path, s.Dirs.External)
		restored = append(restored, dest)
	}
	return restored, errors.Join(errs...)
}

// Pending returns the archives waiting in the uninstalled root.
func (s *Stager) Pending() ([]string, error) {
	return s.ListArchives(s.Dirs.Uninstalled)
}

// CommitUninstalls deletes the archives in the uninstalled root. It runs at
// startup, before any root is read.
func (s *Stager) CommitUninstalls() ([]string, error) {
	pending, err := s.Pending()
	if err != nil {
		return nil, failure.Wrap(failure.StageFailure, err, "fail to list uninstalled plugins")
	}

	var removed []string
	var errs []error
	for _, path := range pending {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, failure.Wrap(failure.StageFailure, err, "fail to delete %s", path))
			continue
		}
		_ = os.Remove(path + artifact.CompressedExt)
		s.Logger.Debug("deleted uninstalled plugin", "file", filepath.Base(path))
		removed = append(removed, path)
	}
	return removed, errors.Join(errs...)
}

// moveSibling follows a primary archive with its compressed sibling, if any.
// The sibling is derivable, so a failed move is only logged.
func (s *Stager) moveSibling(primary, destDir string) {
	sibling := artifact.CompressedName(primary)
	if _, err := os.Stat(sibling); err != nil {
		return
	}
	if err := platform.MoveFile(sibling, filepath.Join(destDir, filepath.Base(sibling))); err != nil {
		s.Logger.Warn("fail to move compressed sibling", "file", filepath.Base(sibling), "err", err)
	}
}
