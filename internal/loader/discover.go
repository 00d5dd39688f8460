package loader

import (
	"errors"

	"github.com/agentx-labs/pluginhost/internal/artifact"
	"github.com/agentx-labs/pluginhost/internal/manifest"
)

// scan reads every archive of one root. In lenient mode malformed archives
// are logged and left in place; otherwise they are returned as errors.
func (l *Loader) scan(root artifact.RootTag, lenient bool) ([]artifact.Candidate, error) {
	dir := l.opts.Dirs.Root(root)
	paths, err := l.stager.ListArchives(dir)
	if err != nil {
		return nil, err
	}

	var out []artifact.Candidate
	var errs []error
	for _, path := range paths {
		d, err := manifest.ReadArchive(path)
		if err != nil {
			if lenient {
				l.log.Warn("ignoring malformed plugin archive", "file", path, "err", err)
				continue
			}
			errs = append(errs, err)
			continue
		}
		out = append(out, artifact.Candidate{
			Descriptor: d,
			Location:   artifact.Location{Path: path, Root: root},
		})
	}
	l.log.Debug("scanned plugin directory", "root", root, "dir", dir, "archives", len(out))
	return out, errors.Join(errs...)
}
