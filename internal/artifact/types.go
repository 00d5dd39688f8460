package artifact

import "fmt"

// RootTag identifies the lifecycle directory an archive lives in.
type RootTag string

const (
	Staged            RootTag = "staged"
	InstalledExternal RootTag = "installed-external"
	InstalledBundled  RootTag = "installed-bundled"
	Uninstalled       RootTag = "uninstalled"
)

// Location is the absolute path of an archive plus the root it belongs to.
type Location struct {
	Path string
	Root RootTag
}

// String renders the location for logs.
func (l Location) String() string {
	return fmt.Sprintf("%s (%s)", l.Path, l.Root)
}

// HashPair is a primary archive and, when compression is enabled, its
// compressed sibling. Each handle computes its MD5 lazily.
type HashPair struct {
	Primary    *FileHandle
	Compressed *FileHandle // nil when compression is disabled
}

// HasCompressed reports whether a compressed sibling exists.
func (p HashPair) HasCompressed() bool {
	return p.Compressed != nil
}
