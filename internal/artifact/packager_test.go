package artifact

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestPackageDisabled(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src", "java.zip")
	writeFile(t, src, "primary")
	stray := filepath.Join(tmp, "dest", "java.zip.gz")
	writeFile(t, stray, "stray")

	pair, err := Packager{Enabled: false}.Package(NewFileHandle(src), filepath.Join(tmp, "dest"))
	if err != nil {
		t.Fatalf("Package: %v", err)
	}
	if pair.HasCompressed() {
		t.Error("disabled packager must not produce a compressed artifact")
	}
	if pair.Primary.Path() != filepath.Join(tmp, "dest", "java.zip") {
		t.Errorf("Primary = %s", pair.Primary.Path())
	}
	if _, err := os.Stat(stray); err != nil {
		t.Error("stray compressed file must not be deleted")
	}
}

func TestPackageReusesSibling(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src", "java.zip")
	writeFile(t, src, "primary")
	writeFile(t, src+".gz", "precomputed")

	pair, err := Packager{Enabled: true}.Package(NewFileHandle(src), filepath.Join(tmp, "dest"))
	if err != nil {
		t.Fatalf("Package: %v", err)
	}
	got, err := os.ReadFile(pair.Compressed.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "precomputed" {
		t.Errorf("compressed = %q, want sibling copied verbatim", got)
	}
}

func TestPackageSynthesizes(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src", "java.zip")
	writeFile(t, src, "primary content")

	pair, err := Packager{Enabled: true}.Package(NewFileHandle(src), filepath.Join(tmp, "dest"))
	if err != nil {
		t.Fatalf("Package: %v", err)
	}
	if pair.Compressed.Path() != filepath.Join(tmp, "dest", "java.zip.gz") {
		t.Errorf("Compressed = %s", pair.Compressed.Path())
	}

	f, err := os.Open(pair.Compressed.Path())
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "primary content" {
		t.Errorf("decompressed = %q", data)
	}
	if _, err := pair.Primary.MD5(); err != nil {
		t.Errorf("primary hash: %v", err)
	}
	if _, err := pair.Compressed.MD5(); err != nil {
		t.Errorf("compressed hash: %v", err)
	}
}

func TestPackageIsIdempotent(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src", "java.zip")
	writeFile(t, src, "some archive bytes")
	dest := filepath.Join(tmp, "dest")
	p := Packager{Enabled: true}

	first, err := p.Package(NewFileHandle(src), dest)
	if err != nil {
		t.Fatal(err)
	}
	firstBytes, _ := os.ReadFile(first.Compressed.Path())

	second, err := p.Package(NewFileHandle(src), dest)
	if err != nil {
		t.Fatal(err)
	}
	secondBytes, _ := os.ReadFile(second.Compressed.Path())

	if !bytes.Equal(firstBytes, secondBytes) {
		t.Error("second run must produce a byte-identical compressed artifact")
	}
}

func TestPackageInPlace(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "java.zip")
	writeFile(t, src, "primary")

	pair, err := Packager{Enabled: true}.Package(NewFileHandle(src), dir)
	if err != nil {
		t.Fatalf("Package: %v", err)
	}
	if pair.Primary.Path() != src {
		t.Errorf("Primary = %s, want %s", pair.Primary.Path(), src)
	}
	if _, err := os.Stat(src + ".gz"); err != nil {
		t.Errorf("compressed sibling not created: %v", err)
	}
}
