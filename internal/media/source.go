package media

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DiskFile is a RawFile backed by a path on disk. Name is the base name only.
type DiskFile struct {
	path    string
	name    string
	size    int64
	modTime time.Time
}

func (f *DiskFile) Name() string { return f.name }

func (f *DiskFile) Path() string { return f.path }

func (f *DiskFile) Size() int64 { return f.size }

func (f *DiskFile) ModTime() time.Time { return f.modTime }

func (f *DiskFile) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

// ReadDir lists every regular file under root, recursively. Hidden entries
// are skipped. Errors below the top level are skipped as well; only an
// unreadable root fails the listing.
func ReadDir(root string) ([]RawFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	root = filepath.Clean(root)
	var files []RawFile

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		files = append(files, &DiskFile{
			path:    path,
			name:    d.Name(),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	return files, nil
}
