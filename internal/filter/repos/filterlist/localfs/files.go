package localfs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/google/renameio/v2"

	"github.com/haukened/rr-filter/internal/filter/common/utils"
)

// ErrNotExist is returned by ReadLines when the list file is missing.
const ErrNotExist errors.Error = "list file does not exist"

// Dir stores filter-list files under a single directory.
type Dir struct {
	root string
}

// New returns a Dir rooted at root. The directory is created on first write.
func New(root string) *Dir {
	return &Dir{root: root}
}

// Path returns the absolute location of name.
func (d *Dir) Path(name string) string {
	return filepath.Join(d.root, filepath.Base(name))
}

// ReadLines returns the lines of name with line terminators removed. A missing
// file yields ErrNotExist.
func (d *Dir) ReadLines(name string) (lines []string, err error) {
	defer func() { err = errors.Annotate(err, "reading %s: %w", name) }()

	f, err := os.Open(d.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotExist
	} else if err != nil {
		return nil, err
	}
	defer func() { err = errors.WithDeferred(err, f.Close()) }()

	sc := utils.NewLineScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err = sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// WriteAtomic replaces name with data. Readers see either the old or the new
// contents, never a partial file.
func (d *Dir) WriteAtomic(name string, data []byte) error {
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return fmt.Errorf("creating list dir %s: %w", d.root, err)
	}
	if err := renameio.WriteFile(d.Path(name), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// EnsureFile creates name with content when it does not exist. It reports
// whether the file was created.
func (d *Dir) EnsureFile(name string, content []byte) (bool, error) {
	_, err := os.Stat(d.Path(name))
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("checking %s: %w", name, err)
	}
	if err := d.WriteAtomic(name, content); err != nil {
		return false, err
	}
	return true, nil
}
