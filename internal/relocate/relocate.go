// Package relocate moves classified files into their category directory.
package relocate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"sorter/internal/classify"
	"sorter/internal/fileutil"
)

// Collision policies.
const (
	ConflictRename    = "rename"
	ConflictError     = "error"
	ConflictOverwrite = "overwrite"
)

// Cross-device modes.
const (
	CrossDeviceFail = "fail"
	CrossDeviceCopy = "copy"
)

const (
	defaultDirMode   = 0o755
	defaultMaxSuffix = 999
)

// Options configures a Relocator. Zero values select the defaults.
type Options struct {
	OnConflict  string
	CrossDevice string
	DirMode     os.FileMode
	MaxSuffix   int
}

// Result describes a completed move.
type Result struct {
	Destination string
	Renamed     bool
	Copied      bool
	CreatedDir  bool
}

// Relocator executes routing decisions. It holds no per-file state.
type Relocator struct {
	onConflict  string
	crossDevice string
	dirMode     os.FileMode
	maxSuffix   int
}

func New(opts Options) *Relocator {
	r := &Relocator{
		onConflict:  strings.ToLower(strings.TrimSpace(opts.OnConflict)),
		crossDevice: strings.ToLower(strings.TrimSpace(opts.CrossDevice)),
		dirMode:     opts.DirMode,
		maxSuffix:   opts.MaxSuffix,
	}
	if r.onConflict == "" {
		r.onConflict = ConflictRename
	}
	if r.crossDevice == "" {
		r.crossDevice = CrossDeviceFail
	}
	if r.dirMode == 0 {
		r.dirMode = defaultDirMode
	}
	if r.maxSuffix <= 0 {
		r.maxSuffix = defaultMaxSuffix
	}
	return r
}

// ValidConflictPolicy reports whether name is a known collision policy.
func ValidConflictPolicy(name string) bool {
	switch name {
	case ConflictRename, ConflictError, ConflictOverwrite:
		return true
	}
	return false
}

// ValidCrossDeviceMode reports whether name is a known cross-device mode.
func ValidCrossDeviceMode(name string) bool {
	return name == CrossDeviceFail || name == CrossDeviceCopy
}

// Relocate creates the destination directory when needed and moves the source
// into it. Failures are never retried.
func (r *Relocator) Relocate(d classify.Decision) (Result, error) {
	if !d.Routed() {
		return Result{}, &RelocateError{Kind: ErrMoveFailed, Source: d.SourcePath, Err: ErrNotRouted}
	}
	src, dst := d.SourcePath, d.DestinationPath

	created, err := r.ensureDir(d.DestinationDir)
	if err != nil {
		return Result{}, &RelocateError{Kind: ErrDirectoryCreateFailed, Source: src, Destination: d.DestinationDir, Err: err}
	}
	result := Result{Destination: dst, CreatedDir: created}

	if _, err := os.Lstat(src); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = errors.Join(ErrSourceMissing, err)
		}
		return result, &RelocateError{Kind: ErrMoveFailed, Source: src, Destination: dst, Err: err}
	}

	switch r.onConflict {
	case ConflictOverwrite:
		copied, err := r.move(src, dst, true)
		if err != nil {
			return result, r.moveError(src, dst, err)
		}
		result.Copied = copied
		return result, nil
	case ConflictError:
		copied, err := r.move(src, dst, false)
		if err != nil {
			return result, r.moveError(src, dst, err)
		}
		result.Copied = copied
		return result, nil
	default:
		for i := 0; i <= r.maxSuffix; i++ {
			candidate := suffixedPath(dst, i)
			copied, err := r.move(src, candidate, false)
			if errors.Is(err, fs.ErrExist) {
				continue
			}
			if err != nil {
				return result, r.moveError(src, candidate, err)
			}
			result.Destination = candidate
			result.Renamed = i > 0
			result.Copied = copied
			return result, nil
		}
		return result, &RelocateError{
			Kind:        ErrMoveFailed,
			Source:      src,
			Destination: dst,
			Err:         fmt.Errorf("%w: no free name after %d attempts", ErrDestinationExists, r.maxSuffix),
		}
	}
}

func (r *Relocator) ensureDir(dir string) (bool, error) {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return false, fmt.Errorf("%s exists and is not a directory", dir)
		}
		return false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	if err := os.MkdirAll(dir, r.dirMode); err != nil {
		return false, err
	}
	return true, nil
}

// move renames src to dst, falling back to a verified copy across devices when
// configured. It reports whether the copy path was taken.
func (r *Relocator) move(src, dst string, overwrite bool) (bool, error) {
	var err error
	if overwrite {
		err = os.Rename(src, dst)
	} else {
		err = renameNoReplace(src, dst)
	}
	if err == nil {
		return false, nil
	}
	if !isCrossDevice(err) || r.crossDevice != CrossDeviceCopy {
		return false, err
	}
	if err := copyAcross(src, dst, overwrite); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Relocator) moveError(src, dst string, err error) error {
	if errors.Is(err, fs.ErrExist) && !errors.Is(err, ErrDestinationExists) {
		err = errors.Join(ErrDestinationExists, err)
	}
	return &RelocateError{Kind: ErrMoveFailed, Source: src, Destination: dst, Err: err}
}

// copyAcross copies src next to dst, then removes src. With overwrite the copy
// lands in a hidden temporary name and replaces dst by rename. A symlink is
// recreated with the same target instead of copying what it points at.
func copyAcross(src, dst string, overwrite bool) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	target := dst
	if overwrite {
		target = filepath.Join(filepath.Dir(dst), fmt.Sprintf(".%s.sorter-%d.partial", filepath.Base(dst), os.Getpid()))
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		err = copyLink(src, target)
	} else {
		_, err = fileutil.CopyVerified(src, target)
	}
	if err != nil {
		return err
	}
	if overwrite {
		if err := os.Rename(target, dst); err != nil {
			_ = os.Remove(target)
			return err
		}
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("copied to %s but could not remove source: %w", dst, err)
	}
	return nil
}

func copyLink(src, dst string) error {
	link, err := os.Readlink(src)
	if err != nil {
		return err
	}
	return os.Symlink(link, dst)
}

// suffixedPath returns "name (n).ext" for n > 0. The extension starts at the
// first dot after any leading dots, so "backup.tar.gz" becomes
// "backup (1).tar.gz" and ".env" becomes ".env (1)".
func suffixedPath(path string, n int) string {
	if n == 0 {
		return path
	}
	dir, base := filepath.Split(path)
	stem, ext := splitName(base)
	return filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
}

func splitName(base string) (string, string) {
	lead := len(base) - len(strings.TrimLeft(base, "."))
	i := strings.IndexByte(base[lead:], '.')
	if i < 0 {
		return base, ""
	}
	return base[:lead+i], base[lead+i:]
}

func isCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

// renameNoClobber is the portable no-replace rename. The existence check and
// the rename are not atomic.
func renameNoClobber(src, dst string) error {
	exists, err := fileutil.Exists(dst)
	if err != nil {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: err}
	}
	if exists {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: fs.ErrExist}
	}
	return os.Rename(src, dst)
}
