package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const maxUserWatchesPath = "/proc/sys/fs/inotify/max_user_watches"

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckWatchCapacity compares the number of directories a recursive fsnotify
// watch needs with the inotify per-user limit. It passes when the limit is
// unknown, as on platforms without inotify.
func CheckWatchCapacity(ctx context.Context, roots []string) Result {
	return checkWatchCapacity(ctx, roots, maxUserWatchesPath)
}

func checkWatchCapacity(ctx context.Context, roots []string, limitPath string) Result {
	const name = "Watch capacity"

	needed := 0
	for _, root := range roots {
		_ = filepath.WalkDir(root, func(_ string, entry fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				return nil
			}
			if entry.IsDir() {
				needed++
			}
			return nil
		})
	}

	limit, err := readLimit(limitPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d directories (no inotify limit)", needed)}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d directories (limit unknown: %v)", needed, err)}
	}
	if needed > limit {
		return Result{Name: name, Detail: fmt.Sprintf("%d directories exceed fs.inotify.max_user_watches=%d", needed, limit)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d of %d watches", needed, limit)}
}

func readLimit(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
