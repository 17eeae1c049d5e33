package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"sorter/internal/logging"
)

// Subscribe installs watches for roots and returns the resulting stream.
// Every root must exist and be a directory.
func Subscribe(roots []string, opts Options) (Stream, error) {
	if len(roots) == 0 {
		return nil, &WatchError{Kind: ErrPathNotFound, Err: errors.New("no roots to watch")}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	cleaned := make([]string, 0, len(roots))
	seen := make(map[string]struct{}, len(roots))
	for _, root := range roots {
		root = filepath.Clean(root)
		if _, ok := seen[root]; ok {
			continue
		}
		seen[root] = struct{}{}
		info, err := os.Stat(root)
		if err != nil {
			return nil, &WatchError{Kind: ErrPathNotFound, Path: root, Err: err}
		}
		if !info.IsDir() {
			return nil, &WatchError{Kind: ErrPathNotFound, Path: root, Err: errors.New("not a directory")}
		}
		cleaned = append(cleaned, root)
	}

	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendFSNotify:
		return newFSNotifySource(cleaned, opts)
	case BackendNotify:
		return newNotifySource(cleaned, opts)
	default:
		return nil, &WatchError{Kind: ErrPlatformUnavailable, Err: fmt.Errorf("unknown backend %q", opts.Backend)}
	}
}

func classifyAddError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return &WatchError{Kind: ErrPathNotFound, Path: path, Err: err}
	}
	return &WatchError{Kind: ErrPlatformUnavailable, Path: path, Err: err}
}
