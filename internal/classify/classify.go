// Package classify decides whether a created file should be moved and where.
// Everything here is pure path logic; no filesystem access happens.
package classify

import (
	"path/filepath"
	"strings"

	"sorter/internal/watcher"
	"sorter/internal/watchset"
)

// Action is the outcome of classifying a path.
type Action int

const (
	ActionIgnore Action = iota
	ActionRoute
)

func (a Action) String() string {
	if a == ActionRoute {
		return "route"
	}
	return "ignore"
}

// Ignore reasons.
const (
	ReasonNotDirectChild = "not_direct_child_of_root"
	ReasonNoExtension    = "no_extension"
	ReasonNoRule         = "no_rule"
)

// Decision describes where a file goes. Destination fields are empty for
// ignored paths.
type Decision struct {
	Action          Action
	Reason          string
	SourcePath      string
	DestinationDir  string
	DestinationPath string
	Category        string
	Extension       string
}

// Routed reports whether the decision moves the file.
func (d Decision) Routed() bool { return d.Action == ActionRoute }

// Filter keeps file creations and drops everything else, including created
// directories.
func Filter(n watcher.Notification) (string, bool) {
	if n.Kind != watcher.KindCreated || n.IsDir || len(n.Paths) == 0 {
		return "", false
	}
	return n.Paths[0], true
}

// Classify routes files created directly inside a root. Files in
// subdirectories of a root stay where they are.
func Classify(path string, ws *watchset.WatchSet) Decision {
	path = filepath.Clean(path)
	decision := Decision{Action: ActionIgnore, SourcePath: path}

	parent := filepath.Dir(path)
	if !ws.IsRoot(parent) {
		decision.Reason = ReasonNotDirectChild
		return decision
	}

	name := filepath.Base(path)
	ext := Extension(name)
	if ext == "" {
		decision.Reason = ReasonNoExtension
		return decision
	}
	decision.Extension = ext

	category, ok := ws.Lookup(ext)
	if !ok {
		decision.Reason = ReasonNoRule
		return decision
	}

	decision.Action = ActionRoute
	decision.Category = category
	decision.DestinationDir = filepath.Join(parent, category)
	decision.DestinationPath = filepath.Join(decision.DestinationDir, name)
	return decision
}

// Extension returns the lowercase extension of a file name without its dot.
// Names whose only dot is the leading one (".bashrc") and names ending in a
// dot have no extension.
func Extension(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx <= 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}
