package config

import "sorter/internal/relocate"

const (
	defaultStateDir         = "~/.local/share/sorter"
	defaultLogDir           = "~/.local/share/sorter/logs"
	defaultLogRetentionDays = 30
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultBackend          = "fsnotify"
)

// Default returns a Config populated with repository defaults. Watch paths
// and categories have no defaults; a usable config must name them.
func Default() Config {
	return Config{
		Watch: Watch{
			Backend:   defaultBackend,
			Recursive: true,
		},
		Relocate: Relocate{
			OnConflict:  relocate.ConflictRename,
			CrossDevice: relocate.CrossDeviceFail,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
