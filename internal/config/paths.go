package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".finchat"

// Paths holds resolved filesystem paths for finchat data.
type Paths struct {
	Base   string // ~/.finchat
	Config string // ~/.finchat/config.yaml
	Data   string // ~/.finchat/data
	Logs   string // ~/.finchat/logs
}

// ResolvePaths computes all standard paths from the home directory.
// If FINCHAT_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("FINCHAT_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Data:   filepath.Join(base, "data"),
		Logs:   filepath.Join(base, "logs"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Data, p.Logs} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// ResolveDatabases fills unset database paths with files under the data dir.
func (p Paths) ResolveDatabases(db *DatabaseConfig) {
	if db.Finance == "" {
		db.Finance = filepath.Join(p.Data, "finance.db")
	}
	if db.Memory == "" {
		db.Memory = filepath.Join(p.Data, "memory.db")
	}
}
