package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir is $XDG_STATE_HOME/grampsindex or
// ~/.local/state/grampsindex, falling back to the temp dir.
func DefaultLogDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "grampsindex")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "grampsindex", "logs")
	}
	return filepath.Join(home, ".local", "state", "grampsindex")
}

func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "grampsindex.log")
}

// FindLogFile returns explicit when it exists, else the default log file.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("log file not found: %s", explicit)
		}
		return explicit, nil
	}
	path := DefaultLogPath()
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("no log file found at %s; run a grampsindex command first", path)
	}
	return path, nil
}
