package dotdir

import "path/filepath"

const (
	historyFile = "history.json"
	sqliteFile  = "history.sqlite"
	logFile     = "trickle.log"
)

// HistoryPath returns the default JSON history file inside the target
// directory. An explicit path wins over the directory default.
func (m *Manager) HistoryPath(explicit, overrideDir string) (string, error) {
	return m.file(explicit, overrideDir, historyFile)
}

// SQLitePath returns the default SQLite history database inside the target
// directory. An explicit path wins over the directory default.
func (m *Manager) SQLitePath(explicit, overrideDir string) (string, error) {
	return m.file(explicit, overrideDir, sqliteFile)
}

// LogPath returns the log file inside the target directory.
func (m *Manager) LogPath(overrideDir string) (string, error) {
	return m.file("", overrideDir, logFile)
}

func (m *Manager) file(explicit, overrideDir, name string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
