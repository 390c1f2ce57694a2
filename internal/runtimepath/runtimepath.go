package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Dir returns the runtime directory holding the server socket. Priority:
// 1) XDG_RUNTIME_DIR (if set)
// 2) /run/user/<uid> (if present)
// 3) /tmp/treemirror-runtime-<uid> (created)
func Dir() (string, error) {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return runtimeDir, nil
	}

	uid := os.Getuid()
	runUserDir := fmt.Sprintf("/run/user/%d", uid)
	if info, err := os.Stat(runUserDir); err == nil && info.IsDir() {
		return runUserDir, nil
	}

	tmpDir := fmt.Sprintf("/tmp/treemirror-runtime-%d", uid)
	if err := os.MkdirAll(tmpDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create runtime dir: %w", err)
	}
	return tmpDir, nil
}

// SocketPath returns the default window server socket path.
func SocketPath() (string, error) {
	runtimeDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(runtimeDir, "treemirror.sock"), nil
}

// Endpoint resolves a configured ipc endpoint. URLs are returned unchanged,
// a leading ~/ is expanded, and an empty endpoint means SocketPath.
func Endpoint(configured string) (string, error) {
	switch {
	case configured == "":
		return SocketPath()
	case strings.HasPrefix(configured, "ws://"), strings.HasPrefix(configured, "wss://"):
		return configured, nil
	case strings.HasPrefix(configured, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		return filepath.Join(home, configured[2:]), nil
	}
	return configured, nil
}
