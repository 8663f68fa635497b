package store

import (
	"os"
	"path/filepath"
	"strings"
)

// DataDir resolves the application data directory. COWORKER_HOME wins when
// set; otherwise everything lives under ~/.coworker.
func DataDir() string {
	if v := strings.TrimSpace(os.Getenv("COWORKER_HOME")); v != "" {
		return absPath(v)
	}
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return absPath(".coworker")
	}
	return filepath.Join(home, ".coworker")
}

func absPath(p string) string {
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	wd, _ := os.Getwd()
	return filepath.Clean(filepath.Join(wd, p))
}
