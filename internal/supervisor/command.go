package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

const serverBaseName = "coworker-server"

// serverPathEnv overrides sidecar discovery entirely.
const serverPathEnv = "COWORKER_SIDECAR_PATH"

func serverExactFilename() string {
	if runtime.GOOS == "windows" {
		return serverBaseName + ".exe"
	}
	return serverBaseName
}

// serverMatchesFilename accepts build outputs that carry a target suffix,
// like coworker-server-x86_64-unknown-linux-gnu.
func serverMatchesFilename(name string) bool {
	if runtime.GOOS == "windows" {
		name = strings.TrimSuffix(name, ".exe")
	}
	return name == serverBaseName || strings.HasPrefix(name, serverBaseName+"-")
}

// FindServerBinary locates the workspace server executable. Search order:
// the COWORKER_SIDECAR_PATH override, the directories around the running
// executable, then PATH.
func FindServerBinary() (string, error) {
	if p := os.Getenv(serverPathEnv); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("%s points at %s: %w", serverPathEnv, p, err)
		}
		return p, nil
	}

	var dirs []string
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		dirs = append(dirs, exeDir, filepath.Join(exeDir, "binaries"), filepath.Join(exeDir, "resources"))
		if runtime.GOOS == "darwin" {
			dirs = append(dirs, filepath.Join(exeDir, "..", "Resources"))
		}
	}

	exact := serverExactFilename()
	for _, dir := range dirs {
		candidate := filepath.Join(dir, exact)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() && serverMatchesFilename(e.Name()) {
				return filepath.Join(dir, e.Name()), nil
			}
		}
	}

	if p, err := exec.LookPath(serverBaseName); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("server binary %s not found next to the application or on PATH (set %s to override)", exact, serverPathEnv)
}

// newServerCommand builds the default launch command for a workspace server.
// The server picks its own port and reports it through the handshake line.
func newServerCommand(workspacePath string, yolo bool) (*exec.Cmd, error) {
	bin, err := FindServerBinary()
	if err != nil {
		return nil, err
	}
	args := []string{"--dir", workspacePath, "--port", "0", "--json"}
	if yolo {
		args = append(args, "--yolo")
	}
	cmd := exec.Command(bin, args...)
	cmd.Dir = workspacePath
	configureProcessGroup(cmd)
	return cmd, nil
}
