//go:build windows

package supervisor

import "os/exec"

func configureProcessGroup(cmd *exec.Cmd) {}

// Windows has no SIGTERM for arbitrary processes; cooperative shutdown and
// force kill collapse into the same Kill call.
func signalTerm(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

func forceKill(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
