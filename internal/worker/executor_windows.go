//go:build windows

package worker

import "os/exec"

func shellCommand(command string) (string, []string) {
	return "cmd", []string{"/c", command}
}

func setProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}
