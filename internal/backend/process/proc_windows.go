//go:build windows

package process

import (
	"os"
	"os/exec"
)

func setProcessGroup(_ *exec.Cmd) {}

func killGroup(p *os.Process) error {
	return p.Kill()
}

func isNoSuchProcess(_ error) bool {
	return false
}
