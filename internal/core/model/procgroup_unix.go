//go:build unix

package model

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// setProcessGroup puts the model process in its own group so a stop reaches
// every process it spawned.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalGroup(p *os.Process, sig syscall.Signal) error {
	if err := syscall.Kill(-p.Pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}

func interruptGroup(p *os.Process) error { return signalGroup(p, syscall.SIGINT) }
func killGroup(p *os.Process) error      { return signalGroup(p, syscall.SIGKILL) }
