//go:build unix

package fetch

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// isolateProcess puts the tool in its own process group and signals the whole
// group on cancellation, so descendants spawned by the tool die with it
// instead of holding the stderr pipe open until WaitDelay expires.
func isolateProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
}
