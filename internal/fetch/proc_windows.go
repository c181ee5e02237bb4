//go:build windows

package fetch

import "os/exec"

// isolateProcess is a no-op on Windows; exec.CommandContext's default kill of
// the direct child is the best generally available behavior there.
func isolateProcess(cmd *exec.Cmd) {}
