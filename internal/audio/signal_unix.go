//go:build unix

package audio

import (
	"fmt"
	"os"
	"syscall"
)

func suspend(proc *os.Process) error {
	if err := proc.Signal(syscall.SIGSTOP); err != nil {
		return fmt.Errorf("suspend player: %w", err)
	}
	return nil
}

func resume(proc *os.Process) error {
	if err := proc.Signal(syscall.SIGCONT); err != nil {
		return fmt.Errorf("resume player: %w", err)
	}
	return nil
}
