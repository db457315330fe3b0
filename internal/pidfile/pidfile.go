// Package pidfile guards the daemon against running twice.
//
// The file holds the decimal PID of the running daemon. A file left behind by
// a crashed daemon is taken over: it only blocks startup while the PID it
// names belongs to a live process running the same executable.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"
)

// filePermissions allow other users to find the daemon PID.
const filePermissions = 0o644

// ErrAlreadyRunning is returned when another daemon owns the PID file.
var ErrAlreadyRunning = errors.New("daemon is already running")

// File is an acquired PID file.
type File struct {
	// path is the cleaned file location.
	path string
	// pid is the PID written to the file.
	pid int
}

// Acquire writes the current PID to path unless another live process of the
// same executable is recorded there.
func Acquire(path string) (*File, error) {
	executable, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}

	return acquire(path, os.Getpid(), filepath.Base(executable))
}

func acquire(path string, self int, executable string) (*File, error) {
	path = filepath.Clean(path)

	owner, err := readPID(path)
	if err != nil {
		return nil, err
	}

	if owner > 0 && owner != self {
		running, err := isRunning(owner, executable)
		if err != nil {
			return nil, err
		}

		if running {
			return nil, fmt.Errorf("%w: pid %d in %s", ErrAlreadyRunning, owner, path)
		}
	}

	contents := strconv.Itoa(self) + "\n"
	if err = os.WriteFile(path, []byte(contents), filePermissions); err != nil {
		return nil, fmt.Errorf("write pid file: %w", err)
	}

	return &File{
		path: path,
		pid:  self,
	}, nil
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Release removes the file if it still holds our PID.
func (f *File) Release() error {
	if f == nil {
		return nil
	}

	owner, err := readPID(f.path)
	if err != nil {
		return err
	}

	if owner != f.pid {
		return nil
	}

	if err = os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove pid file: %w", err)
	}

	return nil
}

// readPID returns 0 when the file is missing or does not hold a PID.
func readPID(path string) (int, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}

		return 0, fmt.Errorf("read pid file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 {
		return 0, nil
	}

	return pid, nil
}

// isRunning reports whether pid is alive and runs executable.
func isRunning(pid int, executable string) (bool, error) {
	process, err := ps.FindProcess(pid)
	if err != nil {
		return false, fmt.Errorf("find process %d: %w", pid, err)
	}

	if process == nil {
		return false, nil
	}

	return sameExecutable(process.Executable(), executable), nil
}

// sameExecutable compares process names, which the kernel may truncate.
func sameExecutable(running, executable string) bool {
	if running == "" {
		return false
	}

	return running == executable || strings.HasPrefix(executable, running)
}
