package system

import (
	"os"

	"golang.org/x/sys/unix"
)

// IsRoot reports whether the process runs with effective uid 0.
func IsRoot() bool {
	return os.Geteuid() == 0
}

// CanWrite reports whether the process may create and delete entries
// in dir.
func CanWrite(dir string) bool {
	return unix.Access(dir, unix.W_OK) == nil
}
