//go:build !windows

package sqlitestore

import "syscall"

// flockLock acquires an exclusive advisory file lock (Unix: flock).
func flockLock(fd uintptr) error {
	return syscall.Flock(int(fd), syscall.LOCK_EX)
}

// flockUnlock releases the advisory file lock (Unix: flock).
func flockUnlock(fd uintptr) error {
	return syscall.Flock(int(fd), syscall.LOCK_UN)
}
