package runstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	dirLockName      = ".export.lock"
	dirLockOwnerFile = "owner.json"
)

// DirLock serialises writers of one export directory across processes.
type DirLock struct {
	lockDir string
}

type dirLockOwner struct {
	PID       int    `json:"pid"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

func AcquireDirLock(dir string) (DirLock, error) {
	target := strings.TrimSpace(dir)
	if target == "" {
		return DirLock{}, fmt.Errorf("export directory is required")
	}

	lockDir := filepath.Join(target, dirLockName)
	if err := os.Mkdir(lockDir, 0o755); err != nil {
		if !os.IsExist(err) {
			return DirLock{}, fmt.Errorf("acquire lock for %s: %w", target, err)
		}
		var owner dirLockOwner
		if readErr := ReadJSON(filepath.Join(lockDir, dirLockOwnerFile), &owner); readErr != nil || owner.PID <= 0 {
			return DirLock{}, fmt.Errorf("export directory is locked: %s", target)
		}
		if !owner.stale() {
			return DirLock{}, fmt.Errorf(
				"export directory is locked: %s (pid=%d created_at=%s host=%s)",
				target, owner.PID, owner.CreatedAt, owner.Hostname,
			)
		}
		// The owner exited without releasing; take the lock over.
		if err := os.RemoveAll(lockDir); err != nil {
			return DirLock{}, fmt.Errorf("remove stale lock for %s: %w", target, err)
		}
		if err := os.Mkdir(lockDir, 0o755); err != nil {
			if os.IsExist(err) {
				return DirLock{}, fmt.Errorf("export directory is locked: %s", target)
			}
			return DirLock{}, fmt.Errorf("acquire lock for %s: %w", target, err)
		}
	}

	owner := dirLockOwner{
		PID:       os.Getpid(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	}
	if err := WriteJSON(filepath.Join(lockDir, dirLockOwnerFile), owner); err != nil {
		_ = os.RemoveAll(lockDir)
		return DirLock{}, fmt.Errorf("write lock owner for %s: %w", target, err)
	}
	return DirLock{lockDir: lockDir}, nil
}

func (l DirLock) Release() error {
	if strings.TrimSpace(l.lockDir) == "" {
		return nil
	}
	_ = os.Remove(filepath.Join(l.lockDir, dirLockOwnerFile))
	if err := os.Remove(l.lockDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release lock %s: %w", l.lockDir, err)
	}
	return nil
}

// stale reports whether the owner was a process on this host that is no
// longer running. Owners on other hosts are never considered stale.
func (o dirLockOwner) stale() bool {
	if o.Hostname != hostnameOrUnknown() {
		return false
	}
	return !processAlive(o.PID)
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
