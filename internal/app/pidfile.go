package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// claimPIDFile writes the current pid to path and returns a release
// function that removes the file if it still names this process. A file
// naming another live process is an error.
func claimPIDFile(path string) (func(), error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if other, err := readPIDFile(path); err == nil && other != os.Getpid() && pidRunning(other) {
		return nil, fmt.Errorf("pid file %q is held by running process %d", path, other)
	}

	pid := os.Getpid()
	if err := writePIDFile(path, pid); err != nil {
		return nil, err
	}
	return func() {
		if cur, err := readPIDFile(path); err == nil && cur == pid {
			_ = os.Remove(path)
		}
	}, nil
}

// writePIDFile replaces path atomically through a temp file in the same
// directory.
func writePIDFile(path string, pid int) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	renamed := false
	defer func() {
		_ = tmp.Close()
		if !renamed {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if _, err := tmp.WriteString(strconv.Itoa(pid) + "\n"); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	renamed = true
	return nil
}

func readPIDFile(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	raw := strings.TrimSpace(string(b))
	pid, err := strconv.Atoi(raw)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("pid file %q contains invalid pid %q", path, raw)
	}
	return pid, nil
}

func pidRunning(pid int) bool {
	return pid > 0 && !isZombiePID(pid) && processExists(pid)
}

// isZombiePID reads the process state from procfs; it is false wherever
// procfs is missing.
func isZombiePID(pid int) bool {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return false
	}
	// state follows the parenthesized command name, which may hold spaces
	s := string(data)
	if i := strings.LastIndexByte(s, ')'); i >= 0 {
		s = s[i+1:]
	}
	fields := strings.Fields(s)
	return len(fields) > 0 && fields[0] == "Z"
}
