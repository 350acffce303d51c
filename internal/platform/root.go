package platform

import (
	"errors"
	"os"
	"path/filepath"
)

// DataDirName is the hidden directory holding a workspace's databases.
const DataDirName = ".contractflow"

// ErrRootNotFound is returned when no workspace root exists above a
// directory.
var ErrRootNotFound = errors.New("workspace root not found")

// FindRoot looks upwards from startDir for a workspace root, marked by a
// .contractflow directory or a contractflow.yaml file, and returns its
// absolute path.
func FindRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		if hasFile(dir, DataDirName) || hasFile(dir, ConfigFile) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrRootNotFound
		}
		dir = parent
	}
}

func hasFile(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
