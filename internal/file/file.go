package file

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ExpandPath expands a path to avoid `~`.
func ExpandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "~" {
		return os.UserHomeDir()
	}
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "getting user home dir")
	}
	return filepath.Join(home, path[2:]), nil
}

// HasValidExtension reports whether the filename ends with one of the extensions.
// An empty extension list accepts everything.
func HasValidExtension(filename string, validExtensions []string) bool {
	if len(validExtensions) == 0 {
		return true
	}
	filename = strings.ToLower(filename)
	for _, validExtension := range validExtensions {
		if strings.HasSuffix(filename, strings.ToLower(validExtension)) {
			return true
		}
	}
	return false
}

// CreateDirectoryIfNotExist creates the directory and its parents.
func CreateDirectoryIfNotExist(directory string) error {
	ok, err := DirectoryExists(directory)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if err := os.MkdirAll(directory, 0755); err != nil {
		return errors.Wrap(err, "creating directory")
	}
	return nil
}

// CreateParentDirectory creates the directory holding filePath.
func CreateParentDirectory(filePath string) error {
	return CreateDirectoryIfNotExist(filepath.Dir(filePath))
}

// DirectoryExists returns true if the directory exists.
func DirectoryExists(directory string) (bool, error) {
	info, err := os.Stat(directory)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "checking if directory exists")
	}
	return info.IsDir(), nil
}
