package paths

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DownloadDir is the default download directory
const DownloadDir = "/opt/CDL"

// PackagePrefix is prepended to a download id to form its file name
const PackagePrefix = "package"

// DownloadLocator returns the destination path of a download
func DownloadLocator(dir, downloadID string) string {
	return filepath.Join(dir, PackagePrefix+downloadID)
}

// IsWithin checks if path is located inside dir
func IsWithin(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ValidateLocator checks that a file locator is safe to remove
func ValidateLocator(locator string) error {
	if locator == "" {
		return fmt.Errorf("file locator cannot be empty")
	}
	if !filepath.IsAbs(locator) {
		return fmt.Errorf("file locator must be an absolute path")
	}
	if filepath.Clean(locator) != locator {
		return fmt.Errorf("file locator contains invalid path components")
	}
	return nil
}
