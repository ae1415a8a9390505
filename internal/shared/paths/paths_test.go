package paths

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDownloadLocator(t *testing.T) {
	assert.Equal(t, "/opt/CDL/package2001", DownloadLocator(DownloadDir, "2001"))
	assert.Equal(t, "/tmp/dl/package7", DownloadLocator("/tmp/dl/", "7"))
}

func TestIsWithin(t *testing.T) {
	assert.True(t, IsWithin("/opt/CDL", "/opt/CDL/package1"))
	assert.False(t, IsWithin("/opt/CDL", "/opt/other/package1"))
	assert.False(t, IsWithin("/opt/CDL", "/opt/CDL/../etc/passwd"))
}

func TestValidateLocator(t *testing.T) {
	assert.NoError(t, ValidateLocator("/opt/CDL/package1"))
	assert.Error(t, ValidateLocator(""))
	assert.Error(t, ValidateLocator("package1"))
	assert.Error(t, ValidateLocator("/opt/CDL/../package1"))
}
