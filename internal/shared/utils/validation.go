package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bytedance/sonic"
)

// Size limits (in bytes)
const (
	MaxRuntimeConfigSize = 64 * 1024 // 64KB - runtime config JSON blob
	MaxLaunchArgsSize    = 16 * 1024 // 16KB - launch arguments
	MaxIntentSize        = 16 * 1024 // 16KB - navigation intent payload
)

// String length limits
const (
	MaxIDLength  = 128
	MaxURLLength = 2048
)

// AppIDPattern allows reverse-DNS style identifiers (com.example.app)
var AppIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil // Optional field, empty is OK
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	// Check for null bytes (security issue)
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidateAppID validates an application identifier
func ValidateAppID(appID string) error {
	if err := ValidateString(appID, "appId", 1, MaxIDLength, true); err != nil {
		return err
	}
	if !AppIDPattern.MatchString(appID) {
		return fmt.Errorf("appId contains invalid characters (only alphanumeric, dots, hyphens, and underscores allowed)")
	}
	return nil
}

// ValidateInstanceID validates an application instance identifier
func ValidateInstanceID(instanceID string) error {
	return ValidateString(instanceID, "appInstanceId", 1, MaxIDLength, true)
}

// ValidateURL validates a download URL
func ValidateURL(raw string) error {
	if err := ValidateString(raw, "url", 1, MaxURLLength, true); err != nil {
		return err
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url must use http or https scheme")
	}
	if parsed.Host == "" {
		return fmt.Errorf("url must include a host")
	}
	return nil
}

// ValidateJSONBlob checks an optional JSON payload for size and structure
func ValidateJSONBlob(blob, fieldName string, maxSize int) error {
	if blob == "" {
		return nil
	}
	if len(blob) > maxSize {
		return fmt.Errorf("%s size %d bytes exceeds maximum %d bytes", fieldName, len(blob), maxSize)
	}
	if !sonic.Valid([]byte(blob)) {
		return fmt.Errorf("%s is not valid JSON", fieldName)
	}
	return nil
}
