package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseID parses a positive numeric identifier from a path or argument
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: must be numeric", raw)
	}
	if id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be positive", raw)
	}
	return id, nil
}

// ValidatePackageID checks a package identifier for use as a file name
func ValidatePackageID(packageID string) error {
	if packageID == "" {
		return fmt.Errorf("package id is required")
	}
	if strings.ContainsAny(packageID, `/\`) || strings.Contains(packageID, "..") {
		return fmt.Errorf("invalid package id: %s", packageID)
	}
	return nil
}
