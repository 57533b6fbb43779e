package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/khanhnv2901/vulnpack-cli/internal/shared/security"
)

// scanStem derives the scan directory name from the input file: the base name
// without its extension.
func scanStem(inputPath string) string {
	base := filepath.Base(inputPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// validateScanStem ensures directory names derived from user input can't be
// used for path traversal. Stems become directory names, so reject separators
// and reserved names.
func validateScanStem(stem string) error {
	switch stem {
	case "":
		return errors.New("scan name is empty")
	case ".", "..":
		return fmt.Errorf("scan name %q is reserved", stem)
	}
	if strings.ContainsAny(stem, "/\\") {
		return fmt.Errorf("scan name %q must not contain path separators", stem)
	}
	return nil
}

// resolveScanDir picks the working directory for a scan. An explicit override
// wins; otherwise the directory is named after the input file stem inside the
// results directory. A scan directory must not be shared by two concurrent
// runs.
func resolveScanDir(resultsDir, inputPath, override string) (string, error) {
	if override != "" {
		abs, err := filepath.Abs(override)
		if err != nil {
			return "", fmt.Errorf("resolve work dir: %w", err)
		}
		return abs, nil
	}

	stem := scanStem(inputPath)
	if err := validateScanStem(stem); err != nil {
		return "", err
	}
	return security.ResolveWithin(resultsDir, stem)
}
