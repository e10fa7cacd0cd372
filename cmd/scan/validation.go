package scan

import (
	"fmt"
	"path/filepath"
	"strings"
)

// validateScanArgs validates the arguments provided to the scan command.
func validateScanArgs(opts *RunOptionsScan) error {
	opts.Repository = strings.TrimSpace(opts.Repository)
	if opts.Repository == "" {
		return fmt.Errorf("a repository must be specified")
	}
	if opts.MaxFiles < 0 {
		return fmt.Errorf("the 'max-files' flag must not be negative")
	}
	if opts.Organization != "" && strings.ContainsAny(opts.Organization, `/\`) {
		return fmt.Errorf("the 'org' flag must not contain path separators: %q", opts.Organization)
	}
	if opts.SarifPath != "" && opts.OutputPath != "" && filepath.Clean(opts.SarifPath) == filepath.Clean(opts.OutputPath) && filepath.Ext(opts.SarifPath) != "" {
		return fmt.Errorf("the 'sarif' and 'output' flags must point to different files")
	}
	return nil
}
