package config

import (
	"errors"
	"fmt"
)

// Validate checks if the settings are usable.
func (s *Settings) Validate() error {
	var errs []error
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", s.Port))
	}
	if s.ProbeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("probe_timeout must be positive, got %s", s.ProbeTimeout))
	}
	if s.StartupTimeout <= 0 {
		errs = append(errs, fmt.Errorf("startup_timeout must be positive, got %s", s.StartupTimeout))
	}
	if s.LintTimeout <= 0 {
		errs = append(errs, fmt.Errorf("lint_timeout must be positive, got %s", s.LintTimeout))
	}
	return errors.Join(errs...)
}
