package app

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"elections-scraper/internal/config"
)

var (
	ErrInvalidURL    = errors.New("invalid index URL")
	ErrInvalidOutput = errors.New("invalid output file name")
)

// ValidateArgs checks the index URL against source.allowed_url_pattern and
// the output path against source.output_suffix.
func ValidateArgs(cfg *config.Config, indexURL, outputPath string) error {
	pattern, err := regexp.Compile(cfg.Source.AllowedURLPattern)
	if err != nil {
		return fmt.Errorf("invalid source.allowed_url_pattern: %w", err)
	}
	if !pattern.MatchString(indexURL) {
		return fmt.Errorf("%w: %q must match %s", ErrInvalidURL, indexURL, cfg.Source.AllowedURLPattern)
	}
	if !strings.HasSuffix(outputPath, cfg.Source.OutputSuffix) || outputPath == cfg.Source.OutputSuffix {
		return fmt.Errorf("%w: %q must end with %s", ErrInvalidOutput, outputPath, cfg.Source.OutputSuffix)
	}
	return nil
}
