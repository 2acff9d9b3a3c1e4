package normalize

import (
	"regexp"
	"strings"

	"elections-scraper/internal/config"
)

const nbsp = "\u00A0"

var multiSpace = regexp.MustCompile(`\s+`)

type Normalizer struct {
	cfg config.NormalizeConfig
}

func NewNormalizer(cfg config.NormalizeConfig) *Normalizer {
	return &Normalizer{cfg: cfg}
}

// Strip trims leading and trailing whitespace, NBSP included.
func Strip(text string) string {
	return strings.TrimSpace(text)
}

// Cell strips the text and, depending on config, replaces NBSP with a plain
// space and collapses runs of whitespace. Thousands separators rendered as
// NBSP ("1\u00a0234") become "1 234".
func (n *Normalizer) Cell(text string) string {
	text = Strip(text)

	if n.cfg.TrimNBSP {
		text = strings.ReplaceAll(text, nbsp, " ")
	}

	if n.cfg.CollapseSpaces {
		text = multiSpace.ReplaceAllString(text, " ")
	}

	return text
}

// IsPlaceholder reports whether a stripped cell carries no value.
func IsPlaceholder(text string) bool {
	return text == "" || text == "-"
}
