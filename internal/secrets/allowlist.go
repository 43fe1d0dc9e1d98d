package secrets

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/BurntSushi/toml"
)

var (
	// ErrInvalidRegex indicates an allowlist pattern failed to compile.
	ErrInvalidRegex = errors.New("invalid regex pattern")

	// ErrInvalidTOML indicates an allowlist file could not be parsed.
	ErrInvalidTOML = errors.New("invalid TOML format")
)

// Allowlist holds content patterns that are never reported.
//
// The file format matches the [allowlist] table of .gitleaks.toml:
//
//	[allowlist]
//	regexes = ['''EXAMPLE_[A-Z]+''']
//	stopwords = ["dummy"]
type Allowlist struct {
	Regexes   []string
	StopWords []string
}

// LoadAllowlist reads and validates a TOML allowlist.
func LoadAllowlist(path string) (*Allowlist, error) {
	var file struct {
		Allowlist struct {
			Regexes   []string
			StopWords []string `toml:"stopwords"`
		}
	}
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}

	for _, pattern := range file.Allowlist.Regexes {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: %q in %s: %v", ErrInvalidRegex, pattern, path, err)
		}
	}

	return &Allowlist{
		Regexes:   file.Allowlist.Regexes,
		StopWords: file.Allowlist.StopWords,
	}, nil
}
