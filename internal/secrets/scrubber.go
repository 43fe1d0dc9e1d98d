package secrets

import (
	"fmt"

	"github.com/fyrsmithlabs/promptpack/internal/config"
)

// Engine names accepted by New.
const (
	EngineRegex    = "regex"
	EngineGitleaks = "gitleaks"
	EngineNone     = "none"
)

// Scrubber detects and redacts secrets from content.
type Scrubber interface {
	// Scrub redacts secrets from the content.
	Scrub(content string) *Result

	// Check detects secrets without redacting.
	Check(content string) *Result

	// IsEnabled returns whether scrubbing is enabled.
	IsEnabled() bool
}

// New builds the scrubber selected by cfg.Engine.
func New(cfg config.SecretsConfig) (Scrubber, error) {
	switch cfg.Engine {
	case EngineRegex, "":
		return NewRegex(nil)
	case EngineGitleaks:
		var allow *Allowlist
		if cfg.AllowlistPath != "" {
			var err error
			allow, err = LoadAllowlist(cfg.AllowlistPath)
			if err != nil {
				return nil, err
			}
		}
		return NewGitleaks(allow)
	case EngineNone:
		return NoopScrubber{}, nil
	default:
		return nil, fmt.Errorf("unknown secrets engine %q", cfg.Engine)
	}
}

// NoopScrubber returns content unchanged.
type NoopScrubber struct{}

// Scrub returns content unchanged.
func (NoopScrubber) Scrub(content string) *Result { return newResult(content) }

// Check returns content unchanged.
func (NoopScrubber) Check(content string) *Result { return newResult(content) }

// IsEnabled returns false.
func (NoopScrubber) IsEnabled() bool { return false }

var (
	_ Scrubber = (*RegexScrubber)(nil)
	_ Scrubber = (*GitleaksScrubber)(nil)
	_ Scrubber = NoopScrubber{}
)
