package secrets

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// GitleaksScrubber runs the default gitleaks rule catalogue.
type GitleaksScrubber struct {
	mu       sync.Mutex
	detector *detect.Detector
}

// NewGitleaks builds the detector once. allow may be nil.
func NewGitleaks(allow *Allowlist) (*GitleaksScrubber, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, err
	}
	if allow != nil {
		applyAllowlist(&detector.Config, allow)
	}
	return &GitleaksScrubber{detector: detector}, nil
}

// applyAllowlist appends a global allowlist entry to the gitleaks config.
// Patterns were compiled once by LoadAllowlist.
func applyAllowlist(cfg *gitleaksConfig.Config, allow *Allowlist) {
	entry := &gitleaksConfig.Allowlist{
		Description: "promptpack allowlist",
		StopWords:   append([]string{}, allow.StopWords...),
	}
	for _, pattern := range allow.Regexes {
		re := regexp.MustCompile(pattern)
		entry.Regexes = append(entry.Regexes, (*gitleaksRegexp.Regexp)(re))
	}
	cfg.Allowlists = append(cfg.Allowlists, entry)
}

// Scrub replaces each detected secret with [REDACTED:<rule-id>].
func (g *GitleaksScrubber) Scrub(content string) *Result {
	result, secrets := g.scan(content)
	if len(secrets) == 0 {
		return result
	}

	// Longest first so a secret containing another is replaced whole.
	sort.Slice(secrets, func(i, j int) bool { return len(secrets[i].value) > len(secrets[j].value) })
	scrubbed := content
	for _, s := range secrets {
		scrubbed = strings.ReplaceAll(scrubbed, s.value, "[REDACTED:"+s.ruleID+"]")
	}
	result.Scrubbed = scrubbed
	return result
}

// Check reports findings without redacting.
func (g *GitleaksScrubber) Check(content string) *Result {
	result, _ := g.scan(content)
	return result
}

// IsEnabled returns true.
func (g *GitleaksScrubber) IsEnabled() bool { return true }

type detected struct {
	ruleID string
	value  string
}

func (g *GitleaksScrubber) scan(content string) (*Result, []detected) {
	result := newResult(content)

	g.mu.Lock()
	findings := g.detector.DetectString(content)
	g.mu.Unlock()

	seen := make(map[string]struct{}, len(findings))
	secrets := make([]detected, 0, len(findings))
	for _, f := range findings {
		result.add(Finding{
			RuleID:      f.RuleID,
			Description: f.Description,
			Line:        f.StartLine,
		})
		if f.Secret == "" {
			continue
		}
		if _, dup := seen[f.Secret]; dup {
			continue
		}
		seen[f.Secret] = struct{}{}
		secrets = append(secrets, detected{ruleID: f.RuleID, value: f.Secret})
	}
	return result, secrets
}
