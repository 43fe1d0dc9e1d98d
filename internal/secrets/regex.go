package secrets

import (
	"regexp"
	"sort"
	"strings"
)

// RegexScrubber matches content against a compiled RuleSet.
type RegexScrubber struct {
	rules     []*compiledRule
	allow     []*regexp.Regexp
	redaction string
}

// span is a byte range to replace.
type span struct {
	start, end int
}

// NewRegex compiles rs. A nil rs uses DefaultRuleSet.
func NewRegex(rs *RuleSet) (*RegexScrubber, error) {
	if rs == nil {
		rs = DefaultRuleSet()
	}
	rules, allow, err := rs.compile()
	if err != nil {
		return nil, err
	}
	redaction := rs.RedactionString
	if redaction == "" {
		redaction = DefaultRedaction
	}
	return &RegexScrubber{rules: rules, allow: allow, redaction: redaction}, nil
}

// Scrub redacts every match. Overlapping matches collapse into one
// replacement.
func (s *RegexScrubber) Scrub(content string) *Result {
	result, spans := s.scan(content)
	if len(spans) == 0 {
		return result
	}

	var b strings.Builder
	b.Grow(len(content))
	last := 0
	for _, sp := range mergeSpans(spans) {
		b.WriteString(content[last:sp.start])
		b.WriteString(s.redaction)
		last = sp.end
	}
	b.WriteString(content[last:])
	result.Scrubbed = b.String()
	return result
}

// Check reports findings without redacting.
func (s *RegexScrubber) Check(content string) *Result {
	result, _ := s.scan(content)
	return result
}

// IsEnabled returns true.
func (s *RegexScrubber) IsEnabled() bool { return true }

func (s *RegexScrubber) scan(content string) (*Result, []span) {
	result := newResult(content)
	var spans []span

	for _, rule := range s.rules {
		if !rule.applies(content) {
			continue
		}
		for _, m := range rule.pattern.FindAllStringIndex(content, -1) {
			if s.allowed(content[m[0]:m[1]]) {
				continue
			}
			result.add(Finding{
				RuleID:      rule.ID,
				Description: rule.Description,
				Severity:    rule.Severity,
				Line:        strings.Count(content[:m[0]], "\n") + 1,
			})
			spans = append(spans, span{m[0], m[1]})
		}
	}
	return result, spans
}

func (r *compiledRule) applies(content string) bool {
	if len(r.keywords) == 0 {
		return true
	}
	for _, kw := range r.keywords {
		if kw.MatchString(content) {
			return true
		}
	}
	return false
}

func (s *RegexScrubber) allowed(match string) bool {
	for _, re := range s.allow {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}

// mergeSpans sorts spans and joins overlapping or touching ones.
func mergeSpans(spans []span) []span {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	merged := []span{spans[0]}
	for _, cur := range spans[1:] {
		last := &merged[len(merged)-1]
		if cur.start <= last.end {
			if cur.end > last.end {
				last.end = cur.end
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}
