package secrets

// Result contains the scrubbing result.
type Result struct {
	// Scrubbed is the content with secrets redacted. Check leaves it equal
	// to the input.
	Scrubbed string `json:"scrubbed"`

	// Findings contains the detected secrets without their values.
	Findings []Finding `json:"findings,omitempty"`

	// TotalFindings is the count of secrets found.
	TotalFindings int `json:"total_findings"`

	// ByRule maps rule IDs to finding counts.
	ByRule map[string]int `json:"by_rule,omitempty"`
}

// Finding represents a detected secret.
type Finding struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Severity    string `json:"severity,omitempty"`

	// Line is 1-indexed.
	Line int `json:"line,omitempty"`
}

func newResult(content string) *Result {
	return &Result{
		Scrubbed: content,
		Findings: make([]Finding, 0),
		ByRule:   make(map[string]int),
	}
}

func (r *Result) add(f Finding) {
	r.Findings = append(r.Findings, f)
	r.ByRule[f.RuleID]++
	r.TotalFindings++
}

// HasFindings returns true if any secrets were found.
func (r *Result) HasFindings() bool {
	return r.TotalFindings > 0
}

// Merge folds other into r. Scrubbed text is left alone.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	for _, f := range other.Findings {
		r.add(f)
	}
}
