// Package secrets detects and redacts credentials in file content before it
// is placed into a prompt.
//
// Two engines implement Scrubber: a regex engine with a compact built-in rule
// set, and a gitleaks engine that runs the full gitleaks rule catalogue with
// an optional TOML allowlist. Findings never carry the matched value.
package secrets
