package prompt

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fyrsmithlabs/promptpack/internal/tree"
)

// MinSuggestLen is the shortest word that produces suggestions.
const MinSuggestLen = 2

// FilePaths lists every file of t as a slash path, in pre-order.
func FilePaths(t *tree.Tree) []string {
	paths := make([]string, 0)
	for _, e := range visit(t) {
		if e.node.IsFile() {
			paths = append(paths, e.path)
		}
	}
	return paths
}

// Suggest returns the file paths containing word, ignoring case. Words
// shorter than MinSuggestLen runes yield nothing.
func Suggest(t *tree.Tree, word string) []string {
	if utf8.RuneCountInString(word) < MinSuggestLen {
		return []string{}
	}
	needle := strings.ToLower(word)
	matches := make([]string, 0)
	for _, p := range FilePaths(t) {
		if strings.Contains(strings.ToLower(p), needle) {
			matches = append(matches, p)
		}
	}
	return matches
}

// CurrentWord returns the run of non-space characters ending at cursor.
// cursor counts runes and is clamped to the text.
func CurrentWord(text string, cursor int) string {
	before, _ := splitAt(text, cursor)
	i := strings.LastIndexFunc(before, unicode.IsSpace)
	if i < 0 {
		return before
	}
	_, size := utf8.DecodeRuneInString(before[i:])
	return before[i+size:]
}

// Complete replaces the word ending at cursor with path and returns the new
// text with the cursor placed after the inserted path.
func Complete(text string, cursor int, path string) (string, int) {
	before, after := splitAt(text, cursor)
	word := CurrentWord(text, cursor)
	prefix := before[:len(before)-len(word)]
	return prefix + path + after, utf8.RuneCountInString(prefix + path)
}

// splitAt splits text at a rune offset.
func splitAt(text string, cursor int) (string, string) {
	if cursor <= 0 {
		return "", text
	}
	n := 0
	for i := range text {
		if n == cursor {
			return text[:i], text[i:]
		}
		n++
	}
	return text, ""
}
