package match

import (
	"strings"
	"unicode"

	"github.com/bmatcuk/doublestar/v4"

	"taskmatch/internal/models"
)

const minKeywordLen = 3

var keywordStopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "into": {},
	"add": {}, "fix": {}, "new": {}, "update": {}, "src": {}, "lib": {},
}

// pathRelevant reports whether any touched path names the node, either through
// the node's own path glob or through a keyword of its name or type.
func pathRelevant(paths []string, node models.TaskNode) bool {
	if len(paths) == 0 {
		return false
	}

	if pattern := strings.TrimSpace(node.Path); pattern != "" {
		prefix := strings.TrimSuffix(pattern, "/") + "/"
		for _, path := range paths {
			if path == pattern || strings.HasPrefix(path, prefix) {
				return true
			}
			if ok, err := doublestar.Match(pattern, path); err == nil && ok {
				return true
			}
		}
	}

	keywords := nodeKeywords(node)
	if len(keywords) == 0 {
		return false
	}
	for _, path := range paths {
		for _, segment := range splitWords(path) {
			if _, ok := keywords[segment]; ok {
				return true
			}
		}
	}
	return false
}

func nodeKeywords(node models.TaskNode) map[string]struct{} {
	keywords := map[string]struct{}{}
	for _, word := range splitWords(node.Name + " " + string(node.Type)) {
		if len(word) < minKeywordLen {
			continue
		}
		if _, stop := keywordStopwords[word]; stop {
			continue
		}
		keywords[word] = struct{}{}
	}
	return keywords
}

func splitWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
