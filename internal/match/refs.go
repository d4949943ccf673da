package match

import (
	"regexp"
	"sort"
	"strings"
)

const maxReferenceLen = 32

var (
	// T42, T-42, AUTH_7, T-42-login-page
	runRefPattern = regexp.MustCompile(`[A-Za-z0-9]+(?:[-_][A-Za-z0-9]+)*`)
	// #123, #T-42
	hashRefPattern = regexp.MustCompile(`#([A-Za-z0-9][A-Za-z0-9_-]*)`)
)

type refHit struct {
	pos   int
	token string
}

// ExtractReferences returns the lowercased task-id-like tokens found in text,
// in order of first appearance. A joined run such as "T-42-login-page" also
// yields each of its joined sub-spans ("t-42", "login-page", ...), and a bare
// word counts only when it carries a digit. Tokens are not checked against any
// graph.
func ExtractReferences(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var hits []refHit
	for _, loc := range hashRefPattern.FindAllStringSubmatchIndex(text, -1) {
		hits = append(hits, refHit{pos: loc[0], token: text[loc[2]:loc[3]]})
	}
	for _, loc := range runRefPattern.FindAllStringIndex(text, -1) {
		hits = appendRunHits(hits, text[loc[0]:loc[1]], loc[0])
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].pos != hits[j].pos {
			return hits[i].pos < hits[j].pos
		}
		return len(hits[i].token) > len(hits[j].token)
	})

	seen := make(map[string]struct{}, len(hits))
	refs := make([]string, 0, len(hits))
	for _, h := range hits {
		token := strings.ToLower(strings.Trim(h.token, "-_"))
		if token == "" || len(token) > maxReferenceLen {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		refs = append(refs, token)
	}
	if len(refs) == 0 {
		return nil
	}
	return refs
}

// appendRunHits adds every contiguous span of two or more joined parts of
// run, or run itself when it is a single part containing a digit.
func appendRunHits(hits []refHit, run string, offset int) []refHit {
	var starts, ends []int
	start := 0
	for i := 0; i <= len(run); i++ {
		if i == len(run) || run[i] == '-' || run[i] == '_' {
			starts = append(starts, start)
			ends = append(ends, i)
			start = i + 1
		}
	}
	if len(starts) == 1 {
		if strings.ContainsAny(run, "0123456789") {
			hits = append(hits, refHit{pos: offset, token: run})
		}
		return hits
	}
	for i := range starts {
		for j := i + 1; j < len(ends); j++ {
			if ends[j]-starts[i] > maxReferenceLen {
				break
			}
			hits = append(hits, refHit{pos: offset + starts[i], token: run[starts[i]:ends[j]]})
		}
	}
	return hits
}

// containsReference reports whether id occurs in text, case-insensitively,
// with no ASCII letter or digit directly on either side.
func containsReference(text, id string) bool {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return false
	}
	text = strings.ToLower(text)
	for from := 0; from <= len(text)-len(id); {
		i := strings.Index(text[from:], id)
		if i < 0 {
			return false
		}
		i += from
		end := i + len(id)
		if (i == 0 || !isWordByte(text[i-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		from = i + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
