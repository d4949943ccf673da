// Package match decides which task node, if any, a normalized event refers to.
package match

import (
	"fmt"
	"strings"

	"taskmatch/internal/graph"
	"taskmatch/internal/models"
)

const (
	DefaultThreshold = 0.75
	DefaultPathBonus = 0.1

	// Fuzzy matches stay strictly below an explicit reference.
	maxFuzzyConfidence = 0.99
	maxContentLen      = 2000
)

// Options tunes the fuzzy stage.
type Options struct {
	Threshold float64
	PathBonus float64
}

// DefaultOptions returns the production thresholds.
func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, PathBonus: DefaultPathBonus}
}

// Engine matches events against a read-only snapshot. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	opts Options
}

// NewEngine normalizes opts: an out-of-range threshold falls back to the
// default and a negative bonus is treated as zero.
func NewEngine(opts Options) *Engine {
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		opts.Threshold = DefaultThreshold
	}
	if opts.PathBonus < 0 {
		opts.PathBonus = 0
	}
	return &Engine{opts: opts}
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// Match classifies one event. A nil snapshot is treated as empty.
func (e *Engine) Match(ev models.NormalizedEvent, snap *graph.Snapshot) models.ClassificationResult {
	result := models.ClassificationResult{
		SubjectID:    ev.Identity,
		EventType:    ev.Type,
		RelevantData: relevantData(ev),
	}
	if snap == nil {
		snap = graph.Empty("")
	}
	nodes := snap.Nodes()
	text := ev.Text()

	if node, ok := exactReference(text, nodes); ok {
		result.WasTask = true
		result.MatchedNodeID = models.StringPtr(node.ID)
		result.Confidence = 1.0
		result.Reason = "explicit reference to " + node.ID
		attachContext(&result, snap, node.ID)
		return result
	}

	best, score, found := e.bestFuzzy(text, ev.TouchedPaths, nodes)
	if found && score >= e.opts.Threshold {
		result.WasTask = true
		result.MatchedNodeID = models.StringPtr(best.ID)
		result.Confidence = min(score, maxFuzzyConfidence)
		result.Reason = fmt.Sprintf("fuzzy match to '%s' (%.2f)", best.Name, result.Confidence)
		attachContext(&result, snap, best.ID)
		return result
	}

	result.Confidence = score
	result.Reason = fmt.Sprintf("no sufficient match (best=%.2f)", score)
	return result
}

// exactReference returns the first node, in snapshot order, whose id was
// extracted from text or occurs in it as a whole word. The second check covers
// ids that do not look like codes, such as "frontend" or "v1.2".
func exactReference(text string, nodes []models.TaskNode) (models.TaskNode, bool) {
	refs := ExtractReferences(text)
	tokens := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		tokens[ref] = struct{}{}
	}
	for _, node := range nodes {
		if _, ok := tokens[strings.ToLower(node.ID)]; ok {
			return node, true
		}
		if containsReference(text, node.ID) {
			return node, true
		}
	}
	return models.TaskNode{}, false
}

func (e *Engine) bestFuzzy(text string, paths []string, nodes []models.TaskNode) (models.TaskNode, float64, bool) {
	var (
		best  models.TaskNode
		score float64
		found bool
	)
	for _, node := range nodes {
		s := Score(text, node.CandidateText())
		if e.opts.PathBonus > 0 && pathRelevant(paths, node) {
			s = min(s+e.opts.PathBonus, 1.0)
		}
		if !found || s > score || (s == score && node.ID < best.ID) {
			best, score, found = node, s, true
		}
	}
	return best, score, found
}

func attachContext(result *models.ClassificationResult, snap *graph.Snapshot, id string) {
	result.AncestorIDs = snap.Ancestors(id)
	result.RelatedIDs = snap.Related(id)
}

func relevantData(ev models.NormalizedEvent) *models.RelevantData {
	data := &models.RelevantData{}
	switch ev.Type {
	case models.EventPush:
		message := ev.Field("message")
		data.SHA = ev.Identity
		data.Title = firstLine(message)
		data.Content = truncate(message)
	case models.EventIssueComment:
		data.Number = ev.Identity
		data.Title = ev.Field("title")
		data.Content = truncate(ev.Field("comment"))
	default:
		data.Number = ev.Identity
		data.Title = ev.Field("title")
		data.Content = truncate(ev.Field("body"))
	}
	return data
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func truncate(s string) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= maxContentLen {
		return string(runes)
	}
	return string(runes[:maxContentLen])
}
