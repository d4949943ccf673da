package models

// ClassificationResult is the decision for one event.
type ClassificationResult struct {
	SubjectID     string        `json:"subject_id" validate:"required"`
	EventType     EventType     `json:"event_type,omitempty"`
	WasTask       bool          `json:"was_task"`
	MatchedNodeID *string       `json:"matched_node_id"`
	Reason        string        `json:"reason" validate:"required"`
	Confidence    float64       `json:"confidence" validate:"gte=0,lte=1"`
	AncestorIDs   []string      `json:"ancestor_ids,omitempty"`
	RelatedIDs    []string      `json:"related_ids,omitempty"`
	RelevantData  *RelevantData `json:"relevant_data,omitempty"`
}

// RelevantData echoes the parts of the event the decision was based on.
type RelevantData struct {
	SHA     string `json:"sha,omitempty"`
	Number  string `json:"number,omitempty"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
}

// MatchedID returns the matched node id or "" when there is none.
func (r ClassificationResult) MatchedID() string {
	if r.MatchedNodeID == nil {
		return ""
	}
	return *r.MatchedNodeID
}

// StringPtr returns a pointer to a copy of value.
func StringPtr(value string) *string {
	return &value
}
