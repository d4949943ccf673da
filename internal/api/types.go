package api

import (
	"bytes"
	"encoding/json"

	"taskmatch/internal/models"
)

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// ClassifyRequest is the envelope accepted by POST /v1/classify.
type ClassifyRequest struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// ClassifyResponse renders one result as a bare object and batches as
// {"results": [...]}.
type ClassifyResponse struct {
	Batch   bool
	Results []models.ClassificationResult
}

type batchBody struct {
	Results []models.ClassificationResult `json:"results"`
}

func (r ClassifyResponse) MarshalJSON() ([]byte, error) {
	if !r.Batch && len(r.Results) == 1 {
		return json.Marshal(r.Results[0])
	}
	results := r.Results
	if results == nil {
		results = []models.ClassificationResult{}
	}
	return json.Marshal(batchBody{Results: results})
}

func (r *ClassifyResponse) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if raw, ok := probe["results"]; ok {
		var results []models.ClassificationResult
		if err := json.Unmarshal(raw, &results); err != nil {
			return err
		}
		r.Batch = true
		r.Results = results
		return nil
	}
	var single models.ClassificationResult
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&single); err != nil {
		return err
	}
	r.Batch = false
	r.Results = []models.ClassificationResult{single}
	return nil
}

// WebhookResponse acknowledges a GitHub delivery.
type WebhookResponse struct {
	DeliveryID string                        `json:"delivery_id"`
	Event      string                        `json:"event"`
	ProjectID  string                        `json:"project_id,omitempty"`
	Deduped    bool                          `json:"deduped"`
	Results    []models.ClassificationResult `json:"results,omitempty"`
}

// GraphResponse is the response from GET /v1/graph.
type GraphResponse struct {
	Project   string            `json:"project"`
	Nodes     []models.TaskNode `json:"nodes"`
	Edges     []models.Edge     `json:"edges"`
	Relations []models.Relation `json:"relations"`
}

// GraphImportResponse summarizes a graph import.
type GraphImportResponse struct {
	Project   string `json:"project"`
	Nodes     int    `json:"nodes"`
	Edges     int    `json:"edges"`
	Relations int    `json:"relations"`
}

// InfoResponse is the response from GET /v1/info.
type InfoResponse struct {
	Version        string `json:"version,omitempty"`
	StoreDriver    string `json:"store_driver"`
	ClassifierMode string `json:"classifier_mode"`
	SchemaVersion  int    `json:"schema_version"`
	Projects       int    `json:"projects"`
	Nodes          int    `json:"nodes"`
	Edges          int    `json:"edges"`
	Relations      int    `json:"relations"`
	Deliveries     int    `json:"deliveries"`
	DBPath         string `json:"db_path,omitempty"`
}
